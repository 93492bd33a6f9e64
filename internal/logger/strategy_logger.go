// Package logger provides strategy-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// StrategyLogger provides dedicated logging for gating and pairing.
type StrategyLogger struct {
	*logrus.Entry
}

// NewStrategyLogger creates a new strategy logger.
func NewStrategyLogger(baseLogger *logrus.Logger) *StrategyLogger {
	return &StrategyLogger{
		Entry: OrDiscard(baseLogger).WithField("component", "strategy"),
	}
}

// LogAdmission logs an admitted candidate.
func (sl *StrategyLogger) LogAdmission(matchID, side string, prob, odds, ev, stake float64) {
	sl.WithFields(logrus.Fields{
		"match_id":   matchID,
		"side":       side,
		"model_prob": prob,
		"odds":       odds,
		"ev":         ev,
		"stake_pct":  stake,
	}).Debug("Candidate admitted")
}

// LogRejection logs the first check a candidate failed.
func (sl *StrategyLogger) LogRejection(matchID, side, reason string, prob, odds float64) {
	sl.WithFields(logrus.Fields{
		"match_id":   matchID,
		"side":       side,
		"reason":     reason,
		"model_prob": prob,
		"odds":       odds,
	}).Debug("Candidate rejected")
}

// LogUnusableOdds logs a candidate skipped for missing or non-tradable odds.
func (sl *StrategyLogger) LogUnusableOdds(matchID, side string) {
	sl.WithFields(logrus.Fields{
		"match_id": matchID,
		"side":     side,
	}).Debug("Skipping candidate with unusable odds")
}

// LogGatingSummary logs the outcome of one gating pass.
func (sl *StrategyLogger) LogGatingSummary(candidates, admitted int, rejections map[string]int, minEV, minProb float64) {
	sl.WithFields(logrus.Fields{
		"candidates": candidates,
		"admitted":   admitted,
		"rejections": rejections,
		"min_ev":     minEV,
		"min_prob":   minProb,
	}).Info("Gating completed")
}

// LogPairing logs the pairing result.
func (sl *StrategyLogger) LogPairing(singles, pairs, crossGroup int) {
	sl.WithFields(logrus.Fields{
		"singles":     singles,
		"pairs":       pairs,
		"cross_group": crossGroup,
	}).Info("Paired doubles")
}

// LogCLVSummary logs closing-line value statistics.
func (sl *StrategyLogger) LogCLVSummary(avgCLV, pctPositive float64, totalBets int) {
	sl.WithFields(logrus.Fields{
		"avg_clv":          avgCLV,
		"pct_positive_clv": pctPositive,
		"total_bets":       totalBets,
	}).Info("CLV summary")
}
