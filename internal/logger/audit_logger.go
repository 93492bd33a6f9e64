// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger records the bankroll trail of a simulation.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: OrDiscard(baseLogger).WithField("component", "audit"),
	}
}

// LogSettlement logs one simulated settlement.
func (al *AuditLogger) LogSettlement(matchIndex int, side string, odds, wager, profit, bankroll float64, won bool, consecutiveLosses int) {
	al.WithFields(logrus.Fields{
		"match_index":        matchIndex,
		"side":               side,
		"odds":               odds,
		"wager":              wager,
		"profit":             profit,
		"bankroll":           bankroll,
		"won":                won,
		"consecutive_losses": consecutiveLosses,
	}).Debug("Bet settled")
}

// LogStopLoss logs the consecutive-loss halt.
func (al *AuditLogger) LogStopLoss(consecutiveLosses, settled, remaining int, bankroll float64) {
	al.WithFields(logrus.Fields{
		"consecutive_losses": consecutiveLosses,
		"settled":            settled,
		"remaining":          remaining,
		"bankroll":           bankroll,
	}).Warn("Stop-loss triggered, simulation halted")
}

// LogRunPersisted logs a run written to the store.
func (al *AuditLogger) LogRunPersisted(runID string, recommendations, ledgerEntries int) {
	al.WithFields(logrus.Fields{
		"run_id":          runID,
		"recommendations": recommendations,
		"ledger_entries":  ledgerEntries,
	}).Info("Run persisted")
}
