// Package strategy turns calibrated probabilities into staked bet recommendations.
package strategy

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/models"
)

// GatingConfig holds the admission thresholds and stake sizing
type GatingConfig struct {
	FractionalKelly float64 `json:"fractional_kelly"`
	MinEV           float64 `json:"min_ev"`
	MinProb         float64 `json:"min_prob"`
	MinOdds         float64 `json:"min_odds"`
	MaxStake        float64 `json:"max_stake"`
	DisagreementCap float64 `json:"disagreement_cap"`
}

// DefaultGatingConfig returns the standard thresholds
func DefaultGatingConfig() GatingConfig {
	return GatingConfig{
		FractionalKelly: 0.25,
		MinEV:           0.05,
		MinProb:         0.80,
		MinOdds:         1.75,
		MaxStake:        0.03,
		DisagreementCap: 0.20,
	}
}

// Validate checks the thresholds are usable
func (c GatingConfig) Validate() error {
	if c.FractionalKelly <= 0 || c.FractionalKelly > 1 {
		return fmt.Errorf("fractional kelly must be in (0, 1], got %v", c.FractionalKelly)
	}
	if c.MinProb < 0 || c.MinProb > 1 {
		return fmt.Errorf("min probability must be in [0, 1], got %v", c.MinProb)
	}
	if c.MaxStake <= 0 || c.MaxStake > 1 {
		return fmt.Errorf("max stake must be in (0, 1], got %v", c.MaxStake)
	}
	if c.DisagreementCap < 0 {
		return fmt.Errorf("disagreement cap must be non-negative, got %v", c.DisagreementCap)
	}
	return nil
}

// RejectionCounts tallies candidates by the first check they failed.
// Candidates skipped for unusable odds are counted under RejectUnusableOdds.
type RejectionCounts map[models.RejectionReason]int

// Total returns the number of candidates not admitted
func (r RejectionCounts) Total() int {
	n := 0
	for _, v := range r {
		n += v
	}
	return n
}

// Fields returns the counts keyed by reason name, for logging
func (r RejectionCounts) Fields() map[string]int {
	out := make(map[string]int, len(r))
	for k, v := range r {
		out[string(k)] = v
	}
	return out
}

// GatingEngine applies the ordered admission checks to every (match, side) candidate.
type GatingEngine struct {
	cfg    GatingConfig
	logger *logger.StrategyLogger
}

// NewGatingEngine creates a gating engine
func NewGatingEngine(cfg GatingConfig, log *logrus.Logger) (*GatingEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GatingEngine{cfg: cfg, logger: logger.NewStrategyLogger(log)}, nil
}

// Config returns the thresholds in use
func (g *GatingEngine) Config() GatingConfig {
	return g.cfg
}

// Evaluate scores both sides of every match and returns the admitted bets sorted by EV descending.
// preds[i] must belong to batch.Matches[i].
func (g *GatingEngine) Evaluate(batch models.Batch, preds []models.Prediction) ([]models.BetRecommendation, RejectionCounts, error) {
	if len(preds) != batch.Len() {
		return nil, nil, fmt.Errorf("%w: %d predictions for %d matches", models.ErrLengthMismatch, len(preds), batch.Len())
	}

	recs := make([]models.BetRecommendation, 0)
	rejections := make(RejectionCounts)
	candidates := 0
	for i := range batch.Matches {
		m := &batch.Matches[i]
		signal := models.SignalNeutral
		if m.Market != nil {
			signal = m.Market.Signal
		}
		for _, side := range models.Sides {
			candidates++
			metrics.RecordCandidate(string(side))

			rec, reason := g.evaluateCandidate(m, side, preds[i].For(side), signal)
			if reason != "" {
				rejections[reason]++
				metrics.RecordRejection(string(reason))
				if reason == models.RejectUnusableOdds {
					g.logger.LogUnusableOdds(m.ID, string(side))
				} else {
					g.logger.LogRejection(m.ID, string(side), string(reason), preds[i].For(side), rec.MarketOdds)
				}
				continue
			}
			metrics.RecordAdmission(string(side))
			g.logger.LogAdmission(m.ID, string(side), rec.ModelProb, rec.MarketOdds, rec.EV, rec.RecommendedStake)
			recs = append(recs, rec)
		}
	}

	sort.SliceStable(recs, func(a, b int) bool { return recs[a].EV > recs[b].EV })
	g.logger.LogGatingSummary(candidates, len(recs), rejections.Fields(), g.cfg.MinEV, g.cfg.MinProb)
	return recs, rejections, nil
}

// evaluateCandidate runs the checks in order and stops at the first failure.
// The returned reason is empty when the candidate is admitted.
func (g *GatingEngine) evaluateCandidate(m *models.Match, side models.Side, p float64, signal models.MarketSignal) (models.BetRecommendation, models.RejectionReason) {
	open, close := m.Odds.For(side)
	odds, ok := chooseOdds(open, close)
	if !ok {
		return models.BetRecommendation{}, models.RejectUnusableOdds
	}
	rec := models.BetRecommendation{MarketOdds: odds}

	if p < g.cfg.MinProb || math.IsNaN(p) {
		return rec, models.RejectProbability
	}
	if signal.Opposes(side) {
		return rec, models.RejectSignal
	}
	if odds < g.cfg.MinOdds {
		return rec, models.RejectOdds
	}
	impliedClose := ImpliedProbability(odds)
	if math.Abs(p-impliedClose) > g.cfg.DisagreementCap {
		return rec, models.RejectDisagreement
	}
	ev := ExpectedValue(p, odds)
	if ev < g.cfg.MinEV {
		return rec, models.RejectExpectedValue
	}

	impliedOpen := impliedClose
	if usableOdds(open) {
		impliedOpen = ImpliedProbability(open)
	}
	fullKelly := KellyStake(p, odds)
	clv := ClosingLineValue(p, impliedClose)

	return models.BetRecommendation{
		ID:               uuid.New(),
		MatchIndex:       m.Index,
		MatchID:          m.ID,
		Date:             m.DateString(),
		HomeTeam:         m.HomeTeam,
		AwayTeam:         m.AwayTeam,
		GroupKey:         m.GroupKey,
		Side:             side,
		ModelProb:        p,
		ImpliedProbOpen:  impliedOpen,
		ImpliedProbClose: impliedClose,
		Edge:             p - impliedClose,
		EV:               ev,
		KellyFraction:    fullKelly,
		RecommendedStake: FractionalStake(fullKelly, g.cfg.FractionalKelly, g.cfg.MaxStake),
		MarketOdds:       odds,
		CLV:              clv,
		Signal:           signal,
		PassesProb:       true,
		PassesSignal:     true,
	}, ""
}
