package strategy

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/models"
)

// Pairer combines admitted singles into doubles, strongest with weakest.
type Pairer struct {
	FractionalKelly  float64
	MaxStake         float64
	PreferCrossGroup bool

	logger *logger.StrategyLogger
}

// NewPairer creates a pairer that sizes doubles like singles
func NewPairer(fractionalKelly, maxStake float64, preferCrossGroup bool, log *logrus.Logger) *Pairer {
	return &Pairer{
		FractionalKelly:  fractionalKelly,
		MaxStake:         maxStake,
		PreferCrossGroup: preferCrossGroup,
		logger:           logger.NewStrategyLogger(log),
	}
}

// Pair returns floor(n/2) doubles for n recommendations on distinct matches.
// A leg whose only remaining partners share its match is dropped.
func (p *Pairer) Pair(recs []models.BetRecommendation) []models.PairedBet {
	pool := append([]models.BetRecommendation(nil), recs...)
	sort.SliceStable(pool, func(a, b int) bool { return pool[a].ModelProb > pool[b].ModelProb })

	pairs := make([]models.PairedBet, 0, len(pool)/2)
	crossGroup := 0
	for len(pool) >= 2 {
		best := pool[0]
		pool = pool[1:]

		j := p.partner(best, pool)
		if j < 0 {
			continue
		}
		worst := pool[j]
		pool = append(pool[:j], pool[j+1:]...)

		pair := p.combine(best, worst)
		if pair.CrossGroup() {
			crossGroup++
		}
		metrics.RecordPair(pair.CrossGroup())
		pairs = append(pairs, pair)
	}

	p.logger.LogPairing(len(recs), len(pairs), crossGroup)
	return pairs
}

// partner picks the lowest-probability entry on a different match, then
// looks further up for a different group when cross-group pairing is preferred.
func (p *Pairer) partner(best models.BetRecommendation, pool []models.BetRecommendation) int {
	worst := -1
	for i := len(pool) - 1; i >= 0; i-- {
		if pool[i].MatchIndex != best.MatchIndex {
			worst = i
			break
		}
	}
	if worst < 0 || !p.PreferCrossGroup || pool[worst].GroupKey != best.GroupKey {
		return worst
	}
	for i := worst - 1; i >= 0; i-- {
		if pool[i].GroupKey != best.GroupKey && pool[i].MatchIndex != best.MatchIndex {
			return i
		}
	}
	return worst
}

func (p *Pairer) combine(leg1, leg2 models.BetRecommendation) models.PairedBet {
	prob := leg1.ModelProb * leg2.ModelProb
	odds := leg1.MarketOdds * leg2.MarketOdds
	return models.PairedBet{
		ID:               uuid.New(),
		Leg1:             leg1,
		Leg2:             leg2,
		CombinedProb:     prob,
		CombinedOdds:     odds,
		RecommendedStake: FractionalStake(KellyStake(prob, odds), p.FractionalKelly, p.MaxStake),
	}
}
