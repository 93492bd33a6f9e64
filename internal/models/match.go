package models

import (
	"math"
	"time"
)

// MarketSignal is the discrete steam indicator derived from odds movement.
type MarketSignal int

const (
	SignalUnder   MarketSignal = -1
	SignalNeutral MarketSignal = 0
	SignalOver    MarketSignal = 1
)

// String returns the signal name
func (s MarketSignal) String() string {
	switch s {
	case SignalUnder:
		return "UNDER"
	case SignalOver:
		return "OVER"
	default:
		return "NEUTRAL"
	}
}

// Opposes reports whether the signal favours the complementary outcome of side.
func (s MarketSignal) Opposes(side Side) bool {
	switch side {
	case SideOver:
		return s == SignalUnder
	case SideUnder:
		return s == SignalOver
	}
	return false
}

// MarketContext carries the optional market-movement features of a match.
type MarketContext struct {
	MomentumOver  float64      `json:"momentum_over"`
	MomentumUnder float64      `json:"momentum_under"`
	Signal        MarketSignal `json:"signal"`
}

// Odds holds opening and closing decimal odds for both outcomes. NaN marks a missing price.
type Odds struct {
	OverOpen   float64 `json:"over_open"`
	OverClose  float64 `json:"over_close"`
	UnderOpen  float64 `json:"under_open"`
	UnderClose float64 `json:"under_close"`
}

// MissingOdds returns an Odds value with every price unset.
func MissingOdds() Odds {
	nan := math.NaN()
	return Odds{OverOpen: nan, OverClose: nan, UnderOpen: nan, UnderClose: nan}
}

// For returns the opening and closing odds for a side
func (o Odds) For(side Side) (open, close float64) {
	if side == SideUnder {
		return o.UnderOpen, o.UnderClose
	}
	return o.OverOpen, o.OverClose
}

// Match is one row of the feature table. The core only reads it.
type Match struct {
	Index    int       `json:"index"`
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	HomeTeam string    `json:"home_team"`
	AwayTeam string    `json:"away_team"`
	GroupKey string    `json:"group_key"`

	Features []float64 `json:"features"`

	// Realised counts, nil until the match is resolved.
	HomeCount *int `json:"home_count,omitempty"`
	AwayCount *int `json:"away_count,omitempty"`

	// TotalXG is the historical expected total used by the baseline; NaN when unknown.
	TotalXG float64 `json:"total_xg"`

	Odds   Odds           `json:"odds"`
	Market *MarketContext `json:"market,omitempty"`
}

// Resolved reports whether both realised counts are known
func (m *Match) Resolved() bool {
	return m.HomeCount != nil && m.AwayCount != nil
}

// TotalCount returns the realised total and whether it is known
func (m *Match) TotalCount() (int, bool) {
	if !m.Resolved() {
		return 0, false
	}
	return *m.HomeCount + *m.AwayCount, true
}

// OutcomeOver returns 1 when the realised total exceeds line, 0 otherwise.
// The second return value is false for unresolved matches.
func (m *Match) OutcomeOver(line float64) (int, bool) {
	total, ok := m.TotalCount()
	if !ok {
		return 0, false
	}
	if float64(total) > line {
		return 1, true
	}
	return 0, true
}

// DateString formats the match date the way reports print it
func (m *Match) DateString() string {
	if m.Date.IsZero() {
		return ""
	}
	return m.Date.Format("2006-01-02")
}

// Capabilities describes which auxiliary signals a batch carries.
// It is computed once per batch so consumers branch on it instead of probing rows.
type Capabilities struct {
	MarketContext bool `json:"market_context"`
}

// Batch is an ordered feature table plus its column identifiers.
type Batch struct {
	FeatureColumns []string     `json:"feature_columns"`
	Matches        []Match      `json:"matches"`
	Capabilities   Capabilities `json:"capabilities"`
}

// NewBatch builds a batch and derives its capability descriptor.
// Market context counts as available only when every match carries it.
func NewBatch(columns []string, matches []Match) Batch {
	caps := Capabilities{MarketContext: len(matches) > 0}
	for i := range matches {
		if matches[i].Market == nil {
			caps.MarketContext = false
			break
		}
	}
	return Batch{FeatureColumns: columns, Matches: matches, Capabilities: caps}
}

// Len returns the number of matches
func (b Batch) Len() int {
	return len(b.Matches)
}

// Slice returns the sub-batch [from, to) with the parent's columns and capabilities.
func (b Batch) Slice(from, to int) Batch {
	return Batch{
		FeatureColumns: b.FeatureColumns,
		Matches:        b.Matches[from:to],
		Capabilities:   b.Capabilities,
	}
}

// Resolved returns the sub-batch of matches with known realised counts, preserving order.
func (b Batch) Resolved() Batch {
	out := make([]Match, 0, len(b.Matches))
	for i := range b.Matches {
		if b.Matches[i].Resolved() {
			out = append(out, b.Matches[i])
		}
	}
	return Batch{FeatureColumns: b.FeatureColumns, Matches: out, Capabilities: b.Capabilities}
}
