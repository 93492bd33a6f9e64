package backtest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// EquityPoint is the bankroll after one settlement. Step 0 is the opening bankroll.
type EquityPoint struct {
	Step       int     `json:"step"`
	MatchIndex int     `json:"match_index"`
	Date       string  `json:"date"`
	Value      float64 `json:"value"`
	Drawdown   float64 `json:"drawdown"`
}

// EquityCurve is the bankroll trajectory in settlement order
type EquityCurve []EquityPoint

// GetReturns calculates per-settlement returns from the equity curve
func (e EquityCurve) GetReturns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (e[i].Value-prev)/prev)
	}
	return returns
}

// GetVolatility calculates standard deviation of returns
func (e EquityCurve) GetVolatility() float64 {
	return stddev(e.GetReturns())
}

// GetDownsideDeviation calculates the root mean square of negative returns
func (e EquityCurve) GetDownsideDeviation() float64 {
	variance := 0.0
	count := 0
	for _, r := range e.GetReturns() {
		if r < 0 {
			variance += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(variance / float64(count))
}

// ToCSV exports the equity curve to a CSV string
func (e EquityCurve) ToCSV() string {
	var b strings.Builder
	b.WriteString("step,match_index,date,value,drawdown\n")
	for _, p := range e {
		b.WriteString(strconv.Itoa(p.Step))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(p.MatchIndex))
		b.WriteByte(',')
		b.WriteString(p.Date)
		b.WriteByte(',')
		b.WriteString(formatFloat(p.Value, 2))
		b.WriteByte(',')
		b.WriteString(formatFloat(p.Drawdown, 4))
		b.WriteByte('\n')
	}
	return b.String()
}

// ToJSON exports equity curve to JSON string
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
