package backtest

import (
	"encoding/json"
	"math"

	"github.com/yourusername/totals-edge/internal/models"
)

// Verdicts
const (
	VerdictAccept = "ACCEPT"
	VerdictReview = "REVIEW"
	VerdictReject = "REJECT"
)

// BaselineBrier is the score of a constant 0.5 forecast.
const BaselineBrier = 0.25

// Assessment combines forecast quality, replay and resampling into one verdict
type Assessment struct {
	MeanBrier      float64            `json:"mean_brier"`
	BrierSkill     float64            `json:"brier_skill"`
	Replay         Metrics            `json:"replay"`
	MonteCarlo     MonteCarloResult   `json:"monte_carlo"`
	CLV            models.CLVSummary  `json:"clv"`
	CompositeScore float64            `json:"composite_score"`
	Verdict        string             `json:"verdict"`
	Features       map[string]float64 `json:"features"`
}

// Assess scores a run. eval may be nil when cross-validation was skipped.
func Assess(eval *models.Evaluation, replay Metrics, mc MonteCarloResult, clv models.CLVSummary) Assessment {
	brier := BaselineBrier
	if eval != nil && len(eval.Folds) > 0 {
		brier = eval.MeanBrier
	}
	skill := 1 - brier/BaselineBrier
	composite := CalculateCompositeScore(skill, replay, mc, clv)

	return Assessment{
		MeanBrier:      brier,
		BrierSkill:     skill,
		Replay:         replay,
		MonteCarlo:     mc,
		CLV:            clv,
		CompositeScore: composite,
		Verdict:        GenerateVerdict(composite, brier, replay.ROI, clv.AvgCLV),
		Features:       extractFeatures(skill, replay, mc, clv),
	}
}

// CalculateCompositeScore weights calibration skill, returns, risk and CLV into [0, 1].
func CalculateCompositeScore(brierSkill float64, replay Metrics, mc MonteCarloResult, clv models.CLVSummary) float64 {
	skillScore := normalize(brierSkill, 0, 0.2)
	roiScore := normalize(replay.ROI, -0.5, 1.0)
	sharpeScore := normalize(replay.SharpeRatio, -1, 1)
	drawdownPenalty := 1.0 - normalize(replay.MaxDrawdown, 0, 0.5)
	clvScore := normalize(clv.AvgCLV, -0.05, 0.1)
	ruinPenalty := 1.0 - mc.ProbabilityOfRuin

	weighted := 0.0
	weighted += skillScore * 0.30
	weighted += roiScore * 0.20
	weighted += clvScore * 0.15
	weighted += sharpeScore * 0.10
	weighted += drawdownPenalty * 0.15
	weighted += ruinPenalty * 0.10
	return weighted
}

// GenerateVerdict decides whether the run's edge looks real
func GenerateVerdict(score, brier, roi, avgCLV float64) string {
	if brier >= BaselineBrier || roi < 0 || score < 0.4 {
		return VerdictReject
	}
	if score > 0.6 && roi > 0 && avgCLV > 0 {
		return VerdictAccept
	}
	return VerdictReview
}

// ToJSON exports the assessment
func (a Assessment) ToJSON() string {
	data, _ := json.Marshal(a)
	return string(data)
}

func extractFeatures(skill float64, replay Metrics, mc MonteCarloResult, clv models.CLVSummary) map[string]float64 {
	return map[string]float64{
		"brier_skill":      skill,
		"roi":              replay.ROI,
		"sharpe_ratio":     replay.SharpeRatio,
		"max_drawdown":     replay.MaxDrawdown,
		"profit_factor":    replay.ProfitFactor,
		"win_rate":         replay.WinRate,
		"avg_clv":          clv.AvgCLV,
		"pct_positive_clv": clv.PctPositiveCLV,
		"mc_var95":         mc.VaR95,
		"mc_ruin":          mc.ProbabilityOfRuin,
	}
}

func normalize(value, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	v := (value - min) / (max - min)
	return math.Max(0, math.Min(1, v))
}
