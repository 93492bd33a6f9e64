package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/yourusername/totals-edge/internal/models"
)

// ExportToJSON writes v as indented JSON, creating parent directories
func ExportToJSON(v any, outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// Summary flattens the report into the persisted run row.
// Money is rounded to cents and ratios to 4 places.
func (r Report) Summary() *models.RunSummary {
	s := &models.RunSummary{
		ID:         r.RunID,
		RunDate:    r.GeneratedAt,
		DataSource: r.DataSource,
		Matches:    r.Matches,
		Admitted:   len(r.Recommendations),
		Pairs:      len(r.Pairs),
		AvgCLV:     roundFloat(r.CLV.AvgCLV, 4),
		Rejections: mustMarshalJSON(r.Rejections),
		CreatedAt:  r.GeneratedAt,
	}
	if r.Evaluation != nil {
		s.MeanBrier = roundFloat(r.Evaluation.MeanBrier, 4)
		s.MeanLogLoss = roundFloat(r.Evaluation.MeanLogLoss, 4)
	}
	if r.Simulation != nil {
		m := r.Simulation.Metrics
		s.InitialBankroll = roundFloat(m.InitialBankroll, 2)
		s.FinalBankroll = roundFloat(m.FinalBankroll, 2)
		s.ROI = roundFloat(m.ROI, 4)
		s.MaxDrawdown = roundFloat(m.MaxDrawdown, 4)
		s.TotalBets = m.TotalBets
		s.WinRate = roundFloat(m.WinRate, 4)
		s.Stopped = m.Stopped
	}
	if r.Assessment != nil {
		s.CompositeScore = roundFloat(r.Assessment.CompositeScore, 4)
		s.Verdict = r.Assessment.Verdict
	}
	return s
}

func roundFloat(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func mustMarshalJSON(value any) json.RawMessage {
	data, _ := json.Marshal(value)
	return data
}
