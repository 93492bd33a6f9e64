package models

// Prediction is the forward-pass output for one match
type Prediction struct {
	ProbOver  float64 `json:"prob_over"`
	ProbUnder float64 `json:"prob_under"`
	PredHome  float64 `json:"pred_home"`
	PredAway  float64 `json:"pred_away"`
	PredTotal float64 `json:"pred_total"`
}

// For returns the calibrated probability of a side
func (p Prediction) For(side Side) float64 {
	if side == SideUnder {
		return p.ProbUnder
	}
	return p.ProbOver
}

// FoldMetrics holds out-of-sample scores for one cross-validation fold
type FoldMetrics struct {
	Fold      int     `json:"fold"`
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	Brier     float64 `json:"brier_score"`
	LogLoss   float64 `json:"log_loss"`
}

// Evaluation aggregates fold metrics in fold order
type Evaluation struct {
	Folds       []FoldMetrics `json:"folds"`
	MeanBrier   float64       `json:"brier_score"`
	StdBrier    float64       `json:"brier_std"`
	MeanLogLoss float64       `json:"log_loss"`
	StdLogLoss  float64       `json:"log_loss_std"`
}

// FeatureImportance is one row of the importance table
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}
