package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/totals-edge/internal/models"
)

// RunRecord is everything persisted for one pipeline run
type RunRecord struct {
	Summary         models.RunSummary
	Recommendations []models.BetRecommendation
	Ledger          []models.LedgerEntry
}

// RunRepository defines run persistence
type RunRepository interface {
	// SaveRun writes the summary, recommendations and ledger in one transaction
	SaveRun(ctx context.Context, run *RunRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RunSummary, error)
	GetLatest(ctx context.Context, limit int) ([]*models.RunSummary, error)
	GetRecommendations(ctx context.Context, runID uuid.UUID) ([]models.BetRecommendation, error)
	GetLedger(ctx context.Context, runID uuid.UUID) ([]models.LedgerEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
