// Package datasource loads match tables from CSV files, HTTP endpoints or the synthetic generator.
package datasource

import (
	"context"
	"errors"

	"github.com/yourusername/totals-edge/internal/models"
)

// Source produces a chronologically ordered match batch
type Source interface {
	// Load reads every match the source provides
	Load(ctx context.Context) (models.Batch, error)

	// Name returns the name of the data source
	Name() string
}

// DataSourceError represents errors from data source operations
type DataSourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e DataSourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

// Unwrap returns the underlying error
func (e DataSourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
)

var (
	ErrMissingColumn   = errors.New("required column missing")
	ErrNoFeatures      = errors.New("no numeric feature columns")
	ErrUnknownFeature  = errors.New("configured feature column not found")
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrUnexpectedReply = errors.New("unexpected HTTP status")
)

// NewDataSourceError creates a new data source error
func NewDataSourceError(source, code, message string, err error) DataSourceError {
	return DataSourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
