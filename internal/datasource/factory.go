package datasource

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/config"
	"github.com/yourusername/totals-edge/internal/logger"
)

// SourceType represents the type of data source
type SourceType string

const (
	CSVSourceType       SourceType = "csv"
	HTTPSourceType      SourceType = "http"
	SyntheticSourceType SourceType = "synthetic"
)

// Factory creates Source implementations based on configuration
type Factory struct {
	logger *logrus.Logger
	config *config.Config
}

// NewFactory creates a new data source factory
func NewFactory(cfg *config.Config, log *logrus.Logger) *Factory {
	return &Factory{
		logger: logger.OrDiscard(log),
		config: cfg,
	}
}

// Resolve picks the source type for a data path: empty means synthetic, http(s) means remote
func (f *Factory) Resolve(path string) SourceType {
	probe := config.Config{Data: config.DataConfig{Path: path}}
	switch {
	case path == "":
		return SyntheticSourceType
	case probe.IsRemoteData():
		return HTTPSourceType
	default:
		return CSVSourceType
	}
}

// NewSource builds the source for path, falling back to the configured data path when empty
func (f *Factory) NewSource(path string) (Source, error) {
	if f.config == nil {
		return nil, fmt.Errorf("data source factory requires configuration")
	}
	if path == "" {
		path = f.config.Data.Path
	}

	opts := CSVOptions{
		FeatureColumns: f.config.Model.FeatureColumns,
		SteamThreshold: f.config.Features.SteamThreshold,
	}

	sourceType := f.Resolve(path)
	f.logger.WithFields(logrus.Fields{"type": sourceType, "path": path}).Debug("Creating data source")

	switch sourceType {
	case SyntheticSourceType:
		return NewSyntheticSource(f.config.Data.SyntheticMatches, f.config.Data.SyntheticSeed, opts, f.logger), nil
	case HTTPSourceType:
		client := NewRateLimitedHTTPClient(f.httpConfig(), f.logger)
		return NewHTTPSource(path, f.config.Data.APIToken, opts, client, f.logger), nil
	default:
		return NewCSVSource(path, opts, f.logger), nil
	}
}

func (f *Factory) httpConfig() HTTPClientConfig {
	hc := DefaultHTTPClientConfig()
	if t := f.config.DataTimeout(); t > 0 {
		hc.Timeout = t
	}
	hc.MaxRetries = f.config.Data.RetryMax
	hc.RateLimit = f.config.Data.RateLimitPerSecond
	if f.config.Data.RateLimitBurst > 0 {
		hc.Burst = f.config.Data.RateLimitBurst
	}
	return hc
}
