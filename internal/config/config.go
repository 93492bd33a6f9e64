// Package config provides configuration management for the totals-edge engine.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Model    ModelConfig    `mapstructure:"model" validate:"required"`
	Strategy StrategyConfig `mapstructure:"strategy" validate:"required"`
	Features FeaturesConfig `mapstructure:"features"`
	Bankroll BankrollConfig `mapstructure:"bankroll" validate:"required"`
	Pairing  PairingConfig  `mapstructure:"pairing"`
	Data     DataConfig     `mapstructure:"data"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
	AWS      AWSConfig      `mapstructure:"aws"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// ModelConfig configures the forecasting stack and its evaluation
type ModelConfig struct {
	OULine           float64       `mapstructure:"ou_line" validate:"gt=0"`
	PoissonMaxGoals  int           `mapstructure:"poisson_max_goals" validate:"gt=0,lte=30"`
	TimeSeriesSplits int           `mapstructure:"time_series_splits" validate:"gte=2"`
	FeatureColumns   []string      `mapstructure:"feature_columns"`
	FoldWorkers      int           `mapstructure:"fold_workers" validate:"gte=0"`
	GridWorkers      int           `mapstructure:"grid_workers" validate:"gte=0"`
	CacheTTLSeconds  int           `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
	Booster          BoosterConfig `mapstructure:"booster"`
	Meta             MetaConfig    `mapstructure:"meta"`
}

// BoosterConfig holds gradient-boosting hyper-parameters shared by both base regressors
type BoosterConfig struct {
	NEstimators    int     `mapstructure:"n_estimators" validate:"gt=0"`
	LearningRate   float64 `mapstructure:"learning_rate" validate:"gt=0,lte=1"`
	MaxDepth       int     `mapstructure:"max_depth" validate:"gt=0"`
	MinSamplesLeaf int     `mapstructure:"min_samples_leaf" validate:"gt=0"`
	Subsample      float64 `mapstructure:"subsample" validate:"gt=0,lte=1"`
	Seed           int64   `mapstructure:"seed"`
}

// MetaConfig holds the logistic meta-learner settings
type MetaConfig struct {
	C         float64 `mapstructure:"c" validate:"gt=0"`
	MaxIter   int     `mapstructure:"max_iter" validate:"gt=0"`
	Tolerance float64 `mapstructure:"tolerance" validate:"gt=0"`
}

// StrategyConfig represents the gating thresholds and staking rules
type StrategyConfig struct {
	FractionalKelly           float64 `mapstructure:"fractional_kelly" validate:"gt=0,lte=1"`
	MinEVThreshold            float64 `mapstructure:"min_ev_threshold"`
	MinProbThreshold          float64 `mapstructure:"min_prob_threshold" validate:"probability"`
	MinOdds                   float64 `mapstructure:"min_odds"`
	MaxStakePct               float64 `mapstructure:"max_stake_pct" validate:"gt=0"`
	DisagreementSkipThreshold float64 `mapstructure:"disagreement_skip_threshold" validate:"probability"`
}

// FeaturesConfig controls derived market features
type FeaturesConfig struct {
	SteamThreshold float64 `mapstructure:"steam_threshold" validate:"gte=0"`
}

// BankrollConfig represents the replay and risk-simulation settings
type BankrollConfig struct {
	Initial              float64 `mapstructure:"initial"`
	StopLossConsecutive  int     `mapstructure:"stop_loss_consecutive" validate:"gt=0"`
	MonteCarloIterations int     `mapstructure:"monte_carlo_iterations" validate:"gte=0"`
	MonteCarloSeed       int64   `mapstructure:"monte_carlo_seed"`
	MonteCarloWorkers    int     `mapstructure:"monte_carlo_workers" validate:"gte=0"`
	RuinFraction         float64 `mapstructure:"ruin_fraction" validate:"probability"`
	RiskFreeRate         float64 `mapstructure:"risk_free_rate"`
}

// PairingConfig controls double construction
type PairingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	PreferCrossLeague bool `mapstructure:"prefer_cross_league"`
}

// DataConfig describes where matches come from. Path may be a local CSV file or an http(s) URL.
type DataConfig struct {
	Path               string  `mapstructure:"path"`
	APIToken           string  `mapstructure:"api_token"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds" validate:"gt=0"`
	RetryMax           int     `mapstructure:"retry_max" validate:"gte=0"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" validate:"gte=0"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst" validate:"gte=0"`
	SyntheticMatches   int     `mapstructure:"synthetic_matches" validate:"gte=0"`
	SyntheticSeed      int64   `mapstructure:"synthetic_seed"`
}

// OutputConfig controls report artefacts
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	WriteCSV  bool   `mapstructure:"write_csv"`
	WriteJSON bool   `mapstructure:"write_json"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port" validate:"min=0,max=65535"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"gte=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"gte=0"`
}

// MetricsConfig represents Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServerConfig configures serve mode
type ServerConfig struct {
	HTTPPort               int    `mapstructure:"http_port" validate:"min=0,max=65535"`
	GRPCPort               int    `mapstructure:"grpc_port" validate:"min=0,max=65535"`
	Schedule               string `mapstructure:"schedule" validate:"omitempty,cronspec"`
	RunOnStart             bool   `mapstructure:"run_on_start"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=0"`
}

// AWSConfig controls the optional Secrets Manager overlay
type AWSConfig struct {
	Region         string `mapstructure:"region"`
	SecretsEnabled bool   `mapstructure:"secrets_enabled"`
	SecretName     string `mapstructure:"secret_name"`
}

// TracingConfig controls AWS X-Ray segments around pipeline runs
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	SamplingRate float64 `mapstructure:"sampling_rate" validate:"probability"`
	DaemonAddr   string  `mapstructure:"daemon_addr"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.Database.User),
		url.QueryEscape(c.Database.Password),
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// IsRemoteData reports whether the data path should be fetched over HTTP
func (c *Config) IsRemoteData() bool {
	p := strings.ToLower(c.Data.Path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// DataTimeout returns the per-request timeout for remote data
func (c *Config) DataTimeout() time.Duration {
	return time.Duration(c.Data.TimeoutSeconds) * time.Second
}

// CacheTTL returns the probability grid cache expiry
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Model.CacheTTLSeconds) * time.Second
}

// ShutdownTimeout returns the serve-mode graceful shutdown window
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
