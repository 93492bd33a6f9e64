package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "TOTALS_EDGE"
	defaultConfigPath = "config/config.yaml"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return unmarshal(v)
}

// LoadWithDefaults loads configuration, tolerating a missing file.
// Defaults and TOTALS_EDGE_* environment variables fill whatever the file leaves out.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// ReloadFromEnv replaces cfg with the file named by TOTALS_EDGE_CONFIG_PATH, if set
func ReloadFromEnv(cfg *Config) error {
	envPath := os.Getenv(envPrefix + "_CONFIG_PATH")
	if envPath == "" {
		return nil
	}
	newCfg, err := Load(envPath)
	if err != nil {
		return err
	}
	*cfg = *newCfg
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that env overrides apply even when the file omits it
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "totals-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("model.ou_line", 2.5)
	v.SetDefault("model.poisson_max_goals", 10)
	v.SetDefault("model.time_series_splits", 5)
	v.SetDefault("model.feature_columns", []string{})
	v.SetDefault("model.fold_workers", 1)
	v.SetDefault("model.grid_workers", 1)
	v.SetDefault("model.cache_ttl_seconds", 600)
	v.SetDefault("model.booster.n_estimators", 100)
	v.SetDefault("model.booster.learning_rate", 0.05)
	v.SetDefault("model.booster.max_depth", 3)
	v.SetDefault("model.booster.min_samples_leaf", 5)
	v.SetDefault("model.booster.subsample", 0.8)
	v.SetDefault("model.booster.seed", 42)
	v.SetDefault("model.meta.c", 1.0)
	v.SetDefault("model.meta.max_iter", 100)
	v.SetDefault("model.meta.tolerance", 1e-8)

	v.SetDefault("strategy.fractional_kelly", 0.25)
	v.SetDefault("strategy.min_ev_threshold", 0.05)
	v.SetDefault("strategy.min_prob_threshold", 0.80)
	v.SetDefault("strategy.min_odds", 1.75)
	v.SetDefault("strategy.max_stake_pct", 0.03)
	v.SetDefault("strategy.disagreement_skip_threshold", 0.20)

	v.SetDefault("features.steam_threshold", 0.05)

	v.SetDefault("bankroll.initial", 1000.0)
	v.SetDefault("bankroll.stop_loss_consecutive", 5)
	v.SetDefault("bankroll.monte_carlo_iterations", 1000)
	v.SetDefault("bankroll.monte_carlo_seed", 42)
	v.SetDefault("bankroll.monte_carlo_workers", 4)
	v.SetDefault("bankroll.ruin_fraction", 0.5)
	v.SetDefault("bankroll.risk_free_rate", 0.0)

	v.SetDefault("pairing.enabled", true)
	v.SetDefault("pairing.prefer_cross_league", true)

	v.SetDefault("data.path", "")
	v.SetDefault("data.api_token", "")
	v.SetDefault("data.timeout_seconds", 30)
	v.SetDefault("data.retry_max", 3)
	v.SetDefault("data.rate_limit_per_second", 2.0)
	v.SetDefault("data.rate_limit_burst", 1)
	v.SetDefault("data.synthetic_matches", 500)
	v.SetDefault("data.synthetic_seed", 42)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.write_csv", true)
	v.SetDefault("output.write_json", true)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "totals_edge")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.grpc_port", 9091)
	v.SetDefault("server.schedule", "0 6 * * *")
	v.SetDefault("server.run_on_start", true)
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("aws.region", "eu-west-1")
	v.SetDefault("aws.secrets_enabled", false)
	v.SetDefault("aws.secret_name", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.sampling_rate", 0.1)
	v.SetDefault("tracing.daemon_addr", "127.0.0.1:2000")
}
