// Package main provides the totals-edge command line: run, evaluate, generate and serve.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/totals-edge/internal/config"
	"github.com/yourusername/totals-edge/internal/database"
	"github.com/yourusername/totals-edge/internal/datasource"
	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/metrics"
	"github.com/yourusername/totals-edge/internal/repository"
	"github.com/yourusername/totals-edge/internal/service"
	"github.com/yourusername/totals-edge/internal/tracing"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var (
	configFile string
	logLevel   string
	dataPath   string
	outputDir  string
	evalOnly   bool

	genMatches int
	genSeed    int64
	genOut     string

	cfg    *config.Config
	appLog *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	for _, cmd := range []*cobra.Command{runCmd, evaluateCmd} {
		cmd.Flags().StringVarP(&dataPath, "data", "d", "", "CSV file or http(s) URL; empty uses the configured path or synthetic data")
		cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Report directory (overrides output.dir)")
	}
	runCmd.Flags().BoolVar(&evalOnly, "evaluate-only", false, "Stop after cross-validation")

	generateCmd.Flags().IntVarP(&genMatches, "matches", "n", 500, "Number of matches to generate")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 42, "Random seed")
	generateCmd.Flags().StringVar(&genOut, "out", "-", "Output CSV path, - for stdout")

	rootCmd.AddCommand(runCmd, evaluateCmd, generateCmd, serveCmd)
}

var rootCmd = &cobra.Command{
	Use:           "engine",
	Short:         "Over/under goals forecasting and staking engine",
	Long:          `Calibrates over/under probabilities, gates value bets, pairs doubles and replays the bankroll.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == generateCmd {
			appLog = logger.NewLogger("warn")
			return nil
		}
		return loadConfig(cmd.Context())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), service.RunOptions{DataPath: dataPath, OutputDir: outputDir, EvaluateOnly: evalOnly})
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Cross-validate the forecasting stack without staking",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), service.RunOptions{DataPath: dataPath, OutputDir: outputDir, EvaluateOnly: true})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic match CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		return generate(cmd.OutOrStdout())
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func loadConfig(ctx context.Context) error {
	var err error
	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.ReloadFromEnv(cfg); err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	if err := config.LoadSecretsFromAWS(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLog = logger.New(cfg.App.LogLevel, cfg.App.Environment)
	metrics.InitRegistry()
	if err := tracing.Initialize(tracing.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: Version,
		Enabled:        cfg.Tracing.Enabled,
		SamplingRate:   cfg.Tracing.SamplingRate,
		DaemonAddr:     cfg.Tracing.DaemonAddr,
	}, appLog); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	appLog.WithFields(logrus.Fields{
		"config":      configFile,
		"environment": cfg.App.Environment,
		"version":     Version,
	}).Debug("Configuration loaded")
	return nil
}

// buildPipeline wires the pipeline, connecting to Postgres when persistence is enabled.
// The returned cleanup closes whatever was opened.
func buildPipeline(ctx context.Context, opts ...service.Option) (*service.Pipeline, *database.DB, func(), error) {
	cleanup := func() {}
	var db *database.DB

	if cfg.Database.Enabled {
		var err error
		db, err = database.Initialize(ctx, cfg, appLog)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("failed to initialize database: %w", err)
		}
		cleanup = db.Close

		repos, err := repository.NewRepositories(db)
		if err != nil {
			db.Close()
			return nil, nil, func() {}, err
		}
		opts = append(opts, service.WithRunRepository(repos.Run))
	}

	p, err := service.NewPipeline(cfg, appLog, opts...)
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	return p, db, cleanup, nil
}

func runPipeline(ctx context.Context, opts service.RunOptions) error {
	p, _, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.Run(ctx, opts)
	if err != nil {
		return err
	}
	for _, f := range result.Files {
		appLog.WithField("file", f).Info("Report written")
	}
	return nil
}

func generate(stdout io.Writer) error {
	rows := datasource.GenerateSynthetic(genMatches, genSeed)

	if genOut == "" || genOut == "-" {
		w := bufio.NewWriter(stdout)
		if err := datasource.WriteSyntheticCSV(w, rows); err != nil {
			return err
		}
		return w.Flush()
	}

	if err := os.MkdirAll(filepath.Dir(genOut), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(genOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", genOut, err)
	}
	if err := datasource.WriteSyntheticCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.WithFields(logrus.Fields{"path": genOut, "matches": len(rows)}).Warn("Synthetic data written")
	return nil
}
