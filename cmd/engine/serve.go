package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/totals-edge/internal/health"
	"github.com/yourusername/totals-edge/internal/repository"
	"github.com/yourusername/totals-edge/internal/scheduler"
	"github.com/yourusername/totals-edge/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, metrics and run updates, rerunning the pipeline on schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := health.NewHub(appLog)
	p, db, cleanup, err := buildPipeline(ctx, service.WithNotifier(hub))
	if err != nil {
		return err
	}
	defer cleanup()

	httpCfg := health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Commit:      GitCommit,
		Port:        cfg.Server.HTTPPort,
		Logger:      appLog,
		Hub:         hub,
	}
	if cfg.Metrics.Enabled {
		httpCfg.MetricsPath = cfg.Metrics.Path
	}
	if db != nil {
		httpCfg.DB = db
		repos, err := repository.NewRepositories(db)
		if err != nil {
			return err
		}
		httpCfg.Runs = repos.Run
	}
	httpServer := health.NewServer(httpCfg)
	grpcServer := health.NewGRPCServer(cfg.Server.GRPCPort, cfg.App.Name, appLog)

	go hub.Run(ctx)
	if err := httpServer.Start(ctx); err != nil {
		return err
	}
	if err := grpcServer.Start(ctx); err != nil {
		return err
	}

	sched := scheduler.NewScheduler(p, 0, appLog)
	if cfg.Server.Schedule != "" {
		if _, err := sched.SchedulePipeline(cfg.Server.Schedule, service.RunOptions{}); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
		if err := sched.Start(); err != nil {
			return err
		}
	}

	httpServer.SetReady(true)
	grpcServer.SetServing(true)
	appLog.WithFields(logrus.Fields{
		"http_port": cfg.Server.HTTPPort,
		"grpc_port": cfg.Server.GRPCPort,
		"schedule":  cfg.Server.Schedule,
		"next_run":  sched.GetNextRun(),
	}).Info("Engine serving")

	var eg errgroup.Group
	if cfg.Server.RunOnStart {
		eg.Go(func() error {
			if err := sched.RunNow(ctx, service.RunOptions{}); err != nil {
				appLog.WithError(err).Warn("Startup run failed")
			}
			return nil
		})
	}

	<-ctx.Done()
	appLog.Info("Shutdown signal received")
	httpServer.SetReady(false)
	grpcServer.SetServing(false)

	if err := sched.Stop(cfg.ShutdownTimeout()); err != nil {
		appLog.WithError(err).Warn("Scheduler did not stop cleanly")
	}
	return eg.Wait()
}
