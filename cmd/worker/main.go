package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/halcyon-health/halcyon/internal/app"
	"github.com/halcyon-health/halcyon/internal/audit"
	"github.com/halcyon-health/halcyon/internal/breakglass"
	jobmetrics "github.com/halcyon-health/halcyon/internal/jobs"
	"github.com/halcyon-health/halcyon/internal/observability"
	"github.com/halcyon-health/halcyon/internal/platform/db"
	"github.com/halcyon-health/halcyon/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditService := audit.NewService(audit.NewPGRepository(pool), logger)
	breakGlassService := breakglass.NewService(breakglass.NewPGRepository(pool), auditService, audit.ChainGlobal, cfg.BreakGlassMaxTTL, logger)

	appMetrics := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(appMetrics.Registerer())

	detectorCfg := audit.DetectorConfig{
		BruteForceThreshold: cfg.AuthFailureThreshold,
		BruteForceWindow:    cfg.AuthFailureWindow,
		AnomalyThreshold:    cfg.PHIAccessThreshold,
		AnomalyWindow:       cfg.PHIAccessWindow,
	}

	chainVerifyJob := jobs.NewChainVerifyJob(auditService, logger, metrics, appMetrics)
	anomalyScanJob := jobs.NewAnomalyScanJob(auditService, detectorCfg, logger, metrics)
	grantSweepJob := jobs.NewGrantSweepJob(breakGlassService, logger, metrics)

	chainVerifyTask, err := jobs.NewChainVerifyTask(jobs.ChainVerifyPayload{Chain: audit.ChainGlobal})
	if err != nil {
		logger.Error("build chain verify task", slog.Any("error", err))
		os.Exit(1)
	}
	anomalyScanTask, err := jobs.NewAnomalyScanTask(jobs.AnomalyScanPayload{WindowHours: 24})
	if err != nil {
		logger.Error("build anomaly scan task", slog.Any("error", err))
		os.Exit(1)
	}
	grantSweepTask, err := jobs.NewGrantSweepTask()
	if err != nil {
		logger.Error("build grant sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskChainVerify, Handler: chainVerifyJob.Handle},
			{Type: jobs.TaskAnomalyScan, Handler: anomalyScanJob.Handle},
			{Type: jobs.TaskGrantSweep, Handler: grantSweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: chainVerifyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: anomalyScanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: grantSweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
