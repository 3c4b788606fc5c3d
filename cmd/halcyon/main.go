package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halcyon-health/halcyon/internal/app"
	"github.com/halcyon-health/halcyon/internal/audit"
	audithttp "github.com/halcyon-health/halcyon/internal/audit/http"
	"github.com/halcyon-health/halcyon/internal/breakglass"
	breakglasshttp "github.com/halcyon-health/halcyon/internal/breakglass/http"
	"github.com/halcyon-health/halcyon/internal/crypto"
	"github.com/halcyon-health/halcyon/internal/mfa"
	mfahttp "github.com/halcyon-health/halcyon/internal/mfa/http"
	"github.com/halcyon-health/halcyon/internal/observability"
	"github.com/halcyon-health/halcyon/internal/phi"
	phihttp "github.com/halcyon-health/halcyon/internal/phi/http"
	"github.com/halcyon-health/halcyon/internal/platform/cache"
	"github.com/halcyon-health/halcyon/internal/platform/db"
	"github.com/halcyon-health/halcyon/internal/rbac"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	masterSecret := []byte(cfg.MasterSecret)
	masterSalt := []byte(cfg.MasterKeySalt)
	phiKey := crypto.DeriveKey(masterSecret, masterSalt, "phi-field", cfg.KDFIterations)
	mfaKey := crypto.DeriveKey(masterSecret, masterSalt, "mfa-secret", cfg.KDFIterations)
	defer crypto.ZeroBytes(phiKey)
	defer crypto.ZeroBytes(mfaKey)

	phiEngine, err := crypto.NewEngine(phiKey, "phi-field")
	if err != nil {
		logger.Error("init phi engine", slog.Any("error", err))
		os.Exit(1)
	}
	mfaEngine, err := crypto.NewEngine(mfaKey, "mfa-secret")
	if err != nil {
		logger.Error("init mfa engine", slog.Any("error", err))
		os.Exit(1)
	}

	model, err := rbac.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		logger.Error("load policy", slog.Any("error", err))
		os.Exit(1)
	}

	auditService := audit.NewService(audit.NewPGRepository(pool), logger)
	detector := audit.NewDetector(redisClient, audit.DetectorConfig{
		BruteForceThreshold: cfg.AuthFailureThreshold,
		BruteForceWindow:    cfg.AuthFailureWindow,
		AnomalyThreshold:    cfg.PHIAccessThreshold,
		AnomalyWindow:       cfg.PHIAccessWindow,
	})
	recorder := audit.NewRecorder(auditService, detector, audit.ChainGlobal, logger)

	breakGlassService := breakglass.NewService(breakglass.NewPGRepository(pool), auditService, audit.ChainGlobal, cfg.BreakGlassMaxTTL, logger)

	evaluator := rbac.NewEvaluator(model, breakGlassService, recorder, logger)
	rbacMiddleware := rbac.Middleware{Evaluator: evaluator, Logger: logger}

	mfaService := mfa.NewService(mfa.NewPGRepository(pool, mfaEngine), cfg.MFAIssuer, logger)

	vault := phi.NewVault(phiEngine, phi.NewPGRepository(pool))

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuditHandler:      audithttp.NewHandler(auditService, logger),
		MFAHandler:        mfahttp.NewHandler(mfaService, logger, metrics),
		BreakGlassHandler: breakglasshttp.NewHandler(breakGlassService, logger),
		PHIHandler:        phihttp.NewHandler(vault, auditService, logger),
		RBACMiddleware:    rbacMiddleware,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
