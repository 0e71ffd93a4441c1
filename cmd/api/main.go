package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mathi4s/gatehouse/internal/admission"
	"github.com/mathi4s/gatehouse/internal/api/routes"
	"github.com/mathi4s/gatehouse/internal/config"
	"github.com/mathi4s/gatehouse/internal/database"
	"github.com/mathi4s/gatehouse/internal/geo"
	"github.com/mathi4s/gatehouse/internal/logger"
	"github.com/mathi4s/gatehouse/internal/payments"
	"github.com/mathi4s/gatehouse/internal/reputation"
	"github.com/mathi4s/gatehouse/internal/server"
	"github.com/mathi4s/gatehouse/internal/services"
	"github.com/mathi4s/gatehouse/internal/version"
)

// blockRetention keeps expired blocks around for audit before the nightly
// purge removes them.
const blockRetention = 30 * 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Log().WithError(err).Fatal("load config")
	}

	logDir := filepath.Join(filepath.Dir(cfg.DatabasePath), "logs")
	_ = os.MkdirAll(logDir, 0o755)
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "gatehouse.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.WithFields(map[string]interface{}{
		"version": version.Full(),
		"env":     cfg.Environment,
	}).Infof("starting %s", version.Name)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Log().WithError(err).Fatal("open database")
	}

	deps := buildDeps(cfg)

	srv, err := server.New(db, cfg, deps)
	if err != nil {
		logger.Log().WithError(err).Fatal("build server")
	}

	// Maintenance jobs: hourly window sweep, nightly expired-block purge.
	moderation := services.NewModerationService(db)
	scheduler := cron.New()
	_, _ = scheduler.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if removed, err := deps.WindowStore.Sweep(ctx, time.Hour, time.Now()); err == nil && removed > 0 {
			logger.WithFields(map[string]interface{}{"removed": removed}).Info("swept idle rate-limit windows")
		}
	})
	_, _ = scheduler.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := moderation.PurgeExpired(ctx, blockRetention); err != nil {
			logger.Log().WithError(err).Warn("expired block purge failed")
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{"port": cfg.HTTPPort}).Info("listening")
	if err := srv.Run(ctx); err != nil {
		logger.Log().WithError(err).Fatal("server error")
	}
	logger.Log().Info("shutdown complete")
}

// buildDeps assembles the optional external collaborators from config.
// Anything unconfigured degrades to a disabled implementation.
func buildDeps(cfg config.Config) routes.Deps {
	deps := routes.Deps{
		WindowStore: admission.NewMemoryStore(),
		Reputation:  reputation.Disabled{},
		Geo:         geo.Noop{},
		Registry:    prometheus.NewRegistry(),
	}

	if cfg.Admission.RedisURL != "" {
		store, err := admission.NewRedisStore(cfg.Admission.RedisURL)
		if err != nil {
			logger.Log().WithError(err).Warn("redis unavailable, using in-memory rate limits")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.Log().WithError(err).Warn("redis unreachable, using in-memory rate limits")
			} else {
				deps.WindowStore = store
				logger.Log().Info("rate-limit windows stored in redis")
			}
		}
	}

	if cfg.Admission.ReputationURL != "" {
		deps.Reputation = reputation.NewClient(cfg.Admission.ReputationURL, cfg.Admission.ReputationKey, cfg.Admission.ReputationTimeout)
	}

	if cfg.Geo.GeoLitePath != "" {
		resolver, err := geo.OpenMMDB(cfg.Geo.GeoLitePath)
		if err != nil {
			logger.Log().WithError(err).Warn("geoip database unavailable, using HTTP lookup")
		} else {
			deps.Geo = resolver
		}
	}
	if _, ok := deps.Geo.(geo.Noop); ok && cfg.Geo.LookupURL != "" {
		deps.Geo = geo.NewHTTPResolver(cfg.Geo.LookupURL)
	}

	if cfg.Mail.TenantID != "" && cfg.Mail.ClientID != "" && cfg.Mail.ClientSecret != "" {
		deps.Mailer = services.NewGraphMailer(cfg.Mail)
	}

	if cfg.Payments.SecretKey != "" {
		deps.Gateway = payments.NewClient(cfg.Payments.SecretKey, cfg.Payments.WebhookSecret, "")
	}

	return deps
}
