package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mondo989/ReallyGoodJob/internal/config"
	"github.com/mondo989/ReallyGoodJob/internal/repository/postgres"
	campaignService "github.com/mondo989/ReallyGoodJob/internal/service/campaign"
	credentialService "github.com/mondo989/ReallyGoodJob/internal/service/credential"
	"github.com/mondo989/ReallyGoodJob/internal/service/dispatch"
	"github.com/mondo989/ReallyGoodJob/internal/service/featureflag"
	quotaService "github.com/mondo989/ReallyGoodJob/internal/service/quota"
	scheduleService "github.com/mondo989/ReallyGoodJob/internal/service/schedule"
	templateService "github.com/mondo989/ReallyGoodJob/internal/service/template"
	"github.com/mondo989/ReallyGoodJob/internal/worker"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
	"github.com/mondo989/ReallyGoodJob/pkg/messaging"
	redisBroker "github.com/mondo989/ReallyGoodJob/pkg/messaging/redis"
	"github.com/mondo989/ReallyGoodJob/pkg/metrics"
	"github.com/mondo989/ReallyGoodJob/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	campaignRepo := postgres.NewCampaignRepository(base)
	recipientRepo := postgres.NewRecipientRepository(base)
	scheduleRepo := postgres.NewScheduleRepository(base)
	emailLogRepo := postgres.NewEmailLogRepository(base)
	moodRepo := postgres.NewMoodRepository(base)

	encryptor, err := security.NewAESEncryptor([]byte(cfg.Encryption.Key))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize encryptor")
	}

	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		zl := log.Logger
		broker, err = redisBroker.NewRedisBroker(redisBroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer broker.Close()
	}

	m := metrics.NewMetrics("reallygoodjob", "worker")
	startMetricsServer(cfg.Scheduler.MetricsPort, appLogger)
	flags := featureflag.NewService(cfg.Features, cfg.Tiers)

	templateSvc := templateService.NewService(moodRepo, appLogger)
	credentialSvc := credentialService.NewService(userRepo, encryptor, cfg.Google, appLogger, m)
	dispatchSvc := dispatch.NewService(credentialSvc, cfg.Tracking.BaseURL, appLogger)
	quotaSvc := quotaService.NewService(scheduleRepo, flags, appLogger, m)
	campaignSvc := campaignService.NewService(campaignRepo, scheduleRepo, emailLogRepo, appLogger)
	scheduleSvc := scheduleService.NewService(
		scheduleRepo, campaignRepo, recipientRepo, userRepo, emailLogRepo,
		templateSvc, quotaSvc, flags, dispatchSvc, broker, appLogger, m,
	)

	trigger := worker.NewTrigger(
		scheduleRepo, scheduleSvc, quotaSvc, campaignSvc,
		cfg.Scheduler, appLogger, m,
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	if err := trigger.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("trigger exited")
	}
}

// metricsMux exposes the scrape endpoint plus liveness for the worker
// process, which runs no gin server of its own.
func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func startMetricsServer(port int, appLogger *logger.Logger) {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), metricsMux()); err != nil {
			appLogger.Error(err, "metrics server exited")
			os.Exit(1)
		}
	}()
}
