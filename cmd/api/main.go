package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mondo989/ReallyGoodJob/internal/config"
	adminHandler "github.com/mondo989/ReallyGoodJob/internal/handler/admin"
	authHandler "github.com/mondo989/ReallyGoodJob/internal/handler/auth"
	campaignHandler "github.com/mondo989/ReallyGoodJob/internal/handler/campaign"
	healthHandler "github.com/mondo989/ReallyGoodJob/internal/handler/health"
	moodHandler "github.com/mondo989/ReallyGoodJob/internal/handler/mood"
	scheduleHandler "github.com/mondo989/ReallyGoodJob/internal/handler/schedule"
	trackingHandler "github.com/mondo989/ReallyGoodJob/internal/handler/tracking"
	"github.com/mondo989/ReallyGoodJob/internal/repository/postgres"
	"github.com/mondo989/ReallyGoodJob/internal/router"
	campaignService "github.com/mondo989/ReallyGoodJob/internal/service/campaign"
	credentialService "github.com/mondo989/ReallyGoodJob/internal/service/credential"
	"github.com/mondo989/ReallyGoodJob/internal/service/dispatch"
	"github.com/mondo989/ReallyGoodJob/internal/service/featureflag"
	quotaService "github.com/mondo989/ReallyGoodJob/internal/service/quota"
	scheduleService "github.com/mondo989/ReallyGoodJob/internal/service/schedule"
	templateService "github.com/mondo989/ReallyGoodJob/internal/service/template"
	"github.com/mondo989/ReallyGoodJob/pkg/auth"
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

	m := metrics.NewMetrics("reallygoodjob", "api")
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TokenExpiry)
	flags := featureflag.NewService(cfg.Features, cfg.Tiers)

	templateSvc := templateService.NewService(moodRepo, appLogger)
	if err := templateSvc.Seed(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to seed mood templates")
	}

	credentialSvc := credentialService.NewService(userRepo, encryptor, cfg.Google, appLogger, m)
	dispatchSvc := dispatch.NewService(credentialSvc, cfg.Tracking.BaseURL, appLogger)
	quotaSvc := quotaService.NewService(scheduleRepo, flags, appLogger, m)
	campaignSvc := campaignService.NewService(campaignRepo, scheduleRepo, emailLogRepo, appLogger)
	scheduleSvc := scheduleService.NewService(
		scheduleRepo, campaignRepo, recipientRepo, userRepo, emailLogRepo,
		templateSvc, quotaSvc, flags, dispatchSvc, broker, appLogger, m,
	)

	engine := router.New(cfg.Server, jwtService, appLogger, router.Handlers{
		Auth:     authHandler.NewHandler(userRepo, credentialSvc, jwtService, appLogger),
		Campaign: campaignHandler.NewHandler(campaignSvc, scheduleSvc),
		Schedule: scheduleHandler.NewHandler(scheduleSvc),
		Admin:    adminHandler.NewHandler(campaignSvc),
		Mood:     moodHandler.NewHandler(templateSvc),
		Tracking: trackingHandler.NewHandler(campaignSvc),
		Health:   healthHandler.NewHandler(db),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("api server starting", map[string]interface{}{"port": cfg.Server.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
}
