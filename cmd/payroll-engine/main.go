package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/castrometro/SGM-sub005/internal/payroll/category"
	"github.com/castrometro/SGM-sub005/internal/payroll/events"
	"github.com/castrometro/SGM-sub005/internal/payroll/provider"
	"github.com/castrometro/SGM-sub005/internal/payroll/repository"
	"github.com/castrometro/SGM-sub005/internal/payroll/service"
	"github.com/castrometro/SGM-sub005/internal/payroll/worker"
	"github.com/castrometro/SGM-sub005/pkg/config"
	"github.com/castrometro/SGM-sub005/pkg/database"
	"github.com/castrometro/SGM-sub005/pkg/joblock"
	"github.com/castrometro/SGM-sub005/pkg/logger"
	"github.com/castrometro/SGM-sub005/pkg/messaging"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load(config.GetEnv("SGM_ENV_FILE", ".env"))

	cfg, err := config.LoadWithValidation("payroll-engine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("payroll-engine", cfg.Server.Environment)
	log.Info().Msg("starting Payroll Engine")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue("payroll-engine"); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	publisher, err := events.NewPayrollEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	categories, err := category.NewConfigProvider(cfg.Categories)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid category mapping")
	}

	store := service.NewSQLStore(repository.NewStore(db))
	rows := provider.NewStagedRowProvider(db)
	locker := service.NewJobLocker(joblock.New(&cfg.Redis, cfg.Engine.JobLockTTL, log))

	jobService := service.NewJobService(store, rows, categories, locker, publisher, cfg.Engine.BatchSize, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobConsumer, err := worker.NewJobConsumer(rmq, jobService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create job consumer")
	}
	if err := jobConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start job consumer")
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","service":"payroll-engine"}`)
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		dbHealth := db.Health(req.Context())
		rmqHealth := rmq.Health()
		w.Header().Set("Content-Type", "application/json")
		if dbHealth["status"] != "up" || rmqHealth["status"] != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"database":%q,"rabbitmq":%q}`, dbHealth["status"], rmqHealth["status"])
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("health endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down Payroll Engine")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server shutdown failed")
	}
}
