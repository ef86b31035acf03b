package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/audit"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/config"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/infrastructure/email"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/infrastructure/memory"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/infrastructure/postgres"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/infrastructure/rabbitmq"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/infrastructure/redis"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/notify"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/pkg/logger"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/security"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/service"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/transport/rest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type storage struct {
	directory domain.WebinarDirectory
	ledger    domain.ParticipationLedger
	store     domain.WebinarStore
	pg        *postgres.Repository // nil for memory storage
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	if cfg.LogLevel != "" {
		_ = os.Setenv("LOG_LEVEL", cfg.LogLevel)
	}

	logger.Init()
	log := logger.Logger.With().
		Str("env", cfg.AppEnv).
		Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLog := audit.New(logger.Logger)
	var checks []rest.HealthCheck

	// ---- Storage ----
	var st storage
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		dbPool, err := pgxpool.New(rootCtx, cfg.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres pool create failed")
		}
		defer dbPool.Close()

		pingCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		err = dbPool.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("postgres ping failed")
		}
		log.Info().Msg("postgres connected")

		if cfg.DBMigrate {
			if err := postgres.Migrate(rootCtx, dbPool); err != nil {
				log.Fatal().Err(err).Msg("migration failed")
			}
			log.Info().Msg("migrations applied")
		}

		repo := postgres.New(dbPool)
		st = storage{directory: repo, ledger: repo, store: repo, pg: repo}
		checks = append(checks, rest.HealthCheck{Name: "postgres", Check: repo.Ping})

	default:
		parts := memory.NewParticipationRepository()
		webinars := memory.NewWebinarRepository(parts)
		st = storage{directory: webinars, ledger: parts, store: webinars}
		log.Warn().Msg("using in-memory storage; bookings are lost on restart and not shared across replicas")
	}

	// ---- Redis (sold-out cache + shared rate limit) ----
	var cache *redis.Cache
	if cfg.RedisEnabled {
		cache = redis.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.SoldOutTTL)
		defer func() { _ = cache.Close() }()

		pingCtx, cancel := context.WithTimeout(rootCtx, 2*time.Second)
		err := cache.Ping(pingCtx)
		cancel()
		if err != nil {
			// advisory only; the booking path ignores cache errors
			log.Warn().Err(err).Msg("redis ping failed (continuing)")
		} else {
			log.Info().Msg("redis connected")
		}
		checks = append(checks, rest.HealthCheck{Name: "redis", Check: cache.Ping})
	}

	// ---- Notifier ----
	notifier := buildNotifier(cfg, st, logger.Logger)

	// ---- Application service ----
	opts := []service.Option{
		service.WithAudit(auditLog),
		service.WithLogger(logger.Logger),
		service.WithLockTimeout(cfg.LockTimeout),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
	}
	if cache != nil {
		opts = append(opts, service.WithSoldOutCache(cache))
	}
	svc := service.NewBookingService(st.directory, st.ledger, notifier, opts...)

	// ---- JWT verifier ----
	verifier := security.NewHS256Verifier(cfg.JWTSecret, security.WithIssuer(cfg.JWTIssuer))

	// ---- Router ----
	deps := rest.RouterDeps{
		Handler:   rest.NewHandler(svc, checks...),
		Verifier:  verifier,
		RLEnabled: cfg.RLEnabled,
		RLLimit:   cfg.RLLimit,
		RLWindow:  cfg.RLWindow,
		JWTIssuer: cfg.JWTIssuer,
	}
	if cache != nil {
		deps.Limiter = cache
	}
	httpHandler := rest.NewRouter(deps)

	// ---- MQ consumer (inbound webinar snapshots) ----
	if cfg.ConsumerEnabled {
		consumerOpts := []rabbitmq.Option{rabbitmq.WithAudit(auditLog)}
		if cache != nil {
			consumerOpts = append(consumerOpts, rabbitmq.WithSoldOutCache(cache))
		}
		mqConsumer := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, st.store, consumerOpts...)
		if err := mqConsumer.Start(rootCtx); err != nil {
			log.Error().Err(err).Msg("snapshot consumer failed to start")
		}
	}

	// ---- Outbox worker (outbound notification emails) ----
	if st.pg != nil && cfg.OutboxEnabled {
		postgres.NewOutboxWorker(st.pg, cfg.RabbitURL, cfg.RabbitExchange, auditLog).Start(rootCtx)
		log.Info().Msg("outbox worker started")
	}

	// ---- HTTP server ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("storage", cfg.StorageDriver).Str("notifier", cfg.NotifierDriver).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server crashed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}

// buildNotifier picks the delivery backend. Direct senders get in-process
// retries; the outbox already retries through its worker.
func buildNotifier(cfg *config.Config, st storage, lg zerolog.Logger) domain.Notifier {
	retry := notify.Config{
		MaxAttempts:  cfg.NotifyMaxAttempts,
		InitialDelay: cfg.NotifyBaseDelay,
	}

	switch cfg.NotifierDriver {
	case config.NotifierOutbox:
		return postgres.NewOutboxNotifier(st.pg)
	case config.NotifierSMTP:
		sender := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.SMTP.Timeout,
			Insecure: cfg.SMTP.Insecure,
		}, email.DomainResolver{Domain: cfg.SMTP.RecipientDomain}, lg)
		return notify.NewRetrying(sender, retry, lg)
	default:
		return notify.NewRetrying(email.NewLogSender(lg), retry, lg)
	}
}
