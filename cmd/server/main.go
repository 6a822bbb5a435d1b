package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/content-pipeline/internal/ai"
	"github.com/suPer8Hu/content-pipeline/internal/analytics"
	"github.com/suPer8Hu/content-pipeline/internal/config"
	"github.com/suPer8Hu/content-pipeline/internal/db"
	"github.com/suPer8Hu/content-pipeline/internal/httpapi"
	"github.com/suPer8Hu/content-pipeline/internal/httpapi/middleware"
	"github.com/suPer8Hu/content-pipeline/internal/instructions"
	"github.com/suPer8Hu/content-pipeline/internal/jobs"
	"github.com/suPer8Hu/content-pipeline/internal/logging"
	"github.com/suPer8Hu/content-pipeline/internal/pipeline"
	"github.com/suPer8Hu/content-pipeline/internal/store/rabbitmq"
	"github.com/suPer8Hu/content-pipeline/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := ai.NewDefaultRegistry(cfg.ProviderSettings())
	provider, err := reg.Get(ctx, cfg.AIProvider, cfg.AIModel)
	if err != nil {
		log.Fatal().Err(err).Strs("available", reg.Names()).Msg("ai provider")
	}
	runner := pipeline.New(provider, instructions.NewLoader(cfg.InstructionsDir), cfg.StageTimeout)

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("analytics ledger")
	}

	notifiers := []jobs.Notifier{analytics.Notifier(ledger)}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("rabbit publisher")
		}
		defer pub.Close()
		notifiers = append(notifiers, pub)
		log.Info().Str("queue", cfg.RabbitQueue).Msg("publishing job events")
	}

	var limiter middleware.Limiter = middleware.NewMemoryLimiter()
	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rs.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping")
		}
		defer rs.Close()
		limiter = rs
	}

	svc := jobs.NewService(jobs.NewStore(), runner, jobs.Options{
		MaxConcurrent: int64(cfg.MaxConcurrentJobs),
		Logger:        log,
		Notifiers:     notifiers,
	})

	router := httpapi.NewRouter(httpapi.Options{
		Jobs:            svc,
		Ledger:          ledger,
		Logger:          log,
		PollInterval:    cfg.StreamPollInterval,
		CORSOrigins:     cfg.CORSOrigins,
		Limiter:         limiter,
		RateLimitPerMin: cfg.RateLimitPerMin,
		JWTSecret:       cfg.JWTSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.AIProvider).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Stop taking requests first so no job is submitted after the service drains.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight jobs canceled")
	}
}

// openLedger keeps run history in memory unless an analytics database is configured.
func openLedger(ctx context.Context, cfg config.Config) (analytics.Ledger, error) {
	if cfg.AnalyticsDBDriver == "" && cfg.AnalyticsDSN == "" {
		return analytics.NewMemoryLedger(), nil
	}
	gdb, err := db.Connect(cfg.AnalyticsDBDriver, cfg.AnalyticsDSN)
	if err != nil {
		return nil, err
	}
	repo := analytics.NewRepo(gdb)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}
