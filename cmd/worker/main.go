package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/content-pipeline/internal/analytics"
	"github.com/suPer8Hu/content-pipeline/internal/config"
	"github.com/suPer8Hu/content-pipeline/internal/db"
	"github.com/suPer8Hu/content-pipeline/internal/logging"
	"github.com/suPer8Hu/content-pipeline/internal/store/rabbitmq"
)

const defaultArchiveDSN = "file:analytics.db?cache=shared"

var errBadEvent = errors.New("bad job event")

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.AppEnv).With().Str("component", "worker").Logger()

	if cfg.RabbitURL == "" {
		log.Fatal().Msg("RABBIT_URL is required")
	}

	dsn := cfg.AnalyticsDSN
	if dsn == "" && (cfg.AnalyticsDBDriver == "" || cfg.AnalyticsDBDriver == "sqlite") {
		dsn = defaultArchiveDSN
	}
	gdb, err := db.Connect(cfg.AnalyticsDBDriver, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	repo := analytics.NewRepo(gdb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit dial")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit channel")
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Fatal().Err(err).Msg("queue declare")
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatal().Err(err).Msg("qos")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	log.Info().Str("queue", cfg.RabbitQueue).Int("concurrency", concurrency).Msg("worker started")

	deliveries := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With().Int("worker", workerID).Logger()
			for d := range deliveries {
				start := time.Now()
				jobID, err := archiveEvent(ctx, repo, d.Body)
				if err != nil {
					wlog.Warn().Err(err).Str("job_id", jobID).Dur("cost", time.Since(start)).Msg("event rejected")
					_ = d.Nack(false, false)
					continue
				}
				if err := d.Ack(false); err != nil {
					wlog.Warn().Err(err).Str("job_id", jobID).Msg("ack failed")
					continue
				}
				wlog.Debug().Str("job_id", jobID).Dur("cost", time.Since(start)).Msg("event archived")
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn().Msg("delivery channel closed")
				close(deliveries)
				wg.Wait()
				return
			}
			deliveries <- d
		}
	}
}

// archiveEvent stores one terminal job event. Redelivered events are
// absorbed by the ledger's per-job uniqueness. The write ignores ctx
// cancellation so deliveries drained after a signal still land.
func archiveEvent(ctx context.Context, ledger analytics.Ledger, body []byte) (string, error) {
	ev, err := rabbitmq.DecodeEvent(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadEvent, err)
	}
	if ev.JobID == "" || !ev.Status.Terminal() {
		return ev.JobID, fmt.Errorf("%w: job_id=%q status=%q", errBadEvent, ev.JobID, ev.Status)
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := ledger.Record(cctx, analytics.RunFromEvent(ev)); err != nil {
		return ev.JobID, err
	}
	return ev.JobID, nil
}
