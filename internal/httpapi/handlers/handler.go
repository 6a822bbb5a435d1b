package handlers

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/content-pipeline/internal/analytics"
	"github.com/suPer8Hu/content-pipeline/internal/jobs"
)

type Handler struct {
	Jobs   *jobs.Service
	Ledger analytics.Ledger
	Log    zerolog.Logger

	// PollInterval is the stream tick.
	PollInterval time.Duration
}

func NewHandler(svc *jobs.Service, ledger analytics.Ledger, pollInterval time.Duration, log zerolog.Logger) *Handler {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if ledger == nil {
		ledger = analytics.NewMemoryLedger()
	}
	return &Handler{Jobs: svc, Ledger: ledger, Log: log, PollInterval: pollInterval}
}
