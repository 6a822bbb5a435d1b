package analytics

import (
	"context"
	"math"
	"sync"

	"github.com/suPer8Hu/content-pipeline/internal/jobs"
)

type Ledger interface {
	Record(ctx context.Context, run Run) error
	Summary(ctx context.Context) (Summary, error)
}

// RunFromEvent converts a terminal job event into a ledger row.
func RunFromEvent(ev jobs.Event) Run {
	r := Run{
		JobID:      ev.JobID,
		Status:     string(ev.Status),
		DurationMS: ev.DurationMS,
		StartedAt:  ev.StartedAt,
		FinishedAt: ev.FinishedAt,
	}
	if ev.Error != "" {
		msg := ev.Error
		r.Error = &msg
	}
	return r
}

// Notifier records every finished job into l.
func Notifier(l Ledger) jobs.Notifier {
	return jobs.NotifierFunc(func(ctx context.Context, ev jobs.Event) error {
		return l.Record(ctx, RunFromEvent(ev))
	})
}

// MemoryLedger keeps running aggregates only.
type MemoryLedger struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	total     int64
	errs      int64
	completed int64
	sumMS     int64
	minMS     int64
	maxMS     int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{}), minMS: math.MaxInt64}
}

func (m *MemoryLedger) Record(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.seen[run.JobID]; dup {
		return nil
	}
	m.seen[run.JobID] = struct{}{}

	m.total++
	if run.Status != statusCompleted {
		m.errs++
		return nil
	}
	m.completed++
	m.sumMS += run.DurationMS
	if run.DurationMS < m.minMS {
		m.minMS = run.DurationMS
	}
	if run.DurationMS > m.maxMS {
		m.maxMS = run.DurationMS
	}
	return nil
}

func (m *MemoryLedger) Summary(_ context.Context) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		TotalGenerations: m.total,
		Errors:           m.errs,
		SuccessRate:      successRate(m.total, m.errs),
	}
	if m.completed > 0 {
		s.AverageTime = msToSeconds(float64(m.sumMS) / float64(m.completed))
		s.FastestTime = msToSeconds(float64(m.minMS))
		s.SlowestTime = msToSeconds(float64(m.maxMS))
	}
	return s, nil
}

var _ Ledger = (*MemoryLedger)(nil)
