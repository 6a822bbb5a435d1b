package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/content-pipeline/internal/jobs"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func seed(t *testing.T, l Ledger) {
	t.Helper()
	ctx := context.Background()
	runs := []Run{
		{JobID: "a", Status: "completed", DurationMS: 2000},
		{JobID: "b", Status: "completed", DurationMS: 4000},
		{JobID: "c", Status: "error", DurationMS: 100},
		{JobID: "d", Status: "completed", DurationMS: 3000},
		// duplicate delivery must not double count
		{JobID: "a", Status: "completed", DurationMS: 9000},
	}
	for _, r := range runs {
		if err := l.Record(ctx, r); err != nil {
			t.Fatalf("record %s: %v", r.JobID, err)
		}
	}
}

func checkSummary(t *testing.T, s Summary) {
	t.Helper()
	if s.TotalGenerations != 4 || s.Errors != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.SuccessRate != 75 {
		t.Fatalf("unexpected success rate: %v", s.SuccessRate)
	}
	if s.AverageTime != 3 || s.FastestTime != 2 || s.SlowestTime != 4 {
		t.Fatalf("unexpected times: %+v", s)
	}
}

func TestMemoryLedger_Summary(t *testing.T) {
	l := NewMemoryLedger()
	seed(t, l)
	s, err := l.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	checkSummary(t, s)
}

func TestMemoryLedger_Empty(t *testing.T) {
	s, _ := NewMemoryLedger().Summary(context.Background())
	if s != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}

func TestRepo_Summary(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seed(t, repo)

	s, err := repo.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	checkSummary(t, s)
}

func TestNotifier_RecordsEvent(t *testing.T) {
	l := NewMemoryLedger()
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	ev := jobs.Event{
		JobID:      "job-1",
		Status:     jobs.StatusError,
		Error:      "analysis stage failed: boom",
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		DurationMS: 1500,
	}
	if err := Notifier(l).JobFinished(context.Background(), ev); err != nil {
		t.Fatalf("notify: %v", err)
	}

	s, _ := l.Summary(context.Background())
	if s.TotalGenerations != 1 || s.Errors != 1 || s.SuccessRate != 0 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	run := RunFromEvent(ev)
	if run.Error == nil || *run.Error != ev.Error || run.DurationMS != 1500 {
		t.Fatalf("unexpected run: %+v", run)
	}
}

type fixedCounter struct{ planning, running int }

func (f fixedCounter) Counts() (int, int) { return f.planning, f.running }

func TestBuildReport(t *testing.T) {
	rep := BuildReport(Summary{TotalGenerations: 2}, fixedCounter{planning: 3, running: 1})
	if rep.RealTime.QueueSize != 3 || rep.RealTime.ActiveGenerations != 1 {
		t.Fatalf("unexpected real time: %+v", rep.RealTime)
	}
	if rep.SystemInfo.CPUCount <= 0 || rep.SystemInfo.GoVersion == "" {
		t.Fatalf("unexpected system info: %+v", rep.SystemInfo)
	}
	if rep.PerformanceMetrics.TotalGenerations != 2 {
		t.Fatalf("summary not carried over")
	}
}
