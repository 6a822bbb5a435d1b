package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

var transitions = map[Status][]Status{
	StatusPlanning: {StatusRunning, StatusError},
	StatusRunning:  {StatusCompleted, StatusError},
}

func (s Status) canMoveTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

var (
	ErrNotFound          = errors.New("job not found")
	ErrEmptyContent      = errors.New("content is required")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOutputNotAllowed  = errors.New("outputs can only be written while running")
	ErrOutputExists      = errors.New("output already set")
	ErrIncompleteOutputs = errors.New("outputs incomplete")
	ErrStopped           = errors.New("service stopped")
)

// Record is the mutable job state. It is only touched inside Store.Update.
type Record struct {
	ID         string
	Content    string
	Status     Status
	Logs       []string
	Outputs    map[string]string
	Error      string
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	task *Task
}

func (r *Record) Transition(next Status, at time.Time) error {
	if !r.Status.canMoveTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	switch {
	case next == StatusRunning:
		r.StartedAt = at
	case next.Terminal():
		r.FinishedAt = at
	}
	return nil
}

func (r *Record) AppendLog(line string) {
	r.Logs = append(r.Logs, line)
}

func (r *Record) SetOutput(key, value string) error {
	if r.Status != StatusRunning {
		return ErrOutputNotAllowed
	}
	if _, ok := r.Outputs[key]; ok {
		return fmt.Errorf("%w: %s", ErrOutputExists, key)
	}
	if r.Outputs == nil {
		r.Outputs = make(map[string]string)
	}
	r.Outputs[key] = value
	return nil
}

// Complete moves a running job to completed once every required output is present.
func (r *Record) Complete(required []string, at time.Time) error {
	for _, k := range required {
		if strings.TrimSpace(r.Outputs[k]) == "" {
			return fmt.Errorf("%w: missing %s", ErrIncompleteOutputs, k)
		}
	}
	if err := r.Transition(StatusCompleted, at); err != nil {
		return err
	}
	r.Error = ""
	return nil
}

func (r *Record) Fail(msg string, at time.Time) error {
	if strings.TrimSpace(msg) == "" {
		msg = "unknown error"
	}
	if err := r.Transition(StatusError, at); err != nil {
		return err
	}
	r.Error = msg
	return nil
}

func (r *Record) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		ID:        r.ID,
		Status:    r.Status,
		Content:   r.Content,
		Logs:      append([]string(nil), r.Logs...),
		Outputs:   make(map[string]string, len(r.Outputs)),
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
	for k, v := range r.Outputs {
		snap.Outputs[k] = v
	}
	if !r.StartedAt.IsZero() {
		started := r.StartedAt
		snap.StartedAt = &started
		end := now
		if !r.FinishedAt.IsZero() {
			end = r.FinishedAt
		}
		snap.ExecutionTime = end.Sub(r.StartedAt)
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		snap.FinishedAt = &finished
	}
	return snap
}

// Snapshot is a point-in-time copy of a Record, safe to share.
type Snapshot struct {
	ID            string
	Status        Status
	Content       string
	Logs          []string
	Outputs       map[string]string
	Error         string
	CreatedAt     time.Time
	StartedAt     *time.Time
	FinishedAt    *time.Time
	ExecutionTime time.Duration
}

type Summary struct {
	ID             string `json:"id"`
	Status         Status `json:"status"`
	ContentPreview string `json:"content_preview"`
}

const previewRunes = 100

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewRunes])
}

func sortSummaries(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// Task is the handle of a job's background run.
type Task struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newTask(parent context.Context, id string) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{id: id, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (t *Task) ID() string { return t.id }

// Cancel asks the run to stop. It is safe to call more than once.
func (t *Task) Cancel() { t.cancel() }

// Done is closed when the run goroutine returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Event describes a job that reached a terminal state.
type Event struct {
	JobID          string    `json:"job_id"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	ContentPreview string    `json:"content_preview"`
	Outputs        []string  `json:"outputs"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	DurationMS     int64     `json:"duration_ms"`
}

func (e Event) Duration() time.Duration {
	return time.Duration(e.DurationMS) * time.Millisecond
}
