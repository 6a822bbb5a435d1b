package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/suPer8Hu/content-pipeline/internal/pipeline"
)

// Runner executes the generation pipeline for one job.
type Runner interface {
	Run(ctx context.Context, content string, obs pipeline.Observer) (pipeline.Outputs, error)
}

// Notifier is told about every job that reaches a terminal state.
type Notifier interface {
	JobFinished(ctx context.Context, ev Event) error
}

type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) JobFinished(ctx context.Context, ev Event) error { return f(ctx, ev) }

type Options struct {
	// MaxConcurrent bounds how many jobs run the pipeline at once. Jobs over
	// the limit stay in planning until a slot frees up.
	MaxConcurrent int64
	Logger        zerolog.Logger
	Notifiers     []Notifier
}

const defaultMaxConcurrent = 4

const (
	logPlanningStarted = "Planning started..."
	logExecuting       = "Executing plan..."
	logCompleted       = "Content generation completed!"
)

var stageLogs = map[pipeline.Stage][2]string{
	pipeline.StagePost:     {"Creating post...", "Post created."},
	pipeline.StageScript:   {"Writing video script...", "Script written."},
	pipeline.StageAnalysis: {"Analyzing post and script...", "Analysis finished."},
}

type Service struct {
	store     *Store
	runner    Runner
	sem       *semaphore.Weighted
	log       zerolog.Logger
	notifiers []Notifier
	required  []string

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders Submit's wg.Add against Shutdown's Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewService(store *Store, runner Runner, opts Options) *Service {
	n := opts.MaxConcurrent
	if n <= 0 {
		n = defaultMaxConcurrent
	}
	required := make([]string, 0, len(pipeline.Stages))
	for _, st := range pipeline.Stages {
		required = append(required, string(st))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     store,
		runner:    runner,
		sem:       semaphore.NewWeighted(n),
		log:       opts.Logger,
		notifiers: opts.Notifiers,
		required:  required,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Service) Store() *Store { return s.store }

// Submit registers a job and starts it in the background. It never waits
// for the pipeline; the returned snapshot is always in planning.
func (s *Service) Submit(content string) (Snapshot, *Task, error) {
	if strings.TrimSpace(content) == "" {
		return Snapshot{}, nil, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, nil, ErrStopped
	}

	snap, err := s.store.Create(content)
	if err != nil {
		return Snapshot{}, nil, err
	}

	task := newTask(s.ctx, snap.ID)
	if err := s.store.attach(snap.ID, task); err != nil {
		task.Cancel()
		return Snapshot{}, nil, err
	}

	s.wg.Add(1)
	go s.run(task, content)

	s.log.Info().Str("job_id", snap.ID).Int("content_len", len(content)).Msg("job submitted")
	return snap, task, nil
}

func (s *Service) Get(id string) (Snapshot, error) {
	return s.store.Get(id)
}

func (s *Service) List() []Summary {
	return s.store.List()
}

// Delete removes the record and cancels its run if still in flight.
func (s *Service) Delete(id string) error {
	task, err := s.store.remove(id)
	if err != nil {
		return err
	}
	if task != nil {
		task.Cancel()
	}
	s.log.Info().Str("job_id", id).Msg("job deleted")
	return nil
}

// Shutdown stops accepting work and waits for in-flight runs. When ctx
// expires first the remaining runs are canceled and still awaited.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Service) run(task *Task, content string) {
	start := time.Now()
	id := task.id
	log := s.log.With().Str("job_id", id).Logger()

	defer s.wg.Done()
	defer close(task.done)
	defer task.Cancel()

	finished := false
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job run panicked")
			if !finished {
				s.finish(log, id, content, nil, fmt.Errorf("internal error: %v", r), start)
			}
		}
	}()

	s.appendLog(log, id, logPlanningStarted)

	if err := s.sem.Acquire(task.ctx, 1); err != nil {
		finished = true
		s.finish(log, id, content, nil, fmt.Errorf("canceled before start: %w", err), start)
		return
	}
	defer s.sem.Release(1)

	if !s.update(log, id, func(r *Record, now time.Time) error {
		if err := r.Transition(StatusRunning, now); err != nil {
			return err
		}
		r.AppendLog(logExecuting)
		return nil
	}) {
		return
	}
	log.Debug().Dur("waited", time.Since(start)).Msg("job running")

	outputs, err := s.runner.Run(task.ctx, content, &jobObserver{svc: s, id: id, log: log})
	finished = true
	s.finish(log, id, content, outputs, err, start)
}

// finish writes the terminal state and fans the event out to notifiers.
func (s *Service) finish(log zerolog.Logger, id, content string, outputs pipeline.Outputs, runErr error, start time.Time) {
	var snap Snapshot
	var err error

	if runErr == nil {
		snap, err = s.store.Update(id, func(r *Record, now time.Time) error {
			for _, k := range s.required {
				if _, ok := r.Outputs[k]; ok || strings.TrimSpace(outputs[k]) == "" {
					continue
				}
				if err := r.SetOutput(k, outputs[k]); err != nil {
					return err
				}
			}
			if err := r.Complete(s.required, now); err != nil {
				return err
			}
			r.AppendLog(logCompleted)
			return nil
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			// A runner that reports success without full outputs is a failure.
			runErr = err
		}
	}

	if runErr != nil {
		msg := runErr.Error()
		snap, err = s.store.Update(id, func(r *Record, now time.Time) error {
			var genErr *pipeline.GenerationError
			if errors.As(runErr, &genErr) {
				for k, v := range genErr.Partial {
					if _, ok := r.Outputs[k]; !ok && r.Status == StatusRunning {
						_ = r.SetOutput(k, v)
					}
				}
			}
			if err := r.Fail(msg, now); err != nil {
				return err
			}
			r.AppendLog("Content generation failed: " + msg)
			return nil
		})
	}

	if errors.Is(err, ErrNotFound) {
		log.Debug().Msg("job deleted before finishing; result dropped")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("job finalize failed")
		return
	}

	ev := Event{
		JobID:          id,
		Status:         snap.Status,
		Error:          snap.Error,
		ContentPreview: preview(content),
		StartedAt:      start.UTC(),
		FinishedAt:     time.Now().UTC(),
	}
	for _, k := range s.required {
		if _, ok := snap.Outputs[k]; ok {
			ev.Outputs = append(ev.Outputs, k)
		}
	}
	if snap.StartedAt != nil {
		ev.StartedAt = *snap.StartedAt
	}
	if snap.FinishedAt != nil {
		ev.FinishedAt = *snap.FinishedAt
	}
	ev.DurationMS = ev.FinishedAt.Sub(ev.StartedAt).Milliseconds()

	if ev.Status == StatusError {
		log.Warn().Str("error", ev.Error).Dur("cost", time.Since(start)).Msg("job failed")
	} else {
		log.Info().Dur("cost", time.Since(start)).Msg("job completed")
	}

	s.notify(log, ev)
}

func (s *Service) notify(log zerolog.Logger, ev Event) {
	if len(s.notifiers) == 0 {
		return
	}
	// The job's own context may already be canceled; notifications get a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, n := range s.notifiers {
		if err := n.JobFinished(ctx, ev); err != nil {
			log.Warn().Err(err).Msg("job notifier failed")
		}
	}
}

func (s *Service) appendLog(log zerolog.Logger, id, line string) bool {
	return s.update(log, id, func(r *Record, _ time.Time) error {
		r.AppendLog(line)
		return nil
	})
}

// update reports whether the mutation was applied. Writes to deleted jobs are
// dropped.
func (s *Service) update(log zerolog.Logger, id string, fn func(r *Record, now time.Time) error) bool {
	_, err := s.store.Update(id, fn)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotFound):
		log.Debug().Msg("job no longer exists; update dropped")
	default:
		log.Error().Err(err).Msg("job update rejected")
	}
	return false
}

type jobObserver struct {
	svc *Service
	id  string
	log zerolog.Logger
}

func (o *jobObserver) StageStarted(stage pipeline.Stage) {
	o.log.Debug().Str("stage", string(stage)).Msg("stage started")
	o.svc.appendLog(o.log, o.id, stageLogs[stage][0])
}

func (o *jobObserver) StageFinished(stage pipeline.Stage, output string) {
	o.log.Debug().Str("stage", string(stage)).Int("output_len", len(output)).Msg("stage finished")
	o.svc.update(o.log, o.id, func(r *Record, _ time.Time) error {
		if err := r.SetOutput(string(stage), output); err != nil {
			return err
		}
		r.AppendLog(stageLogs[stage][1])
		return nil
	})
}
