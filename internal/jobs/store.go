package jobs

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-process job registry. Records live until deleted or the
// process exits.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	issued  map[string]struct{}

	newID func() string
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*Record),
		issued:  make(map[string]struct{}),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

func (s *Store) Create(content string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// ids are never reissued, even after delete
	id := s.newID()
	for {
		if _, taken := s.issued[id]; !taken {
			break
		}
		id = s.newID()
	}
	s.issued[id] = struct{}{}

	now := s.now().UTC()
	r := &Record{
		ID:        id,
		Content:   content,
		Status:    StatusPlanning,
		Logs:      []string{},
		Outputs:   map[string]string{},
		CreatedAt: now,
	}
	s.records[id] = r
	return r.snapshot(now), nil
}

func (s *Store) Get(id string) (Snapshot, error) {
	id = strings.TrimSpace(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return r.snapshot(s.now().UTC()), nil
}

// Update applies fn to the record under the store lock. If fn returns an
// error the record is left as fn left it; mutators on Record check their
// preconditions before writing.
func (s *Store) Update(id string, fn func(r *Record, now time.Time) error) (Snapshot, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	now := s.now().UTC()
	if err := fn(r, now); err != nil {
		return r.snapshot(now), err
	}
	return r.snapshot(now), nil
}

func (s *Store) Delete(id string) error {
	_, err := s.remove(id)
	return err
}

func (s *Store) remove(id string) (*Task, error) {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.records, id)
	return r.task, nil
}

func (s *Store) attach(id string, t *Task) error {
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	r.task = t
	return nil
}

// List returns a summary per job, oldest first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	records := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	sortSummaries(records)
	out := make([]Summary, 0, len(records))
	for _, r := range records {
		out = append(out, Summary{ID: r.ID, Status: r.Status, ContentPreview: preview(r.Content)})
	}
	s.mu.RUnlock()
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Counts reports how many jobs are waiting and how many are running.
func (s *Store) Counts() (planning, running int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		switch r.Status {
		case StatusPlanning:
			planning++
		case StatusRunning:
			running++
		}
	}
	return planning, running
}
