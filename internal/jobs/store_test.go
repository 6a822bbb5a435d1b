package jobs

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestStore_CreateStartsInPlanning(t *testing.T) {
	st := NewStore()
	snap, err := st.Create("hello")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap.ID == "" || snap.Status != StatusPlanning {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	got, err := st.Get(snap.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPlanning || got.Content != "hello" || len(got.Outputs) != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.StartedAt != nil || got.ExecutionTime != 0 {
		t.Fatalf("planning job should have no timing: %+v", got)
	}
}

func TestStore_IDsNeverReissued(t *testing.T) {
	st := NewStore()
	ids := []string{"a", "a", "b", "a", "b", "c"}
	st.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, _ := st.Create("1")
	if err := st.Delete(first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	second, _ := st.Create("2")
	third, _ := st.Create("3")

	if first.ID != "a" || second.ID != "b" || third.ID != "c" {
		t.Fatalf("unexpected ids: %s %s %s", first.ID, second.ID, third.ID)
	}
}

func TestStore_ConcurrentCreateUnique(t *testing.T) {
	st := NewStore()
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := st.Create("x")
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			_, _ = st.Get(snap.ID)
			mu.Lock()
			seen[snap.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n || st.Len() != n {
		t.Fatalf("expected %d unique jobs, got %d (store has %d)", n, len(seen), st.Len())
	}
}

func TestStore_GetUnknown(t *testing.T) {
	if _, err := NewStore().Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteTwice(t *testing.T) {
	st := NewStore()
	snap, _ := st.Create("x")

	if err := st.Delete(snap.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := st.Delete(snap.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	if err := st.Delete("never-existed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.Update(snap.ID, func(r *Record, _ time.Time) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update after delete: expected ErrNotFound, got %v", err)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	st := NewStore()
	snap, _ := st.Create("x")
	_, _ = st.Update(snap.ID, func(r *Record, _ time.Time) error {
		r.AppendLog("one")
		return nil
	})

	got, _ := st.Get(snap.ID)
	got.Logs[0] = "mutated"
	got.Outputs["post"] = "mutated"

	again, _ := st.Get(snap.ID)
	if again.Logs[0] != "one" || len(again.Outputs) != 0 {
		t.Fatalf("snapshot mutation leaked into store: %+v", again)
	}
}

func TestStore_ListPreviewAndOrder(t *testing.T) {
	st := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	st.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	long := strings.Repeat("é", 150)
	a, _ := st.Create(long)
	b, _ := st.Create("short")

	list := st.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("expected creation order, got %+v", list)
	}
	if got := []rune(list[0].ContentPreview); len(got) != 100 {
		t.Fatalf("expected 100 rune preview, got %d", len(got))
	}
	if list[1].ContentPreview != "short" {
		t.Fatalf("unexpected preview: %q", list[1].ContentPreview)
	}
}

func TestRecord_TransitionsAreMonotonic(t *testing.T) {
	now := time.Now()
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPlanning, StatusRunning, true},
		{StatusPlanning, StatusError, true},
		{StatusPlanning, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusError, true},
		{StatusRunning, StatusPlanning, false},
		{StatusRunning, StatusRunning, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCompleted, StatusError, false},
		{StatusError, StatusCompleted, false},
		{StatusError, StatusRunning, false},
	}
	for _, tc := range cases {
		r := &Record{Status: tc.from}
		err := r.Transition(tc.to, now)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		if !tc.ok && r.Status != tc.from {
			t.Errorf("%s -> %s: status changed on rejected transition", tc.from, tc.to)
		}
	}
}

func TestRecord_OutputRules(t *testing.T) {
	now := time.Now()
	r := &Record{Status: StatusPlanning}
	if err := r.SetOutput("post", "p"); !errors.Is(err, ErrOutputNotAllowed) {
		t.Fatalf("expected ErrOutputNotAllowed while planning, got %v", err)
	}

	_ = r.Transition(StatusRunning, now)
	if err := r.SetOutput("post", "p"); err != nil {
		t.Fatalf("set output: %v", err)
	}
	if err := r.SetOutput("post", "other"); !errors.Is(err, ErrOutputExists) {
		t.Fatalf("expected ErrOutputExists, got %v", err)
	}
	if r.Outputs["post"] != "p" {
		t.Fatalf("output overwritten: %q", r.Outputs["post"])
	}

	required := []string{"post", "script", "analysis"}
	if err := r.Complete(required, now); !errors.Is(err, ErrIncompleteOutputs) {
		t.Fatalf("expected ErrIncompleteOutputs, got %v", err)
	}
	if r.Status != StatusRunning {
		t.Fatalf("incomplete job must stay running, got %s", r.Status)
	}

	_ = r.SetOutput("script", "s")
	_ = r.SetOutput("analysis", "a")
	if err := r.Complete(required, now.Add(time.Second)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := r.Fail("late", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected completed job to reject Fail, got %v", err)
	}
	if r.Error != "" {
		t.Fatalf("completed job must not carry an error: %q", r.Error)
	}

	snap := r.snapshot(now.Add(time.Hour))
	if snap.ExecutionTime != time.Second {
		t.Fatalf("expected execution time from start to finish, got %s", snap.ExecutionTime)
	}
}

func TestRecord_FailDefaultsMessage(t *testing.T) {
	r := &Record{Status: StatusRunning}
	if err := r.Fail("  ", time.Now()); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if r.Error == "" || r.Status != StatusError {
		t.Fatalf("expected non-empty error, got %+v", r)
	}
}

func TestStore_Counts(t *testing.T) {
	st := NewStore()
	a, _ := st.Create("a")
	_, _ = st.Create("b")
	_, _ = st.Update(a.ID, func(r *Record, now time.Time) error { return r.Transition(StatusRunning, now) })

	planning, running := st.Counts()
	if planning != 1 || running != 1 {
		t.Fatalf("unexpected counts planning=%d running=%d", planning, running)
	}
}

func TestStore_IDLookupIgnoresSurroundingSpace(t *testing.T) {
	st := NewStore()
	snap, _ := st.Create("x")
	padded := " " + snap.ID + "\n"

	if _, err := st.Get(padded); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := st.Update(padded, func(r *Record, _ time.Time) error {
		r.AppendLog("touched")
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := st.Get(snap.ID)
	if len(got.Logs) != 1 || got.Logs[0] != "touched" {
		t.Fatalf("update did not reach the record: %v", got.Logs)
	}
	if err := st.Delete(padded); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if st.Len() != 0 {
		t.Fatalf("record should be gone")
	}
}
