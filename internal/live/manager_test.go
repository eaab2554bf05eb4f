package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

type fakePrograms struct {
	program *models.Program
}

func (f *fakePrograms) GetProgram(_ context.Context, id uuid.UUID, userID int) (*models.Program, error) {
	if f.program != nil && f.program.ID == id && f.program.UserID == userID {
		return f.program, nil
	}
	return nil, nil
}

type fakeSessions struct {
	mu    sync.Mutex
	saved []*models.ProgramSession
}

func (f *fakeSessions) InsertProgramSession(_ context.Context, s *models.ProgramSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return true, nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeJournal struct {
	mu       sync.Mutex
	recorded map[uuid.UUID]*models.ProgramSession
	synced   map[uuid.UUID]bool
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{
		recorded: make(map[uuid.UUID]*models.ProgramSession),
		synced:   make(map[uuid.UUID]bool),
	}
}

func (f *fakeJournal) Record(_ context.Context, s *models.ProgramSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded[s.ID] = s
	return nil
}

func (f *fakeJournal) MarkSynced(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced[id] = true
	return nil
}

func (f *fakeJournal) Unsynced(_ context.Context) ([]*models.ProgramSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.ProgramSession
	for id, s := range f.recorded {
		if !f.synced[id] {
			result = append(result, s)
		}
	}
	return result, nil
}

func testProgram(userID int) *models.Program {
	return &models.Program{
		ID:     uuid.New(),
		UserID: userID,
		Name:   "Morning Routine",
		Workouts: []models.ProgramWorkout{
			{WorkoutID: uuid.New(), Name: "Pushups", Sets: []models.SetPlan{{Reps: 10}}},
		},
	}
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestManagerSessionLifecycle runs a one-set program end to end: start,
// rep-wait, manual done, completion, persistence through the journal chain,
// and reaping.
func TestManagerSessionLifecycle(t *testing.T) {
	program := testProgram(1)
	sessions := &fakeSessions{}
	jrnl := newFakeJournal()
	m := NewManager(Options{
		Programs: &fakePrograms{program: program},
		Sessions: sessions,
		Journal:  jrnl,
	})

	s, err := m.Start(context.Background(), program.ID, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.Running() != 1 {
		t.Fatalf("running = %d, want 1", m.Running())
	}

	waitFor(t, 2*time.Second, "rep wait", func() bool {
		st, err := m.Snapshot(s.ID)
		return err == nil && st.RepWait
	})
	if err := m.Command(s.ID, "done", 0); err != nil {
		t.Fatalf("Command done: %v", err)
	}

	waitFor(t, 3*time.Second, "session reap", func() bool {
		return m.Running() == 0
	})
	if sessions.count() != 1 {
		t.Fatalf("persisted sessions = %d, want 1", sessions.count())
	}
	saved := sessions.saved[0]
	if saved.ProgramName != "Morning Routine" || saved.UserID != 1 {
		t.Fatalf("saved summary = %+v", saved)
	}
	jrnl.mu.Lock()
	defer jrnl.mu.Unlock()
	if !jrnl.synced[saved.ID] {
		t.Fatal("journal row not marked synced after the store write")
	}
}

// TestManagerStartUnknownProgram verifies the not-found sentinel.
func TestManagerStartUnknownProgram(t *testing.T) {
	m := NewManager(Options{Programs: &fakePrograms{}})
	_, err := m.Start(context.Background(), uuid.New(), 1)
	if !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("err = %v, want ErrProgramNotFound", err)
	}
}

// TestManagerStopAbandons verifies abandoning writes no summary.
func TestManagerStopAbandons(t *testing.T) {
	program := testProgram(1)
	sessions := &fakeSessions{}
	m := NewManager(Options{
		Programs: &fakePrograms{program: program},
		Sessions: sessions,
	})

	s, err := m.Start(context.Background(), program.ID, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(s.ID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if m.Running() != 0 {
		t.Fatalf("running after stop = %d, want 0", m.Running())
	}

	time.Sleep(50 * time.Millisecond)
	if sessions.count() != 0 {
		t.Fatalf("abandoned session was persisted %d times", sessions.count())
	}
	if err := m.Stop(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Stop err = %v, want ErrSessionNotFound", err)
	}
}

// TestManagerCommandValidation verifies unknown sessions and unknown commands
// are rejected.
func TestManagerCommandValidation(t *testing.T) {
	program := testProgram(1)
	m := NewManager(Options{Programs: &fakePrograms{program: program}})

	if err := m.Command(uuid.New(), "pause", 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	s, err := m.Start(context.Background(), program.ID, 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(s.ID)

	if err := m.Command(s.ID, "teleport", 0); err == nil {
		t.Fatal("unknown command accepted")
	}
}

// TestManagerReplayJournal verifies unsynced journal rows are pushed to the
// store and marked synced.
func TestManagerReplayJournal(t *testing.T) {
	sessions := &fakeSessions{}
	jrnl := newFakeJournal()
	orphan := &models.ProgramSession{ID: uuid.New(), ProgramName: "Interrupted"}
	if err := jrnl.Record(context.Background(), orphan); err != nil {
		t.Fatalf("Record: %v", err)
	}

	m := NewManager(Options{Sessions: sessions, Journal: jrnl})
	if err := m.ReplayJournal(context.Background()); err != nil {
		t.Fatalf("ReplayJournal: %v", err)
	}
	if sessions.count() != 1 {
		t.Fatalf("replayed sessions = %d, want 1", sessions.count())
	}
	jrnl.mu.Lock()
	defer jrnl.mu.Unlock()
	if !jrnl.synced[orphan.ID] {
		t.Fatal("replayed row not marked synced")
	}
}

var _ coach.Persister = (*chainPersister)(nil)
