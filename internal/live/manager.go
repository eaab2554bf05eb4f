// Package live owns the running guided-session engines: it loads programs,
// wires each engine to the event hub and the persistence chain, drives the
// tick loop, and reaps finished sessions.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/repcoach/internal/cache"
	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned for commands against unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrProgramNotFound is returned when the requested program does not exist.
	ErrProgramNotFound = errors.New("program not found")
	// ErrEmptyProgram is returned when a program has no exercise items.
	ErrEmptyProgram = errors.New("program has no exercises")
)

// ProgramStore loads program definitions.
type ProgramStore interface {
	GetProgram(ctx context.Context, id uuid.UUID, userID int) (*models.Program, error)
}

// SessionStore persists completed session summaries.
type SessionStore interface {
	InsertProgramSession(ctx context.Context, s *models.ProgramSession) (bool, error)
}

// JournalStore is the local crash-safe summary log written ahead of the
// primary store.
type JournalStore interface {
	Record(ctx context.Context, s *models.ProgramSession) error
	MarkSynced(ctx context.Context, id uuid.UUID) error
	Unsynced(ctx context.Context) ([]*models.ProgramSession, error)
}

// Broadcaster fans engine events out to session subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, sessionID uuid.UUID, event coach.Event)
	CloseSession(sessionID uuid.UUID)
}

// Options configures a Manager.
type Options struct {
	Programs       ProgramStore
	Sessions       SessionStore
	Journal        JournalStore
	Hub            Broadcaster
	Cache          *cache.ProgramCache
	Logger         *slog.Logger
	RestSeconds    int
	PreRollSeconds int
	Clock          coach.Clock
}

// Session is one running guided session.
type Session struct {
	ID        uuid.UUID `json:"id"`
	ProgramID uuid.UUID `json:"program_id"`
	UserID    int       `json:"-"`
	StartedAt time.Time `json:"started_at"`

	engine *coach.Engine
	cancel context.CancelFunc
}

// Manager tracks running sessions keyed by session ID.
type Manager struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]*Session
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = coach.SystemClock()
	}
	return &Manager{
		opts:    opts,
		log:     opts.Logger,
		running: make(map[uuid.UUID]*Session),
	}
}

// Start loads the program, builds an engine, and begins driving it. The
// returned session is already ticking.
func (m *Manager) Start(ctx context.Context, programID uuid.UUID, userID int) (*Session, error) {
	program, err := m.loadProgram(ctx, programID, userID)
	if err != nil {
		return nil, err
	}

	items := coach.ItemsFromProgram(program)
	if len(items) == 0 {
		return nil, ErrEmptyProgram
	}

	sessionID := uuid.New()
	notifier := coach.NotifierFunc(func(ev coach.Event) {
		if m.opts.Hub != nil {
			m.opts.Hub.Broadcast(context.Background(), sessionID, ev)
		}
	})

	engine, err := coach.NewEngine(items, coach.Options{
		Clock:          m.opts.Clock,
		Announcer:      coach.NewEventAnnouncer(notifier),
		Notifier:       notifier,
		Persister:      &chainPersister{journal: m.opts.Journal, store: m.opts.Sessions, log: m.log},
		Logger:         m.log,
		RestSeconds:    m.opts.RestSeconds,
		PreRollSeconds: m.opts.PreRollSeconds,
		UserID:         userID,
		ProgramID:      &program.ID,
		ProgramName:    program.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        sessionID,
		ProgramID: programID,
		UserID:    userID,
		StartedAt: m.opts.Clock.Now(),
		engine:    engine,
		cancel:    cancel,
	}

	m.mu.Lock()
	m.running[sessionID] = s
	m.mu.Unlock()

	m.log.Info("guided session started",
		"session", sessionID, "program", program.Name, "items", len(items), "user", userID)

	go func() {
		coach.Run(runCtx, engine)
		m.finish(sessionID)
	}()
	return s, nil
}

// Command applies a player command to a running session. arg carries the
// seconds for rest_add and is ignored otherwise.
func (m *Manager) Command(sessionID uuid.UUID, command string, arg int) error {
	s, ok := m.get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	switch command {
	case "pause":
		s.engine.Pause()
	case "resume":
		s.engine.Resume()
	case "done":
		s.engine.Done()
	case "next":
		s.engine.Next()
	case "previous":
		s.engine.Previous()
	case "rest_add":
		if arg <= 0 {
			arg = 30
		}
		s.engine.RestAdd(arg)
	case "rest_skip":
		s.engine.RestSkip()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

// Snapshot returns the current run state of a session.
func (m *Manager) Snapshot(sessionID uuid.UUID) (*coach.State, error) {
	s, ok := m.get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.engine.Snapshot(), nil
}

// Stop abandons a running session: clocks and narration are cancelled and no
// summary is written.
func (m *Manager) Stop(sessionID uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.running[sessionID]
	delete(m.running, sessionID)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.cancel()
	if m.opts.Hub != nil {
		m.opts.Hub.CloseSession(sessionID)
	}
	m.log.Info("guided session abandoned", "session", sessionID)
	return nil
}

// Running returns the number of sessions currently tracked.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

// Shutdown abandons every running session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.running))
	for _, s := range m.running {
		sessions = append(sessions, s)
	}
	m.running = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.cancel()
		if m.opts.Hub != nil {
			m.opts.Hub.CloseSession(s.ID)
		}
	}
}

// ReplayJournal pushes journaled summaries that never reached the primary
// store, typically at startup after a crash or database outage.
func (m *Manager) ReplayJournal(ctx context.Context) error {
	if m.opts.Journal == nil || m.opts.Sessions == nil {
		return nil
	}
	pending, err := m.opts.Journal.Unsynced(ctx)
	if err != nil {
		return fmt.Errorf("listing unsynced sessions: %w", err)
	}
	for _, s := range pending {
		if _, err := m.opts.Sessions.InsertProgramSession(ctx, s); err != nil {
			return fmt.Errorf("replaying session %s: %w", s.ID, err)
		}
		if err := m.opts.Journal.MarkSynced(ctx, s.ID); err != nil {
			return fmt.Errorf("marking session %s synced: %w", s.ID, err)
		}
		m.log.Info("replayed journaled session", "session", s.ID, "program", s.ProgramName)
	}
	return nil
}

func (m *Manager) get(sessionID uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.running[sessionID]
	return s, ok
}

// finish reaps a session whose run loop exited (completion or abandonment).
func (m *Manager) finish(sessionID uuid.UUID) {
	m.mu.Lock()
	_, ok := m.running[sessionID]
	delete(m.running, sessionID)
	m.mu.Unlock()
	if !ok {
		return // already reaped by Stop
	}
	if m.opts.Hub != nil {
		m.opts.Hub.CloseSession(sessionID)
	}
	m.log.Info("guided session finished", "session", sessionID)
}

func (m *Manager) loadProgram(ctx context.Context, programID uuid.UUID, userID int) (*models.Program, error) {
	if m.opts.Cache != nil {
		if p, ok := m.opts.Cache.Get(programID); ok && p.UserID == userID {
			return p, nil
		}
	}
	p, err := m.opts.Programs.GetProgram(ctx, programID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading program: %w", err)
	}
	if p == nil {
		return nil, ErrProgramNotFound
	}
	if m.opts.Cache != nil {
		m.opts.Cache.Put(p)
	}
	return p, nil
}

// chainPersister journals the summary locally, then writes the primary store
// and marks the journal row synced. A journal failure degrades to the direct
// write; a store failure leaves the row unsynced for replay.
type chainPersister struct {
	journal JournalStore
	store   SessionStore
	log     *slog.Logger
}

func (p *chainPersister) SaveSession(ctx context.Context, s *models.ProgramSession) error {
	if p.journal != nil {
		if err := p.journal.Record(ctx, s); err != nil {
			p.log.Warn("journaling session failed", "session", s.ID, "error", err)
		}
	}
	if p.store == nil {
		return nil
	}
	if _, err := p.store.InsertProgramSession(ctx, s); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if p.journal != nil {
		if err := p.journal.MarkSynced(ctx, s.ID); err != nil {
			p.log.Warn("marking session synced failed", "session", s.ID, "error", err)
		}
	}
	return nil
}
