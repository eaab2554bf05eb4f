// Package coach implements the guided session player: a state machine that
// walks a user through a program's exercise items, runs pre-roll and work
// timers, inserts rest intervals, narrates each step, and persists a summary
// record exactly once on completion.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// Persister stores the completed-session summary. Invoked exactly once per
// run; a failure is reported but never rolls back the completed state.
type Persister interface {
	SaveSession(ctx context.Context, session *models.ProgramSession) error
}

// Options configures an Engine. Zero values fall back to sensible defaults.
type Options struct {
	Clock          Clock
	Announcer      Announcer
	Notifier       Notifier
	Persister      Persister
	Logger         *slog.Logger
	RestSeconds int
	// PreRollSeconds of 0 selects the default; a negative value disables
	// the pre-roll countdown so timed work starts on the whistle alone.
	PreRollSeconds int
	UserID         int
	ProgramID      *uuid.UUID
	ProgramName    string
}

const (
	defaultRestSeconds    = 30
	defaultPreRollSeconds = 3
)

type nopAnnouncer struct{}

func (nopAnnouncer) Announce(_ string, done func()) {
	if done != nil {
		go done()
	}
}
func (nopAnnouncer) Say(string) {}
func (nopAnnouncer) Stop()      {}

type nopNotifier struct{}

func (nopNotifier) SessionEvent(Event) {}

// Engine is the session sequencer. It exclusively owns the run state behind
// one mutex; timers, announcer, and rest controller report events upward and
// never mutate it directly. Public methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	clock     Clock
	announcer Announcer
	notifier  Notifier
	persister Persister
	log       *slog.Logger

	items       []ExerciseItem
	restSec     int
	preRollSec  int
	userID      int
	programID   *uuid.UUID
	programName string

	phase       Phase
	idx         int
	set         int
	paused      bool
	stopped     bool
	lastKey     string
	pendingKey  string
	gen         int
	pendingWork int
	pendingDrv  bool
	lastSpoken  int
	preRoll     *intervalTimer
	work        *intervalTimer
	rest        *restTimer
	started     time.Time
	persisted   bool
}

// NewEngine builds an engine over the flattened exercise item list. The list
// must be non-empty; an unloadable or empty program is the host's problem and
// never reaches the sequencer.
func NewEngine(items []ExerciseItem, opts Options) (*Engine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("program has no exercises")
	}
	e := &Engine{
		clock:       opts.Clock,
		announcer:   opts.Announcer,
		notifier:    opts.Notifier,
		persister:   opts.Persister,
		log:         opts.Logger,
		items:       items,
		restSec:     opts.RestSeconds,
		preRollSec:  opts.PreRollSeconds,
		userID:      opts.UserID,
		programID:   opts.ProgramID,
		programName: opts.ProgramName,
		phase:       PhaseIdle,
	}
	if e.clock == nil {
		e.clock = SystemClock()
	}
	if e.announcer == nil {
		e.announcer = nopAnnouncer{}
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.restSec <= 0 {
		e.restSec = defaultRestSeconds
	}
	if e.preRollSec == 0 {
		e.preRollSec = defaultPreRollSeconds
	} else if e.preRollSec < 0 {
		e.preRollSec = 0
	}
	return e, nil
}

// Start captures the session start instant and enters the first step.
// Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.phase != PhaseIdle || e.stopped {
		e.mu.Unlock()
		return
	}
	e.started = e.clock.Now()
	fx := e.enterStep()
	e.emitState()
	e.mu.Unlock()
	runEffects(fx)
}

// Tick advances the active timer by reading the clock. Call once per second;
// while paused or after completion ticks are no-ops.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.stopped || e.paused || e.phase == PhaseCompleted {
		e.mu.Unlock()
		return
	}
	var fx []func()
	switch e.phase {
	case PhasePreRoll:
		rem := e.preRoll.Remaining()
		if rem <= 0 {
			e.preRoll = nil
			e.notifier.SessionEvent(Event{Type: EventSound, Cue: CueWhistle})
			e.announcer.Say("Start!")
			e.startWork(e.pendingWork)
		} else if rem != e.lastSpoken {
			e.lastSpoken = rem
			e.announcer.Say(strconv.Itoa(rem))
		}
		e.emitState()
	case PhaseActive:
		if e.work.Remaining() <= 0 {
			e.work = nil
			e.notifier.SessionEvent(Event{Type: EventSound, Cue: CueBell})
			e.announcer.Say("Set complete.")
			fx = e.finishStep()
		}
		e.emitState()
	case PhaseRest:
		if e.rest.Remaining() <= 0 {
			e.rest = nil
			fx = e.advanceAfterRest()
		}
		e.emitState()
	}
	e.mu.Unlock()
	runEffects(fx)
}

// Done completes the current rep-wait (or geo goal) step manually. Ignored in
// any other phase.
func (e *Engine) Done() {
	e.mu.Lock()
	if e.stopped || e.phase != PhaseRepWait {
		e.mu.Unlock()
		return
	}
	e.notifier.SessionEvent(Event{Type: EventSound, Cue: CueBell})
	e.announcer.Say("Set complete.")
	fx := e.finishStep()
	e.emitState()
	e.mu.Unlock()
	runEffects(fx)
}

// Next skips to the next exercise item, cancelling any active clocks and
// narration. At the last item it transitions directly to completion. A no-op
// once the session is completed.
func (e *Engine) Next() {
	e.mu.Lock()
	if e.stopped || e.phase == PhaseIdle || e.phase == PhaseCompleted {
		e.mu.Unlock()
		return
	}
	e.cancelRun()
	var fx []func()
	if e.idx >= len(e.items)-1 {
		fx = e.complete()
	} else {
		e.idx++
		e.set = 0
		fx = e.enterStep()
	}
	e.emitState()
	e.mu.Unlock()
	runEffects(fx)
}

// Previous steps back one set, or one item when already at the first set.
// A no-op at the very first set of the first item and after completion.
func (e *Engine) Previous() {
	e.mu.Lock()
	if e.stopped || e.phase == PhaseIdle || e.phase == PhaseCompleted || (e.idx == 0 && e.set == 0) {
		e.mu.Unlock()
		return
	}
	e.cancelRun()
	if e.set > 0 {
		e.set--
	} else {
		e.idx--
		e.set = 0
	}
	fx := e.enterStep()
	e.emitState()
	e.mu.Unlock()
	runEffects(fx)
}

// Pause freezes whichever clock is active. Ticks while paused are no-ops and
// are not banked.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || e.paused || e.phase == PhaseIdle || e.phase == PhaseCompleted {
		return
	}
	e.paused = true
	if e.preRoll != nil {
		e.preRoll.Pause()
	}
	if e.work != nil {
		e.work.Pause()
	}
	if e.rest != nil {
		e.rest.Pause()
	}
	e.emitState()
}

// Resume re-anchors the active clock to the current instant and continues.
func (e *Engine) Resume() {
	e.mu.Lock()
	if e.stopped || !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	if e.preRoll != nil {
		e.preRoll.Resume()
	}
	if e.work != nil {
		e.work.Resume()
	}
	if e.rest != nil {
		e.rest.Resume()
	}
	var fx []func()
	if e.pendingDrv {
		e.pendingDrv = false
		fx = e.startDrive()
	}
	e.emitState()
	e.mu.Unlock()
	runEffects(fx)
}

// RestAdd extends the running rest interval by n seconds, raising both the
// live remainder and the baseline.
func (e *Engine) RestAdd(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped || e.phase != PhaseRest || e.rest == nil || n <= 0 {
		return
	}
	e.rest.Add(n)
	e.emitState()
}

// RestSkip cuts the rest interval short; downstream behavior is identical to
// the interval elapsing naturally.
func (e *Engine) RestSkip() {
	e.mu.Lock()
	if e.stopped || e.phase != PhaseRest {
		e.mu.Unlock()
		return
	}
	e.rest = nil
	fx := e.advanceAfterRest()
	e.emitState()
	e.mu.Unlock()
	runEffects(fx)
}

// Stop abandons the session: cancels all clocks and in-flight narration.
// No summary is written. The engine accepts no further transitions.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.preRoll = nil
	e.work = nil
	e.rest = nil
	e.mu.Unlock()
	e.announcer.Stop()
}

// Completed reports whether the session reached its terminal state.
func (e *Engine) Completed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase == PhaseCompleted
}

// Snapshot returns a copy of the current run state.
func (e *Engine) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// AnnouncementDone reports that the utterance started for generation gen has
// finished. Called by the announcer's completion path; stale generations
// (after skip/previous) are ignored.
func (e *Engine) AnnouncementDone(gen int) {
	e.mu.Lock()
	if e.stopped || e.phase != PhaseAnnouncing || gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.lastKey = e.pendingKey
	var fx []func()
	if e.paused {
		e.pendingDrv = true
	} else {
		fx = e.startDrive()
	}
	e.emitState()
	e.mu.Unlock()
	runEffects(fx)
}

// --- internal transitions (called with e.mu held) ---

// enterStep announces the item/set at the current position if its key is new,
// otherwise selects the drive mode directly. Degenerate steps are skipped
// with no rest.
func (e *Engine) enterStep() []func() {
	if e.idx >= len(e.items) {
		return e.complete()
	}
	item := e.items[e.idx]

	var key string
	if item.Kind == KindWorkout {
		if len(item.Sets) == 0 || e.set >= len(item.Sets) {
			return e.skipItem()
		}
		s := item.Sets[e.set]
		if s.Reps <= 0 && s.TimeSeconds <= 0 {
			return e.skipItem()
		}
		key = fmt.Sprintf("%s-%d", item.RefID, e.set)
	} else {
		key = fmt.Sprintf("%s-%d", item.RefID, e.idx)
	}

	if key != e.lastKey {
		e.phase = PhaseAnnouncing
		e.pendingKey = key
		e.gen++
		gen := e.gen
		text := announceText(item, e.set)
		return []func(){func() {
			e.announcer.Announce(text, func() { e.AnnouncementDone(gen) })
		}}
	}
	return e.startDrive()
}

// skipItem advances past a degenerate item or set without inserting rest.
func (e *Engine) skipItem() []func() {
	if e.idx >= len(e.items)-1 {
		return e.complete()
	}
	e.idx++
	e.set = 0
	e.lastKey = ""
	return e.enterStep()
}

// startDrive selects the drive mode for the current step: pre-roll plus a
// work timer when time-driven, rep-wait otherwise. Refuses to start a second
// clock while one is active.
func (e *Engine) startDrive() []func() {
	if e.preRoll != nil || e.work != nil {
		return nil
	}
	item := e.items[e.idx]
	var seconds int
	switch {
	case item.Kind == KindWorkout:
		s := item.Sets[e.set]
		if s.TimeSeconds <= 0 {
			e.phase = PhaseRepWait
			return nil
		}
		seconds = s.TimeSeconds
	case item.Prefs.CountdownSeconds > 0:
		seconds = item.Prefs.CountdownSeconds
	default:
		// Open-ended geo activity: wait for a manual Done.
		e.phase = PhaseRepWait
		return nil
	}

	if e.preRollSec <= 0 {
		e.notifier.SessionEvent(Event{Type: EventSound, Cue: CueWhistle})
		e.startWork(seconds)
		return nil
	}
	e.phase = PhasePreRoll
	e.pendingWork = seconds
	e.preRoll = newIntervalTimer(e.clock, e.preRollSec)
	e.lastSpoken = e.preRollSec
	e.announcer.Say(strconv.Itoa(e.preRollSec))
	return nil
}

func (e *Engine) startWork(seconds int) {
	e.phase = PhaseActive
	e.work = newIntervalTimer(e.clock, seconds)
}

// finishStep runs after a work timer elapses or a manual Done: either the
// terminal transition, or a rest interval before the next step.
func (e *Engine) finishStep() []func() {
	if e.isLastStep() {
		return e.complete()
	}
	e.phase = PhaseRest
	e.rest = newRestTimer(e.clock, e.restSec)

	speech := fmt.Sprintf("Rest for %d seconds.", e.restSec)
	item := e.items[e.idx]
	switching := item.Kind != KindWorkout || e.set >= len(item.Sets)-1
	if switching && e.idx < len(e.items)-1 {
		next := e.items[e.idx+1]
		speech += fmt.Sprintf(" Up next, %s.", next.Name)
		if next.Description != "" {
			speech += " " + next.Description
		}
	}
	e.announcer.Say(speech)
	return nil
}

// advanceAfterRest moves to the next set of the current item, or to the next
// item, and forces re-announcement.
func (e *Engine) advanceAfterRest() []func() {
	item := e.items[e.idx]
	if item.Kind == KindWorkout && e.set < len(item.Sets)-1 {
		e.set++
	} else {
		if e.idx >= len(e.items)-1 {
			// Rest should not have been inserted after the final step; failsafe.
			return e.complete()
		}
		e.idx++
		e.set = 0
	}
	e.lastKey = ""
	return e.enterStep()
}

func (e *Engine) isLastStep() bool {
	if e.idx != len(e.items)-1 {
		return false
	}
	item := e.items[e.idx]
	if item.Kind != KindWorkout {
		return true
	}
	return e.set >= len(item.Sets)-1
}

// complete is the terminal transition: celebration cues, a summary built and
// handed to the persister exactly once, clocks torn down.
func (e *Engine) complete() []func() {
	e.phase = PhaseCompleted
	e.preRoll = nil
	e.work = nil
	e.rest = nil
	e.notifier.SessionEvent(Event{Type: EventSound, Cue: CueClapping})
	e.announcer.Say("Program complete! Great job!")
	if e.persisted {
		return nil
	}
	e.persisted = true
	summary := e.buildSummary()
	e.notifier.SessionEvent(Event{Type: EventCompleted, Summary: summary})
	return []func(){func() { e.persist(summary) }}
}

func (e *Engine) cancelRun() {
	e.preRoll = nil
	e.work = nil
	e.rest = nil
	e.pendingDrv = false
	e.gen++ // invalidates any pending announcement completion
	e.lastKey = ""
	e.announcer.Stop()
}

// buildSummary assembles the completion record from the planned program
// parameters and the wall-clock run duration.
func (e *Engine) buildSummary() *models.ProgramSession {
	now := e.clock.Now()
	s := &models.ProgramSession{
		ID:          uuid.New(),
		UserID:      e.userID,
		ProgramID:   e.programID,
		ProgramName: e.programName,
		PerformedAt: e.started,
		EndTime:     &now,
	}
	if s.ProgramName == "" {
		s.ProgramName = "Untitled Program"
	}
	s.TotalDurationMinutes = int(math.Round(now.Sub(e.started).Minutes()))

	for _, item := range e.items {
		switch item.Kind {
		case KindWorkout:
			wid, _ := uuid.Parse(item.RefID)
			w := models.SessionWorkout{
				WorkoutID:    wid,
				Name:         item.Name,
				ExerciseType: item.ExerciseType,
				Sets:         make([]models.SessionSet, 0, len(item.Sets)),
			}
			for _, set := range item.Sets {
				w.Sets = append(w.Sets, models.SessionSet{
					Reps:        set.Reps,
					TimeSeconds: set.TimeSeconds,
					WeightKg:    set.WeightKg,
				})
			}
			s.Workouts = append(s.Workouts, w)
		case KindGeo:
			aid, _ := uuid.Parse(item.RefID)
			s.GeoActivities = append(s.GeoActivities, models.SessionActivity{
				ActivityID:    aid,
				Name:          item.Name,
				ExerciseType:  item.ExerciseType,
				DistanceKm:    item.Prefs.DistanceKm,
				AvgPace:       item.Prefs.AvgPace,
				MovingTimeSec: item.Prefs.CountdownSeconds,
			})
		}
	}
	return s
}

// persist hands the summary to the persister. Failures are reported and
// logged; the completed state is never reverted and no retry happens here.
func (e *Engine) persist(summary *models.ProgramSession) {
	if e.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.persister.SaveSession(ctx, summary); err != nil {
		e.log.Error("failed to save session summary", "session", summary.ID, "error", err)
		e.notifier.SessionEvent(Event{Type: EventError, Err: "failed to save session: " + err.Error()})
		return
	}
	e.log.Info("session summary saved", "session", summary.ID, "program", summary.ProgramName)
}

func (e *Engine) snapshotLocked() *State {
	item := ExerciseItem{}
	if e.idx < len(e.items) {
		item = e.items[e.idx]
	}
	st := &State{
		Phase:      e.phase,
		Index:      e.idx,
		Set:        e.set,
		TotalItems: len(e.items),
		ItemName:   item.Name,
		Paused:     e.paused,
		Completed:  e.phase == PhaseCompleted,
	}
	switch e.phase {
	case PhasePreRoll:
		st.Countdown = e.preRoll.Remaining()
	case PhaseActive:
		st.ExerciseTime = e.work.Remaining()
	case PhaseRepWait:
		st.RepWait = true
		if item.Kind == KindWorkout && e.set < len(item.Sets) {
			st.TargetReps = item.Sets[e.set].Reps
		}
	case PhaseRest:
		st.RestTime = e.rest.Remaining()
		st.RestBaseline = e.rest.Baseline()
	}
	if e.phase != PhaseCompleted {
		st.NextUp = e.nextPreview()
	}
	return st
}

// nextPreview describes what follows the current step: the next set of the
// same workout, the next item, or the finish marker.
func (e *Engine) nextPreview() *Preview {
	if e.idx >= len(e.items) {
		return nil
	}
	item := e.items[e.idx]
	if item.Kind == KindWorkout && len(item.Sets) > 0 && e.set < len(item.Sets)-1 {
		return &Preview{Name: item.Name, Info: fmt.Sprintf("Set %d of %d", e.set+2, len(item.Sets))}
	}
	if e.idx < len(e.items)-1 {
		next := e.items[e.idx+1]
		if next.Kind == KindWorkout {
			return &Preview{Name: next.Name, Info: fmt.Sprintf("%d Sets", len(next.Sets))}
		}
		return &Preview{Name: next.Name, Info: "Geo Activity"}
	}
	return &Preview{Name: "Finish", Info: "Program Complete"}
}

func (e *Engine) emitState() {
	e.notifier.SessionEvent(Event{Type: EventState, State: e.snapshotLocked()})
}

func runEffects(fx []func()) {
	for _, f := range fx {
		f()
	}
}
