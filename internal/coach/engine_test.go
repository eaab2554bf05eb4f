package coach

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/google/uuid"
)

// manualClock is a test clock advanced explicitly.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testAnnouncer records narration and lets the test complete announcements
// deterministically instead of via a goroutine.
type testAnnouncer struct {
	mu        sync.Mutex
	announced []string
	said      []string
	dones     []func()
	stops     int
}

func (a *testAnnouncer) Announce(text string, done func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.announced = append(a.announced, text)
	a.dones = append(a.dones, done)
}

func (a *testAnnouncer) Say(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.said = append(a.said, text)
}

func (a *testAnnouncer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
}

// finish invokes the done callback of the most recent announcement.
func (a *testAnnouncer) finish() {
	a.mu.Lock()
	if len(a.dones) == 0 {
		a.mu.Unlock()
		return
	}
	done := a.dones[len(a.dones)-1]
	a.mu.Unlock()
	done()
}

func (a *testAnnouncer) saidText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.said, " | ")
}

// recordingNotifier collects every emitted event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) SessionEvent(e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) countCue(cue SoundCue) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.Type == EventSound && e.Cue == cue {
			count++
		}
	}
	return count
}

// countingPersister counts SaveSession calls and keeps the last summary.
type countingPersister struct {
	mu    sync.Mutex
	saves int
	last  *models.ProgramSession
	err   error
}

func (p *countingPersister) SaveSession(_ context.Context, s *models.ProgramSession) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.last = s
	return p.err
}

func timedItem(name string, seconds ...int) ExerciseItem {
	sets := make([]models.SetPlan, len(seconds))
	for i, s := range seconds {
		sets[i] = models.SetPlan{TimeSeconds: s}
	}
	return ExerciseItem{Kind: KindWorkout, RefID: uuid.NewString(), Name: name, Sets: sets}
}

func repItem(name string, reps ...int) ExerciseItem {
	sets := make([]models.SetPlan, len(reps))
	for i, r := range reps {
		sets[i] = models.SetPlan{Reps: r}
	}
	return ExerciseItem{Kind: KindWorkout, RefID: uuid.NewString(), Name: name, Sets: sets}
}

func geoItem(name string, countdown int) ExerciseItem {
	return ExerciseItem{
		Kind:  KindGeo,
		RefID: uuid.NewString(),
		Name:  name,
		Prefs: models.ActivityPreferences{DistanceKm: 5, CountdownSeconds: countdown},
	}
}

type testRig struct {
	engine    *Engine
	clock     *manualClock
	announcer *testAnnouncer
	notifier  *recordingNotifier
	persister *countingPersister
}

func newTestRig(t *testing.T, items []ExerciseItem, opts Options) *testRig {
	t.Helper()
	rig := &testRig{
		clock:     newManualClock(),
		announcer: &testAnnouncer{},
		notifier:  &recordingNotifier{},
		persister: &countingPersister{},
	}
	opts.Clock = rig.clock
	opts.Announcer = rig.announcer
	opts.Notifier = rig.notifier
	opts.Persister = rig.persister
	e, err := NewEngine(items, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	rig.engine = e
	return rig
}

// tick advances the clock one second at a time and ticks the engine after
// each step, mimicking the production runner.
func (r *testRig) tick(seconds int) {
	for i := 0; i < seconds; i++ {
		r.clock.Advance(time.Second)
		r.engine.Tick()
	}
}

// TestEngineTimedSetLifecycle walks a single timed set from announcement
// through pre-roll, the work interval, and completion.
func TestEngineTimedSetLifecycle(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{timedItem("Plank", 10)}, Options{ProgramName: "Core Day"})
	e := rig.engine

	e.Start()
	if got := e.Snapshot().Phase; got != PhaseAnnouncing {
		t.Fatalf("after Start phase = %s, want %s", got, PhaseAnnouncing)
	}
	if len(rig.announcer.announced) != 1 || !strings.Contains(rig.announcer.announced[0], "Plank") {
		t.Fatalf("announced = %v, want one Plank announcement", rig.announcer.announced)
	}

	rig.announcer.finish()
	st := e.Snapshot()
	if st.Phase != PhasePreRoll || st.Countdown != 3 {
		t.Fatalf("after announcement phase = %s countdown = %d, want preroll 3", st.Phase, st.Countdown)
	}

	rig.tick(3)
	st = e.Snapshot()
	if st.Phase != PhaseActive || st.ExerciseTime != 10 {
		t.Fatalf("after pre-roll phase = %s time = %d, want active 10", st.Phase, st.ExerciseTime)
	}
	if rig.notifier.countCue(CueWhistle) != 1 {
		t.Fatal("expected a whistle at the start of the work interval")
	}

	rig.tick(10)
	st = e.Snapshot()
	if st.Phase != PhaseCompleted {
		t.Fatalf("after work interval phase = %s, want completed", st.Phase)
	}
	if rig.notifier.countCue(CueBell) != 1 {
		t.Fatal("expected a bell when the set elapsed")
	}
	if rig.notifier.countCue(CueClapping) != 1 {
		t.Fatal("expected clapping at completion")
	}
	if rig.persister.saves != 1 {
		t.Fatalf("persister saves = %d, want 1", rig.persister.saves)
	}
	if got := rig.persister.last.ProgramName; got != "Core Day" {
		t.Fatalf("summary program name = %q, want Core Day", got)
	}
}

// TestEngineDisabledPreRoll verifies a negative PreRollSeconds skips the
// countdown: timed work begins on the whistle right after the announcement,
// with no digits narrated.
func TestEngineDisabledPreRoll(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{timedItem("Plank", 10)}, Options{PreRollSeconds: -1})
	e := rig.engine

	e.Start()
	rig.announcer.finish()

	st := e.Snapshot()
	if st.Phase != PhaseActive || st.ExerciseTime != 10 {
		t.Fatalf("after announcement phase = %s time = %d, want active 10", st.Phase, st.ExerciseTime)
	}
	if rig.notifier.countCue(CueWhistle) != 1 {
		t.Fatal("expected a whistle when work starts without a pre-roll")
	}
	if got := rig.announcer.saidText(); got != "" {
		t.Fatalf("said = %q, want no countdown narration", got)
	}

	rig.tick(10)
	if !e.Completed() {
		t.Fatal("timed set did not complete after its interval")
	}
}

// TestEngineRepSetWaitsForDone verifies rep-driven sets idle under ticks and
// complete only on an explicit Done.
func TestEngineRepSetWaitsForDone(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{repItem("Pushups", 12)}, Options{})
	e := rig.engine

	e.Start()
	rig.announcer.finish()
	st := e.Snapshot()
	if !st.RepWait || st.TargetReps != 12 {
		t.Fatalf("phase = %s repWait = %v targetReps = %d, want rep wait on 12", st.Phase, st.RepWait, st.TargetReps)
	}

	rig.tick(120)
	if e.Completed() {
		t.Fatal("rep-wait step completed by ticks alone")
	}

	e.Done()
	if !e.Completed() {
		t.Fatal("Done did not complete the final rep set")
	}
	if rig.persister.saves != 1 {
		t.Fatalf("persister saves = %d, want 1", rig.persister.saves)
	}
}

// TestEngineRestBetweenSets verifies a rest interval separates consecutive
// sets, previews the next step, and is skipped after the final set.
func TestEngineRestBetweenSets(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{timedItem("Squats", 2, 2)}, Options{RestSeconds: 5})
	e := rig.engine

	e.Start()
	rig.announcer.finish()
	rig.tick(3) // pre-roll
	rig.tick(2) // work

	st := e.Snapshot()
	if st.Phase != PhaseRest || st.RestTime != 5 || st.RestBaseline != 5 {
		t.Fatalf("after set 1 phase = %s rest = %d/%d, want rest 5/5", st.Phase, st.RestTime, st.RestBaseline)
	}
	if st.NextUp == nil || st.NextUp.Info != "Set 2 of 2" {
		t.Fatalf("rest preview = %+v, want Set 2 of 2", st.NextUp)
	}
	if !strings.Contains(rig.announcer.saidText(), "Rest for 5 seconds") {
		t.Fatalf("rest narration missing, said: %s", rig.announcer.saidText())
	}

	rig.tick(5)
	st = e.Snapshot()
	if st.Phase != PhaseAnnouncing || st.Set != 1 {
		t.Fatalf("after rest phase = %s set = %d, want announcing set 1", st.Phase, st.Set)
	}

	rig.announcer.finish()
	rig.tick(3)
	rig.tick(2)
	if !e.Completed() {
		t.Fatal("final set did not complete the session")
	}
	if bells := rig.notifier.countCue(CueBell); bells != 2 {
		t.Fatalf("bells = %d, want 2 (one per set, none after rest)", bells)
	}
}

// TestEnginePauseFreezesTimers verifies paused wall-clock time is not banked:
// remaining time and position are identical before and after an arbitrarily
// long pause.
func TestEnginePauseFreezesTimers(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{timedItem("Row", 10)}, Options{})
	e := rig.engine

	e.Start()
	rig.announcer.finish()
	rig.tick(3)
	rig.tick(3)
	before := e.Snapshot()
	if before.ExerciseTime != 7 {
		t.Fatalf("remaining = %d, want 7", before.ExerciseTime)
	}

	e.Pause()
	rig.clock.Advance(10 * time.Minute)
	rig.tick(5)

	st := e.Snapshot()
	if !st.Paused || st.ExerciseTime != 7 || st.Index != before.Index || st.Set != before.Set {
		t.Fatalf("paused snapshot = %+v, want frozen copy of %+v", st, before)
	}

	e.Resume()
	rig.tick(6)
	if e.Completed() {
		t.Fatal("completed early: paused time was banked against the work interval")
	}
	rig.tick(1)
	if !e.Completed() {
		t.Fatal("did not complete after the full remaining interval")
	}
}

// TestEngineRestAddRaisesBaseline verifies adding rest seconds raises both
// the live remainder and the baseline.
func TestEngineRestAddRaisesBaseline(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{timedItem("Lunges", 2, 2)}, Options{RestSeconds: 30})
	e := rig.engine

	e.Start()
	rig.announcer.finish()
	rig.tick(3)
	rig.tick(2)
	rig.tick(10)

	st := e.Snapshot()
	if st.Phase != PhaseRest || st.RestTime != 20 {
		t.Fatalf("mid-rest = %s %d, want rest 20", st.Phase, st.RestTime)
	}

	e.RestAdd(30)
	st = e.Snapshot()
	if st.RestTime != 50 || st.RestBaseline != 60 {
		t.Fatalf("after add rest = %d baseline = %d, want 50 and 60", st.RestTime, st.RestBaseline)
	}

	rig.tick(49)
	if got := e.Snapshot().Phase; got != PhaseRest {
		t.Fatalf("rest ended early, phase = %s", got)
	}
	rig.tick(1)
	if got := e.Snapshot().Phase; got == PhaseRest {
		t.Fatal("rest did not end after the extended interval")
	}
}

// TestEngineRestSkip verifies skipping rest behaves like the interval
// elapsing naturally.
func TestEngineRestSkip(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{repItem("Curls", 10, 10)}, Options{RestSeconds: 30})
	e := rig.engine

	e.Start()
	rig.announcer.finish()
	e.Done()
	if got := e.Snapshot().Phase; got != PhaseRest {
		t.Fatalf("after Done phase = %s, want rest", got)
	}

	e.RestSkip()
	st := e.Snapshot()
	if st.Phase != PhaseAnnouncing || st.Set != 1 {
		t.Fatalf("after skip phase = %s set = %d, want announcing set 1", st.Phase, st.Set)
	}
}

// TestEngineCompletesExactlyOnce verifies the terminal state is absorbing:
// repeated commands and ticks after completion change nothing and the
// summary is persisted a single time.
func TestEngineCompletesExactlyOnce(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{repItem("Situps", 15)}, Options{})
	e := rig.engine

	e.Start()
	rig.announcer.finish()
	e.Done()
	if !e.Completed() {
		t.Fatal("session did not complete")
	}

	e.Done()
	e.Next()
	e.Previous()
	e.RestSkip()
	rig.tick(60)

	if rig.persister.saves != 1 {
		t.Fatalf("persister saves = %d, want exactly 1", rig.persister.saves)
	}
	if got := e.Snapshot().Phase; got != PhaseCompleted {
		t.Fatalf("phase after post-completion commands = %s, want completed", got)
	}
}

// TestEngineNextTerminates verifies Next makes monotonic forward progress:
// one call per item reaches completion, and Next at the last item completes
// rather than stalling.
func TestEngineNextTerminates(t *testing.T) {
	items := []ExerciseItem{
		repItem("A", 10, 10),
		timedItem("B", 30),
		geoItem("C", 0),
	}
	rig := newTestRig(t, items, Options{})
	e := rig.engine

	e.Start()
	for i := 0; i < len(items); i++ {
		if e.Completed() {
			t.Fatalf("completed after %d Next calls, want %d", i, len(items))
		}
		e.Next()
	}
	if !e.Completed() {
		t.Fatalf("not completed after %d Next calls", len(items))
	}
	if rig.persister.saves != 1 {
		t.Fatalf("persister saves = %d, want 1", rig.persister.saves)
	}
}

// TestEnginePreviousSteps verifies Previous moves back one set, then one
// item, and is a no-op at the very start.
func TestEnginePreviousSteps(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{repItem("Rows", 8, 8)}, Options{RestSeconds: 2})
	e := rig.engine

	e.Start()
	e.Previous()
	if st := e.Snapshot(); st.Index != 0 || st.Set != 0 {
		t.Fatalf("Previous at start moved to %d/%d", st.Index, st.Set)
	}

	rig.announcer.finish()
	e.Done()
	rig.tick(2)
	if st := e.Snapshot(); st.Set != 1 {
		t.Fatalf("setup failed, set = %d, want 1", st.Set)
	}

	e.Previous()
	st := e.Snapshot()
	if st.Set != 0 || st.Phase != PhaseAnnouncing {
		t.Fatalf("after Previous set = %d phase = %s, want set 0 re-announced", st.Set, st.Phase)
	}
}

// TestEngineStaleAnnouncementIgnored verifies a done callback from an
// utterance cancelled by Next cannot start the drive for the wrong step.
func TestEngineStaleAnnouncementIgnored(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{timedItem("A", 10), timedItem("B", 10)}, Options{})
	e := rig.engine

	e.Start()
	rig.announcer.mu.Lock()
	stale := rig.announcer.dones[0]
	rig.announcer.mu.Unlock()

	e.Next()
	stale()
	st := e.Snapshot()
	if st.Phase != PhaseAnnouncing || st.Index != 1 {
		t.Fatalf("stale done advanced the engine: phase = %s index = %d", st.Phase, st.Index)
	}

	rig.announcer.finish()
	if got := e.Snapshot().Phase; got != PhasePreRoll {
		t.Fatalf("fresh done ignored: phase = %s, want preroll", got)
	}
}

// TestEnginePauseDuringAnnouncement verifies the drive is deferred when the
// announcement finishes while paused and starts on resume.
func TestEnginePauseDuringAnnouncement(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{timedItem("Plank", 20)}, Options{})
	e := rig.engine

	e.Start()
	e.Pause()
	rig.announcer.finish()
	if got := e.Snapshot().Phase; got == PhasePreRoll || got == PhaseActive {
		t.Fatalf("drive started while paused, phase = %s", got)
	}

	e.Resume()
	if got := e.Snapshot().Phase; got != PhasePreRoll {
		t.Fatalf("after resume phase = %s, want preroll", got)
	}
}

// TestEngineSkipsDegenerateSteps verifies zero-rep zero-time sets advance
// without a rest interval, and a program of only degenerate steps completes
// immediately.
func TestEngineSkipsDegenerateSteps(t *testing.T) {
	empty := ExerciseItem{Kind: KindWorkout, RefID: uuid.NewString(), Name: "Ghost",
		Sets: []models.SetPlan{{}}}

	rig := newTestRig(t, []ExerciseItem{empty, repItem("Real", 10)}, Options{})
	e := rig.engine
	e.Start()
	st := e.Snapshot()
	if st.Index != 1 || st.Phase != PhaseAnnouncing {
		t.Fatalf("degenerate step not skipped: index = %d phase = %s", st.Index, st.Phase)
	}
	if got := e.Snapshot().RestTime; got != 0 {
		t.Fatalf("rest inserted around a degenerate step: %d", got)
	}

	rig2 := newTestRig(t, []ExerciseItem{empty}, Options{})
	rig2.engine.Start()
	if !rig2.engine.Completed() {
		t.Fatal("all-degenerate program did not complete on start")
	}
	if rig2.persister.saves != 1 {
		t.Fatalf("persister saves = %d, want 1", rig2.persister.saves)
	}
}

// TestEngineGeoDriveModes verifies a geo activity with a countdown runs the
// timer path while one without waits for a manual Done, and the summary
// carries the activity preferences.
func TestEngineGeoDriveModes(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{geoItem("Morning Run", 60)}, Options{})
	e := rig.engine
	e.Start()
	rig.announcer.finish()
	rig.tick(3)
	st := e.Snapshot()
	if st.Phase != PhaseActive || st.ExerciseTime != 60 {
		t.Fatalf("geo countdown phase = %s time = %d, want active 60", st.Phase, st.ExerciseTime)
	}

	rig2 := newTestRig(t, []ExerciseItem{geoItem("Open Walk", 0)}, Options{})
	rig2.engine.Start()
	rig2.announcer.finish()
	if st := rig2.engine.Snapshot(); !st.RepWait {
		t.Fatalf("open-ended geo phase = %s, want rep wait", st.Phase)
	}
	rig2.engine.Done()
	if !rig2.engine.Completed() {
		t.Fatal("open-ended geo did not complete on Done")
	}
	if got := rig2.persister.last.GeoActivities; len(got) != 1 || got[0].DistanceKm != 5 {
		t.Fatalf("summary geo activities = %+v, want one with 5 km", got)
	}
}

// TestEngineSummary verifies the completion record: planned set values,
// wall-clock duration, and start/end instants from the session clock.
func TestEngineSummary(t *testing.T) {
	pid := uuid.New()
	items := []ExerciseItem{
		{Kind: KindWorkout, RefID: uuid.NewString(), Name: "Bench",
			Sets: []models.SetPlan{{Reps: 10, WeightKg: 60}, {Reps: 8, WeightKg: 65}}},
		geoItem("Cooldown Jog", 0),
	}
	rig := newTestRig(t, items, Options{UserID: 7, ProgramID: &pid, ProgramName: "Push Day"})
	e := rig.engine

	start := rig.clock.Now()
	e.Start()
	rig.clock.Advance(42 * time.Minute)
	e.Next()
	e.Next()

	if rig.persister.saves != 1 {
		t.Fatalf("persister saves = %d, want 1", rig.persister.saves)
	}
	s := rig.persister.last
	if s.UserID != 7 || s.ProgramID == nil || *s.ProgramID != pid || s.ProgramName != "Push Day" {
		t.Fatalf("summary identity = %+v", s)
	}
	if len(s.Workouts) != 1 || len(s.Workouts[0].Sets) != 2 {
		t.Fatalf("summary workouts = %+v, want 1 workout with 2 sets", s.Workouts)
	}
	if got := s.Workouts[0].Sets[1]; got.Reps != 8 || got.WeightKg != 65 {
		t.Fatalf("planned set not carried: %+v", got)
	}
	if s.TotalDurationMinutes != 42 {
		t.Fatalf("duration = %d minutes, want 42", s.TotalDurationMinutes)
	}
	if !s.PerformedAt.Equal(start) || s.EndTime == nil {
		t.Fatalf("timestamps = %v / %v, want start %v and a set end", s.PerformedAt, s.EndTime, start)
	}
}

// TestEnginePersistFailureKeepsCompletion verifies a persister error surfaces
// as an error event without reverting the completed state.
func TestEnginePersistFailureKeepsCompletion(t *testing.T) {
	rig := newTestRig(t, []ExerciseItem{repItem("Dips", 10)}, Options{})
	rig.persister.err = context.DeadlineExceeded
	e := rig.engine

	e.Start()
	rig.announcer.finish()
	e.Done()

	if !e.Completed() {
		t.Fatal("persist failure reverted completion")
	}
	rig.notifier.mu.Lock()
	defer rig.notifier.mu.Unlock()
	found := false
	for _, ev := range rig.notifier.events {
		if ev.Type == EventError && strings.Contains(ev.Err, "failed to save session") {
			found = true
		}
	}
	if !found {
		t.Fatal("no error event emitted for the failed save")
	}
}
