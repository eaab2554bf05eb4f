package coach

import "github.com/claude/repcoach/internal/models"

// EventType identifies what a session event carries.
type EventType string

const (
	// EventState carries a run-state snapshot.
	EventState EventType = "state"
	// EventSpeech carries narration text for the client's TTS layer.
	EventSpeech EventType = "speech"
	// EventSound carries a named audio cue.
	EventSound EventType = "sound"
	// EventCompleted carries the final session summary.
	EventCompleted EventType = "completed"
	// EventError carries a non-fatal failure notice (e.g. persistence).
	EventError EventType = "error"
)

// SoundCue names the discrete audio effects the player triggers. The server
// never renders audio; clients map cues to their own assets.
type SoundCue string

const (
	CueBell     SoundCue = "bell"
	CueWhistle  SoundCue = "whistle"
	CueClapping SoundCue = "clapping"
)

// Event is what the engine emits toward clients and logs.
type Event struct {
	Type    EventType              `json:"type"`
	State   *State                 `json:"state,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Cue     SoundCue               `json:"cue,omitempty"`
	Summary *models.ProgramSession `json:"summary,omitempty"`
	Err     string                 `json:"error,omitempty"`
}

// Notifier receives engine events. Implementations must not call back into
// the engine; the engine may hold its lock while notifying.
type Notifier interface {
	SessionEvent(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

func (f NotifierFunc) SessionEvent(e Event) { f(e) }

// Phase is the sequencer's current mode.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAnnouncing Phase = "announcing"
	PhasePreRoll    Phase = "preroll"
	PhaseActive     Phase = "active"
	PhaseRepWait    Phase = "rep_wait"
	PhaseRest       Phase = "rest"
	PhaseCompleted  Phase = "completed"
)

// Preview describes what comes after the current step, shown on the rest
// overlay.
type Preview struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

// State is a snapshot of the session run state. At most one of Countdown,
// ExerciseTime, and RepWait is the active display mode at any instant.
type State struct {
	Phase         Phase    `json:"phase"`
	Index         int      `json:"index"`
	Set           int      `json:"set"`
	TotalItems    int      `json:"total_items"`
	ItemName      string   `json:"item_name,omitempty"`
	Paused        bool     `json:"paused"`
	Countdown     int      `json:"countdown"`
	ExerciseTime  int      `json:"exercise_time"`
	RepWait       bool     `json:"rep_wait"`
	TargetReps    int      `json:"target_reps,omitempty"`
	RestTime      int      `json:"rest_time"`
	RestBaseline  int      `json:"rest_baseline,omitempty"`
	Completed     bool     `json:"completed"`
	NextUp        *Preview `json:"next_up,omitempty"`
}
