package coach

// Announcer is the narration boundary. Announce cancels any in-flight
// utterance, speaks text, and always invokes done when the utterance
// finishes, including on narration errors, so a failed utterance never
// stalls the session. Say is fire-and-forget cue narration (countdown
// digits, "Set complete"). done must not be invoked synchronously from
// within Announce; the engine may hold its lock while calling.
type Announcer interface {
	Announce(text string, done func())
	Say(text string)
	Stop()
}

// EventAnnouncer forwards narration to a Notifier as speech events. The
// server has no idea how long client-side TTS takes, so announcement
// completion is reported asynchronously right away; clients queue utterances
// themselves.
type EventAnnouncer struct {
	notifier Notifier
}

// NewEventAnnouncer returns an Announcer that emits speech events.
func NewEventAnnouncer(n Notifier) *EventAnnouncer {
	return &EventAnnouncer{notifier: n}
}

func (a *EventAnnouncer) Announce(text string, done func()) {
	a.notifier.SessionEvent(Event{Type: EventSpeech, Text: text})
	if done != nil {
		go done()
	}
}

func (a *EventAnnouncer) Say(text string) {
	a.notifier.SessionEvent(Event{Type: EventSpeech, Text: text})
}

func (a *EventAnnouncer) Stop() {}
