package coach

import (
	"math"
	"time"
)

// intervalTimer is a pause-respecting countdown anchored to a wall-clock
// deadline. Remaining time is recomputed from the clock on every read rather
// than decremented, so tick jitter cannot drift the displayed value away from
// real elapsed time. While paused the remaining seconds are frozen and the
// deadline is re-anchored on resume; paused time is never banked.
type intervalTimer struct {
	clock    Clock
	deadline time.Time
	frozen   int
	paused   bool
}

func newIntervalTimer(clock Clock, seconds int) *intervalTimer {
	return &intervalTimer{
		clock:    clock,
		deadline: clock.Now().Add(time.Duration(seconds) * time.Second),
	}
}

// Remaining returns whole seconds left, clamped at zero.
func (t *intervalTimer) Remaining() int {
	if t.paused {
		return t.frozen
	}
	rem := int(math.Ceil(t.deadline.Sub(t.clock.Now()).Seconds()))
	if rem < 0 {
		return 0
	}
	return rem
}

func (t *intervalTimer) Pause() {
	if t.paused {
		return
	}
	t.frozen = t.Remaining()
	t.paused = true
}

func (t *intervalTimer) Resume() {
	if !t.paused {
		return
	}
	t.deadline = t.clock.Now().Add(time.Duration(t.frozen) * time.Second)
	t.paused = false
}

// Extend pushes the deadline (or the frozen remainder, when paused) out by n
// seconds.
func (t *intervalTimer) Extend(n int) {
	if t.paused {
		t.frozen += n
		return
	}
	t.deadline = t.deadline.Add(time.Duration(n) * time.Second)
}

// restTimer wraps an intervalTimer with the baseline bookkeeping the rest
// overlay needs: adding seconds raises both the live remainder and the
// baseline, so a later re-seed does not lose the addition.
type restTimer struct {
	timer    *intervalTimer
	baseline int
}

func newRestTimer(clock Clock, seconds int) *restTimer {
	return &restTimer{
		timer:    newIntervalTimer(clock, seconds),
		baseline: seconds,
	}
}

func (r *restTimer) Remaining() int { return r.timer.Remaining() }
func (r *restTimer) Baseline() int  { return r.baseline }
func (r *restTimer) Pause()         { r.timer.Pause() }
func (r *restTimer) Resume()        { r.timer.Resume() }

func (r *restTimer) Add(n int) {
	r.baseline += n
	r.timer.Extend(n)
}
