package coach

import (
	"testing"
	"time"
)

// TestIntervalTimerRemaining verifies remaining time is derived from the
// clock, rounds partial seconds up, and clamps at zero.
func TestIntervalTimerRemaining(t *testing.T) {
	clock := newManualClock()
	timer := newIntervalTimer(clock, 10)

	if got := timer.Remaining(); got != 10 {
		t.Fatalf("fresh timer remaining = %d, want 10", got)
	}

	clock.Advance(3500 * time.Millisecond)
	if got := timer.Remaining(); got != 7 {
		t.Fatalf("after 3.5s remaining = %d, want 7 (partial second rounds up)", got)
	}

	clock.Advance(time.Minute)
	if got := timer.Remaining(); got != 0 {
		t.Fatalf("past deadline remaining = %d, want 0", got)
	}
}

// TestIntervalTimerPause verifies paused time is not counted against the
// deadline and resume re-anchors from the frozen remainder.
func TestIntervalTimerPause(t *testing.T) {
	clock := newManualClock()
	timer := newIntervalTimer(clock, 10)

	clock.Advance(4 * time.Second)
	timer.Pause()
	clock.Advance(time.Hour)
	if got := timer.Remaining(); got != 6 {
		t.Fatalf("paused remaining = %d, want frozen 6", got)
	}

	timer.Resume()
	clock.Advance(5 * time.Second)
	if got := timer.Remaining(); got != 1 {
		t.Fatalf("after resume remaining = %d, want 1", got)
	}
}

// TestIntervalTimerExtendWhilePaused verifies extensions land on the frozen
// remainder when paused.
func TestIntervalTimerExtendWhilePaused(t *testing.T) {
	clock := newManualClock()
	timer := newIntervalTimer(clock, 10)
	timer.Pause()
	timer.Extend(5)
	if got := timer.Remaining(); got != 15 {
		t.Fatalf("extended paused remaining = %d, want 15", got)
	}
	timer.Resume()
	if got := timer.Remaining(); got != 15 {
		t.Fatalf("after resume remaining = %d, want 15", got)
	}
}

// TestRestTimerAdd verifies adding seconds raises the remainder and the
// baseline together.
func TestRestTimerAdd(t *testing.T) {
	clock := newManualClock()
	rest := newRestTimer(clock, 30)

	clock.Advance(10 * time.Second)
	rest.Add(30)

	if got := rest.Remaining(); got != 50 {
		t.Fatalf("remaining = %d, want 50", got)
	}
	if got := rest.Baseline(); got != 60 {
		t.Fatalf("baseline = %d, want 60", got)
	}
}
