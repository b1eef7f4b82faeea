package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TimerKind defines whether a timer counts down or up.
type TimerKind string

const (
	TimerKindCountdown TimerKind = "COUNTDOWN"
	TimerKindStopwatch TimerKind = "STOPWATCH"
)

// TimerState defines the lifecycle state of a timer.
type TimerState string

const (
	TimerStateStopped  TimerState = "STOPPED"
	TimerStateRunning  TimerState = "RUNNING"
	TimerStatePaused   TimerState = "PAUSED"
	TimerStateFinished TimerState = "FINISHED"
)

// Timer is a named countdown or stopwatch owned by a room.
// CurrentSeconds holds remaining seconds for countdowns and elapsed seconds
// for stopwatches; it is never negative.
type Timer struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Kind              TimerKind  `json:"kind"`
	DurationSeconds   int        `json:"duration_seconds"`
	CurrentSeconds    int        `json:"current_seconds"`
	State             TimerState `json:"state"`
	WarningThresholds []int      `json:"warning_thresholds,omitempty"`
	FiredThresholds   []int      `json:"fired_thresholds,omitempty"`
	NextTimerID       *uuid.UUID `json:"next_timer_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NewTimer creates a stopped timer. Warning thresholds are normalized to
// descending order so tick evaluation walks them largest-first.
func NewTimer(name string, kind TimerKind, durationSeconds int, warningThresholds []int) *Timer {
	thresholds := append([]int(nil), warningThresholds...)
	sort.Sort(sort.Reverse(sort.IntSlice(thresholds)))

	t := &Timer{
		ID:                uuid.New(),
		Name:              name,
		Kind:              kind,
		DurationSeconds:   durationSeconds,
		State:             TimerStateStopped,
		WarningThresholds: thresholds,
		CreatedAt:         time.Now(),
	}
	t.CurrentSeconds = t.initialSeconds()
	return t
}

func (t *Timer) initialSeconds() int {
	if t.Kind == TimerKindCountdown {
		return t.DurationSeconds
	}
	return 0
}

// Start transitions the timer to RUNNING. Warning thresholds are re-armed
// only when starting a fresh run from STOPPED; resuming from PAUSED keeps
// already-fired thresholds so they fire at most once per run.
func (t *Timer) Start() {
	if t.State == TimerStateStopped {
		t.FiredThresholds = nil
	}
	t.State = TimerStateRunning
}

// Pause freezes CurrentSeconds in place.
func (t *Timer) Pause() {
	t.State = TimerStatePaused
}

// Stop returns the timer to STOPPED with CurrentSeconds restored to its
// initial value. Valid from any state.
func (t *Timer) Stop() {
	t.State = TimerStateStopped
	t.CurrentSeconds = t.initialSeconds()
	t.FiredThresholds = nil
}

// Reset restores CurrentSeconds to its initial value. A FINISHED timer
// returns to STOPPED; a RUNNING or PAUSED timer keeps its state and simply
// restarts the count in place.
func (t *Timer) Reset() {
	t.CurrentSeconds = t.initialSeconds()
	t.FiredThresholds = nil
	if t.State == TimerStateFinished {
		t.State = TimerStateStopped
	}
}

// Adjust adds deltaSeconds to CurrentSeconds, clamped at zero. May be
// applied while running.
func (t *Timer) Adjust(deltaSeconds int) {
	t.CurrentSeconds += deltaSeconds
	if t.CurrentSeconds < 0 {
		t.CurrentSeconds = 0
	}
}

// Tick advances the timer by one second. It returns the warning thresholds
// crossed by this tick (each at most once per run) and whether the timer
// just finished. Calling Tick on a non-running timer is a no-op.
func (t *Timer) Tick() (warnings []int, finished bool) {
	if t.State != TimerStateRunning {
		return nil, false
	}

	if t.Kind == TimerKindStopwatch {
		t.CurrentSeconds++
		return nil, false
	}

	t.CurrentSeconds--
	if t.CurrentSeconds < 0 {
		t.CurrentSeconds = 0
	}

	for _, threshold := range t.WarningThresholds {
		if t.CurrentSeconds <= threshold && !t.thresholdFired(threshold) {
			t.FiredThresholds = append(t.FiredThresholds, threshold)
			warnings = append(warnings, threshold)
		}
	}

	if t.CurrentSeconds == 0 {
		t.State = TimerStateFinished
		finished = true
	}
	return warnings, finished
}

func (t *Timer) thresholdFired(threshold int) bool {
	for _, fired := range t.FiredThresholds {
		if fired == threshold {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to marshalers outside the room lock.
func (t *Timer) Clone() *Timer {
	cp := *t
	cp.WarningThresholds = append([]int(nil), t.WarningThresholds...)
	cp.FiredThresholds = append([]int(nil), t.FiredThresholds...)
	if t.NextTimerID != nil {
		next := *t.NextTimerID
		cp.NextTimerID = &next
	}
	return &cp
}
