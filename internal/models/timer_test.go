package models

import (
	"testing"
)

func tickN(t *Timer, n int) (warnings []int, finished bool) {
	for i := 0; i < n; i++ {
		w, f := t.Tick()
		warnings = append(warnings, w...)
		if f {
			finished = true
		}
	}
	return warnings, finished
}

func TestCountdownLifecycle(t *testing.T) {
	timer := NewTimer("Talk", TimerKindCountdown, 10, nil)

	if timer.State != TimerStateStopped {
		t.Fatalf("new timer state = %s, want STOPPED", timer.State)
	}
	if timer.CurrentSeconds != 10 {
		t.Fatalf("new timer current = %d, want 10", timer.CurrentSeconds)
	}

	timer.Start()
	if timer.State != TimerStateRunning {
		t.Fatalf("after Start state = %s, want RUNNING", timer.State)
	}

	tickN(timer, 3)
	if timer.CurrentSeconds != 7 {
		t.Fatalf("after 3 ticks current = %d, want 7", timer.CurrentSeconds)
	}

	timer.Pause()
	if timer.State != TimerStatePaused {
		t.Fatalf("after Pause state = %s, want PAUSED", timer.State)
	}
	if w, f := timer.Tick(); len(w) != 0 || f {
		t.Fatal("tick on paused timer should be a no-op")
	}
	if timer.CurrentSeconds != 7 {
		t.Fatalf("paused timer current = %d, want 7", timer.CurrentSeconds)
	}

	timer.Stop()
	if timer.State != TimerStateStopped || timer.CurrentSeconds != 10 {
		t.Fatalf("after Stop state = %s current = %d, want STOPPED/10", timer.State, timer.CurrentSeconds)
	}
}

func TestCountdownFinishesExactlyOnce(t *testing.T) {
	timer := NewTimer("Short", TimerKindCountdown, 2, nil)
	timer.Start()

	if _, finished := timer.Tick(); finished {
		t.Fatal("finished after 1 of 2 ticks")
	}
	_, finished := timer.Tick()
	if !finished {
		t.Fatal("not finished after reaching zero")
	}
	if timer.State != TimerStateFinished {
		t.Fatalf("state = %s, want FINISHED", timer.State)
	}
	if timer.CurrentSeconds != 0 {
		t.Fatalf("current = %d, want 0", timer.CurrentSeconds)
	}

	// FINISHED is terminal until reset; further ticks change nothing.
	if w, f := timer.Tick(); len(w) != 0 || f {
		t.Fatal("tick on finished timer should be a no-op")
	}

	timer.Reset()
	if timer.State != TimerStateStopped || timer.CurrentSeconds != 2 {
		t.Fatalf("after Reset state = %s current = %d, want STOPPED/2", timer.State, timer.CurrentSeconds)
	}
}

func TestWarningFiresOncePerRun(t *testing.T) {
	timer := NewTimer("Talk", TimerKindCountdown, 5, []int{3})
	timer.Start()

	warnings, _ := tickN(timer, 4)
	if len(warnings) != 1 || warnings[0] != 3 {
		t.Fatalf("warnings = %v, want [3]", warnings)
	}

	// Reset and re-run: the threshold fires again exactly once.
	timer.Stop()
	timer.Start()
	warnings, _ = tickN(timer, 5)
	if len(warnings) != 1 || warnings[0] != 3 {
		t.Fatalf("warnings after re-run = %v, want [3]", warnings)
	}
}

func TestResumeKeepsFiredWarnings(t *testing.T) {
	timer := NewTimer("Talk", TimerKindCountdown, 5, []int{4})
	timer.Start()

	warnings, _ := tickN(timer, 2)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one fired", warnings)
	}

	timer.Pause()
	timer.Start() // resume, not a fresh run
	warnings, _ = tickN(timer, 2)
	if len(warnings) != 0 {
		t.Fatalf("warnings after resume = %v, want none", warnings)
	}
}

func TestWarningThresholdsSortedDescending(t *testing.T) {
	timer := NewTimer("Talk", TimerKindCountdown, 300, []int{30, 60, 120})
	want := []int{120, 60, 30}
	for i, threshold := range timer.WarningThresholds {
		if threshold != want[i] {
			t.Fatalf("thresholds = %v, want %v", timer.WarningThresholds, want)
		}
	}
}

func TestAdjustClampsAtZero(t *testing.T) {
	timer := NewTimer("Talk", TimerKindCountdown, 30, nil)
	timer.Start()

	timer.Adjust(-1000)
	if timer.CurrentSeconds != 0 {
		t.Fatalf("current = %d, want 0 after large negative adjust", timer.CurrentSeconds)
	}

	timer.Adjust(45)
	if timer.CurrentSeconds != 45 {
		t.Fatalf("current = %d, want 45", timer.CurrentSeconds)
	}
}

func TestResetWhileRunningKeepsRunning(t *testing.T) {
	timer := NewTimer("Talk", TimerKindCountdown, 10, nil)
	timer.Start()
	tickN(timer, 4)

	timer.Reset()
	if timer.State != TimerStateRunning {
		t.Fatalf("state = %s, want RUNNING after reset in place", timer.State)
	}
	if timer.CurrentSeconds != 10 {
		t.Fatalf("current = %d, want 10", timer.CurrentSeconds)
	}
}

func TestStopwatchCountsUp(t *testing.T) {
	timer := NewTimer("Q&A", TimerKindStopwatch, 0, nil)
	if timer.CurrentSeconds != 0 {
		t.Fatalf("new stopwatch current = %d, want 0", timer.CurrentSeconds)
	}

	timer.Start()
	tickN(timer, 90)
	if timer.CurrentSeconds != 90 {
		t.Fatalf("current = %d, want 90", timer.CurrentSeconds)
	}

	timer.Stop()
	if timer.CurrentSeconds != 0 {
		t.Fatalf("current = %d, want 0 after stop", timer.CurrentSeconds)
	}
}
