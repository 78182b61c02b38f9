package engine

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestUntilNextBoundary(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		interval time.Duration
		expected time.Duration
	}{
		{
			name:     "mid interval",
			now:      time.Date(2026, 3, 14, 12, 17, 30, 0, time.UTC),
			interval: 15 * time.Minute,
			expected: 12*time.Minute + 30*time.Second,
		},
		{
			name:     "exactly on boundary waits a full interval",
			now:      time.Date(2026, 3, 14, 12, 15, 0, 0, time.UTC),
			interval: 15 * time.Minute,
			expected: 15 * time.Minute,
		},
		{
			name:     "hourly",
			now:      time.Date(2026, 3, 14, 12, 59, 0, 0, time.UTC),
			interval: time.Hour,
			expected: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := untilNextBoundary(tt.now, tt.interval); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTimerFiresRepeatedly(t *testing.T) {
	var fires atomic.Int32
	timer := NewTimer(20*time.Millisecond, func() { fires.Add(1) })
	defer timer.SetEnabled(false)

	timer.SetEnabled(true)
	if !timer.Enabled() {
		t.Fatal("timer not enabled")
	}

	deadline := time.After(2 * time.Second)
	for fires.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 fires, got %d", fires.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTimerDisableStopsFiring(t *testing.T) {
	var fires atomic.Int32
	timer := NewTimer(15*time.Millisecond, func() { fires.Add(1) })

	timer.SetEnabled(true)
	time.Sleep(60 * time.Millisecond)
	timer.SetEnabled(false)

	seen := fires.Load()
	time.Sleep(80 * time.Millisecond)

	// A tick dispatched right at the disable may still complete
	if after := fires.Load(); after > seen+1 {
		t.Errorf("timer kept firing after disable: %d -> %d", seen, after)
	}
}

func TestTimerSetEnabledIdempotent(t *testing.T) {
	timer := NewTimer(time.Hour, func() {})
	defer timer.SetEnabled(false)

	timer.SetEnabled(true)
	timer.SetEnabled(true) // must not panic or double-start
	if !timer.Enabled() {
		t.Fatal("timer not enabled")
	}
	timer.SetEnabled(false)
	timer.SetEnabled(false)
	if timer.Enabled() {
		t.Fatal("timer still enabled")
	}
}

func TestCountdownRearmReplacesPending(t *testing.T) {
	var fired atomic.Int32
	start := time.Now()
	var firedAt atomic.Int64

	c := NewCountdown(func() {
		fired.Add(1)
		firedAt.Store(int64(time.Since(start)))
	})

	// Arm for 80ms, then 30ms later replace with 300ms: the countdown must
	// fire once, around 330ms from the start, never around 80ms
	c.Arm(80 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	c.Arm(300 * time.Millisecond)

	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatal("countdown fired on the replaced schedule")
	}

	deadline := time.After(2 * time.Second)
	for fired.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("countdown never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if fired.Load() != 1 {
		t.Errorf("expected exactly one fire, got %d", fired.Load())
	}
	if elapsed := time.Duration(firedAt.Load()); elapsed < 250*time.Millisecond {
		t.Errorf("fired too early: %v", elapsed)
	}
}

func TestCountdownCancel(t *testing.T) {
	var fired atomic.Int32
	c := NewCountdown(func() { fired.Add(1) })

	c.Arm(50 * time.Millisecond)
	if !c.Pending() {
		t.Fatal("countdown not pending after arm")
	}
	c.Cancel()
	if c.Pending() {
		t.Fatal("countdown still pending after cancel")
	}

	time.Sleep(120 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("canceled countdown fired")
	}
}
