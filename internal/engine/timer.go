package engine

import (
	"sync"
	"time"
)

// Timer is a cancelable, re-enableable periodic timer. Interval and enabled
// state can be changed at any time and take effect for the next scheduled
// firing. Disabling is best-effort: a tick already dispatched before the
// disable may still complete.
type Timer struct {
	mu       sync.Mutex
	interval time.Duration
	aligned  bool
	enabled  bool
	stop     chan struct{}
	fire     func()
}

// NewTimer creates a repeating timer firing at a fixed offset from activation
func NewTimer(interval time.Duration, fire func()) *Timer {
	return &Timer{interval: interval, fire: fire}
}

// NewAlignedTimer creates a repeating timer whose firings are aligned to
// wall-clock interval boundaries, so periodic effects stay synchronized to
// real time across process restarts
func NewAlignedTimer(interval time.Duration, fire func()) *Timer {
	return &Timer{interval: interval, aligned: true, fire: fire}
}

// SetInterval changes the firing interval for the next scheduled firing
func (t *Timer) SetInterval(interval time.Duration) {
	t.mu.Lock()
	t.interval = interval
	t.mu.Unlock()
}

// SetEnabled starts or stops the timer. Enabling an enabled timer or
// disabling a disabled one is a no-op.
func (t *Timer) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enabled == enabled {
		return
	}
	t.enabled = enabled

	if enabled {
		t.stop = make(chan struct{})
		go t.loop(t.stop)
	} else {
		close(t.stop)
		t.stop = nil
	}
}

// Enabled reports whether the timer is currently running
func (t *Timer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// nextDelay reads the current interval and computes the wait until the next
// firing, honoring wall-clock alignment when configured
func (t *Timer) nextDelay() time.Duration {
	t.mu.Lock()
	interval := t.interval
	aligned := t.aligned
	t.mu.Unlock()

	if interval <= 0 {
		interval = time.Second
	}
	if !aligned {
		return interval
	}
	return untilNextBoundary(time.Now(), interval)
}

func (t *Timer) loop(stop chan struct{}) {
	timer := time.NewTimer(t.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.fire()
			timer.Reset(t.nextDelay())
		case <-stop:
			return
		}
	}
}

// untilNextBoundary returns the wait until the next wall-clock boundary of
// the given interval, never zero
func untilNextBoundary(now time.Time, interval time.Duration) time.Duration {
	delay := interval - now.Sub(now.Truncate(interval))
	if delay <= 0 {
		delay = interval
	}
	return delay
}

// Countdown is a one-shot, re-armable timer. Arming while a countdown is
// pending replaces it; countdowns never stack.
type Countdown struct {
	mu    sync.Mutex
	timer *time.Timer
	fire  func()
}

// NewCountdown creates a countdown invoking fire when it expires
func NewCountdown(fire func()) *Countdown {
	return &Countdown{fire: fire}
}

// Arm schedules the countdown to fire after d, replacing any pending one
func (c *Countdown) Arm(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		c.timer = nil
		c.mu.Unlock()
		c.fire()
	})
}

// Cancel stops any pending countdown without firing
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Pending reports whether a countdown is currently armed
func (c *Countdown) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
