package engine

import (
	"sync"
	"testing"
	"time"
)

// serialDispatch runs closures immediately, serialized by a mutex, standing
// in for the control loop in these tests
type serialDispatch struct {
	mu sync.Mutex
}

func (d *serialDispatch) dispatch(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

func collectSteps(t *testing.T, s *Smoother, start, end uint16, duration time.Duration) []uint16 {
	t.Helper()

	var mu sync.Mutex
	var values []uint16
	done := make(chan struct{})

	s.Set(start, end, duration, func(v uint16) {
		mu.Lock()
		values = append(values, v)
		finished := v == end
		mu.Unlock()
		if finished {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(duration + 2*time.Second):
		t.Fatal("transition did not complete in time")
	}

	mu.Lock()
	defer mu.Unlock()
	return values
}

func TestSmootherConvergence(t *testing.T) {
	d := &serialDispatch{}
	s := NewSmoother(d.dispatch)

	values := collectSteps(t, s, 100, 200, 500*time.Millisecond)

	if len(values) == 0 {
		t.Fatal("no steps delivered")
	}
	if final := values[len(values)-1]; final != 200 {
		t.Errorf("expected final value 200, got %d", final)
	}
	for i, v := range values {
		if v < 100 || v > 200 {
			t.Errorf("step %d out of bounds: %d", i, v)
		}
		if i > 0 && v < values[i-1] {
			t.Errorf("step %d not monotonic: %d after %d", i, v, values[i-1])
		}
	}
}

func TestSmootherDescending(t *testing.T) {
	d := &serialDispatch{}
	s := NewSmoother(d.dispatch)

	values := collectSteps(t, s, 6500, 3000, 300*time.Millisecond)

	if final := values[len(values)-1]; final != 3000 {
		t.Errorf("expected final value 3000, got %d", final)
	}
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			t.Errorf("step %d not monotonic: %d after %d", i, values[i], values[i-1])
		}
	}
}

func TestSmootherZeroDurationDeliversEndOnce(t *testing.T) {
	d := &serialDispatch{}
	s := NewSmoother(d.dispatch)

	values := collectSteps(t, s, 100, 200, 0)

	if len(values) != 1 || values[0] != 200 {
		t.Errorf("expected single final step 200, got %v", values)
	}
}

func TestSmootherStopSuppressesFurtherSteps(t *testing.T) {
	d := &serialDispatch{}
	s := NewSmoother(d.dispatch)

	var mu sync.Mutex
	var values []uint16

	s.Set(100, 200, 5*time.Second, func(v uint16) {
		mu.Lock()
		values = append(values, v)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	mu.Lock()
	seen := len(values)
	mu.Unlock()

	// A step dispatched before Stop may still land; after that, nothing
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(values) > seen+1 {
		t.Errorf("steps continued after Stop: %d -> %d", seen, len(values))
	}
	for _, v := range values {
		if v == 200 {
			t.Error("final value delivered despite Stop")
		}
	}
	if s.Active() {
		t.Error("smoother still active after Stop")
	}
}

func TestSmootherRestartDiscardsPreviousTrajectory(t *testing.T) {
	d := &serialDispatch{}
	s := NewSmoother(d.dispatch)

	var mu sync.Mutex
	var firstSteps, values []uint16
	done := make(chan struct{})

	s.Set(100, 200, 5*time.Second, func(v uint16) {
		mu.Lock()
		firstSteps = append(firstSteps, v)
		mu.Unlock()
	})

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	firstSeen := len(firstSteps)
	mu.Unlock()

	s.Set(1000, 1100, 300*time.Millisecond, func(v uint16) {
		mu.Lock()
		values = append(values, v)
		finished := v == 1100
		mu.Unlock()
		if finished {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("replacement transition did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, v := range values {
		if v < 1000 || v > 1100 {
			t.Errorf("replacement step out of bounds: %d", v)
		}
	}
	// At most one already-dispatched step of the first transition may land
	// after the replacement starts; the trajectory itself must be discarded
	if len(firstSteps) > firstSeen+1 {
		t.Errorf("superseded transition kept stepping: %d -> %d", firstSeen, len(firstSteps))
	}
}
