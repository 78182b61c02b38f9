package engine

import (
	"sync"
	"time"
)

// smootherCadence is the fixed internal step rate of value transitions,
// independent of any caller-visible timer
const smootherCadence = 25 * time.Millisecond

// Smoother interpolates between two temperature values over a duration,
// delivering each intermediate value to a step callback. A transition is
// superseded by the next Set and canceled by Stop; there is no blending
// between two in-flight transitions.
type Smoother struct {
	mu       sync.Mutex
	cadence  time.Duration
	dispatch func(fn func())
	gen      uint64
	active   bool
}

// NewSmoother creates a smoother delivering steps through the given
// dispatch function (the control loop's serializer)
func NewSmoother(dispatch func(fn func())) *Smoother {
	return &Smoother{cadence: smootherCadence, dispatch: dispatch}
}

// Set starts a transition from start to end over the given duration,
// canceling any previous transition on this instance. onStep receives each
// interpolated value; the final call delivers exactly end.
func (s *Smoother) Set(start, end uint16, duration time.Duration, onStep func(value uint16)) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.active = true
	s.mu.Unlock()

	go s.run(start, end, duration, onStep, gen)
}

// Stop cancels any in-flight transition without a final callback
func (s *Smoother) Stop() {
	s.mu.Lock()
	s.gen++
	s.active = false
	s.mu.Unlock()
}

// Active reports whether a transition is in flight
func (s *Smoother) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// current reports whether gen is still the live transition
func (s *Smoother) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Smoother) run(start, end uint16, duration time.Duration, onStep func(uint16), gen uint64) {
	if duration <= 0 {
		s.complete(gen)
		s.deliver(end, onStep, gen)
		return
	}

	begin := time.Now()
	ticker := time.NewTicker(s.cadence)
	defer ticker.Stop()

	for range ticker.C {
		if !s.current(gen) {
			return
		}
		elapsed := time.Since(begin)
		if elapsed >= duration {
			s.complete(gen)
			s.deliver(end, onStep, gen)
			return
		}
		frac := float64(elapsed) / float64(duration)
		value := uint16(float64(start) + frac*(float64(end)-float64(start)))
		s.deliver(value, onStep, gen)
	}
}

// complete marks the transition finished if it is still the live one
func (s *Smoother) complete(gen uint64) {
	s.mu.Lock()
	if s.gen == gen {
		s.active = false
	}
	s.mu.Unlock()
}

// deliver hands a step to the control loop. The generation re-check inside
// the dispatched closure keeps a superseded transition from landing a stale
// value after its replacement started.
func (s *Smoother) deliver(value uint16, onStep func(uint16), gen uint64) {
	s.dispatch(func() {
		if !s.current(gen) {
			return
		}
		onStep(value)
	})
}
