// Package engine contains the control loop that owns all runtime state of
// the daemon. Commands, timer ticks, settings notifications, and async
// completions are serialized onto a single goroutine, so the state is never
// mutated concurrently and async results are always re-validated against the
// state that exists when they land.
package engine

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ksaarinen/duskd/internal/display"
	"github.com/ksaarinen/duskd/internal/geo"
	"github.com/ksaarinen/duskd/internal/solar"
	"github.com/ksaarinen/duskd/pkg/config"
)

const (
	// Cycle preview cadence: every 10ms of wall time advances the simulated
	// clock by 3 minutes, sweeping 24 hours in ~48 real seconds
	previewTickInterval = 10 * time.Millisecond
	previewStep         = 3 * time.Minute
	previewSpan         = 24 * time.Hour

	// Upper bound on one geolocation + solar resolution cycle
	syncTimeout = 30 * time.Second
)

// TemperatureCurve maps a timestamp to a target temperature. Pure and
// deterministic; results are bounded by the configured min/max.
type TemperatureCurve interface {
	TemperatureAt(t time.Time) uint16
}

// FullscreenMonitor reports whether the foreground window is fullscreen and
// notifies on changes. Monitoring itself is toggled via SetUseEventHooks.
type FullscreenMonitor interface {
	IsForegroundFullscreen() bool
	SetUseEventHooks(enabled bool)
	OnChange(fn func()) func()
}

// Deps are the collaborators the engine drives
type Deps struct {
	Store   *config.Store
	Curve   TemperatureCurve
	Applier display.Applier
	Monitor FullscreenMonitor
	Locator geo.Locator
	Solar   solar.Resolver

	// SyncObserver, if set, receives every committed solar sync result
	// (used by the Redis sync cache). Invoked on the control loop.
	SyncObserver func(loc geo.Location, times solar.Times)

	Logger *slog.Logger

	// Now overrides the clock, for tests
	Now func() time.Time
}

// Engine is the control loop orchestrator
type Engine struct {
	store   *config.Store
	curve   TemperatureCurve
	applier display.Applier
	monitor FullscreenMonitor
	locator geo.Locator
	solar   solar.Resolver
	syncObs func(geo.Location, solar.Times)
	logger  *slog.Logger
	now     func() time.Time

	calls chan func()
	quit  chan struct{}

	// Loop-owned state; touched only by closures running on the loop
	st           runtimeState
	syncInFlight bool

	updateTimer  *Timer
	pollTimer    *Timer
	previewTimer *Timer
	syncTimer    *Timer
	resume       *Countdown
	smoother     *Smoother

	unsubscribeStore   func()
	unsubscribeMonitor func()
	shutdownOnce       sync.Once

	// Published snapshot for readers outside the loop
	snapMu    sync.RWMutex
	snap      Snapshot
	snapValid bool
	nextSubID int
	subs      map[int]func(Snapshot)
}

// New creates an engine. Start must be called before commands have effect.
func New(deps Deps) *Engine {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		store:   deps.Store,
		curve:   deps.Curve,
		applier: deps.Applier,
		monitor: deps.Monitor,
		locator: deps.Locator,
		solar:   deps.Solar,
		syncObs: deps.SyncObserver,
		logger:  deps.Logger,
		now:     now,
		calls:   make(chan func(), 64),
		quit:    make(chan struct{}),
		subs:    make(map[int]func(Snapshot)),
	}

	s := deps.Store.Snapshot()
	e.updateTimer = NewTimer(s.UpdateInterval(), func() { e.dispatch(e.onUpdateTick) })
	e.pollTimer = NewTimer(s.PollingInterval(), func() { e.dispatch(e.onPollTick) })
	e.previewTimer = NewTimer(previewTickInterval, func() { e.dispatch(e.onPreviewTick) })
	e.syncTimer = NewAlignedTimer(s.SyncInterval(), func() { e.dispatch(e.startSolarSync) })
	e.resume = NewCountdown(func() { e.dispatch(func() { e.setEnabled(true) }) })
	e.smoother = NewSmoother(e.dispatch)

	return e
}

// Start launches the control loop, wires subscriptions, and performs the
// initial recompute and (when enabled) the startup solar sync
func (e *Engine) Start() {
	go e.run()

	e.unsubscribeStore = e.store.Subscribe(func(key string) {
		e.dispatch(func() { e.onSettingsChanged(key) })
	})
	e.unsubscribeMonitor = e.monitor.OnChange(func() {
		e.dispatch(e.onFullscreenChanged)
	})

	e.dispatch(func() {
		s := e.store.Snapshot()

		e.st.enabled = true
		e.st.temperature = s.DefaultTemperature
		e.st.time = e.now()

		e.monitor.SetUseEventHooks(s.FullscreenBlockingEnabled)
		e.st.blocked = s.FullscreenBlockingEnabled && e.monitor.IsForegroundFullscreen()

		e.updateTimer.SetEnabled(true)
		e.refreshPollingTimer()
		e.syncTimer.SetEnabled(s.InternetSyncEnabled)

		e.refreshTemperature()
		e.refreshGamma()
		e.refreshStatus()

		if s.InternetSyncEnabled {
			e.startSolarSync()
		}

		e.logger.Info("Engine started",
			"temperature", e.st.temperature,
			"sunrise", s.Sunrise,
			"sunset", s.Sunset,
			"internet_sync", s.InternetSyncEnabled)
	})
}

// Shutdown cancels all timers, restores the original gamma ramp, and stops
// the control loop. Idempotent.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		done := make(chan struct{})
		e.dispatch(func() {
			if e.unsubscribeStore != nil {
				e.unsubscribeStore()
			}
			if e.unsubscribeMonitor != nil {
				e.unsubscribeMonitor()
			}
			e.monitor.SetUseEventHooks(false)

			e.updateTimer.SetEnabled(false)
			e.pollTimer.SetEnabled(false)
			e.previewTimer.SetEnabled(false)
			e.syncTimer.SetEnabled(false)
			e.resume.Cancel()
			e.smoother.Stop()

			e.applier.RestoreOriginal()
			e.logger.Info("Engine stopped")

			close(e.quit)
			close(done)
		})
		<-done
	})
}

// run executes dispatched closures until shutdown
func (e *Engine) run() {
	for {
		select {
		case fn := <-e.calls:
			e.safely(fn)
		case <-e.quit:
			return
		}
	}
}

// dispatch posts a closure onto the control loop. After shutdown it returns
// without executing, so late timer ticks are harmless.
func (e *Engine) dispatch(fn func()) {
	select {
	case <-e.quit:
	case e.calls <- fn:
	}
}

// safely isolates a single tick's failure so scheduling continues
func (e *Engine) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Recovered from control loop panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// --- commands -------------------------------------------------------------

// SetEnabled turns the daemon on or off
func (e *Engine) SetEnabled(v bool) {
	e.dispatch(func() { e.setEnabled(v) })
}

func (e *Engine) setEnabled(v bool) {
	if e.st.enabled == v {
		return
	}
	e.st.enabled = v
	e.logger.Info("Enabled state changed", "enabled", v)

	if v {
		e.resume.Cancel()
	}

	e.updateTimer.SetEnabled(v)
	e.refreshPollingTimer()

	e.refreshTemperature()
	e.refreshGamma()
	e.refreshStatus()
}

// SetPreviewMode enters or leaves preview mode. Timers are untouched; only
// the displayed value changes.
func (e *Engine) SetPreviewMode(v bool) {
	e.dispatch(func() {
		if e.st.previewMode == v {
			return
		}
		e.st.previewMode = v
		if v && e.st.previewTemperature == 0 {
			e.st.previewTemperature = e.st.temperature
		}
		e.refreshGamma()
		e.refreshStatus()
	})
}

// SetPreviewTemperature changes the previewed value. Ignored unless preview
// mode is active.
func (e *Engine) SetPreviewTemperature(t uint16) {
	e.dispatch(func() {
		if !e.st.previewMode || e.st.previewTemperature == t {
			return
		}
		e.st.previewTemperature = t
		e.refreshGamma()
		e.refreshStatus()
	})
}

// DisableTemporarily disables the daemon and re-enables it after d. Calling
// again before expiry replaces the pending re-enable; durations never stack.
func (e *Engine) DisableTemporarily(d time.Duration) {
	e.dispatch(func() {
		e.resume.Arm(d)
		e.setEnabled(false)
		e.logger.Info("Temporarily disabled", "duration", d)
	})
}

// CanStartCyclePreview reports whether a cycle preview may be started
func (e *Engine) CanStartCyclePreview() bool {
	return !e.previewTimer.Enabled()
}

// StartCyclePreview begins an accelerated sweep through a full 24-hour
// schedule. No-op while a sweep is already running.
func (e *Engine) StartCyclePreview() {
	e.dispatch(func() {
		if e.previewTimer.Enabled() {
			return
		}
		if e.st.time.IsZero() {
			e.st.time = e.now()
		}
		e.st.previewTime = e.st.time
		e.st.previewMode = true
		e.previewTimer.SetEnabled(true)
		e.logger.Info("Cycle preview started", "from", e.st.previewTime)

		e.refreshGamma()
		e.refreshStatus()
	})
}

// Snapshot returns the last published runtime state
func (e *Engine) Snapshot() Snapshot {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}

// SubscribeState registers a callback invoked (on the control loop) with
// every published state change. Returns an unsubscribe function.
func (e *Engine) SubscribeState(fn func(Snapshot)) func() {
	e.snapMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subs[id] = fn
	e.snapMu.Unlock()

	return func() {
		e.snapMu.Lock()
		delete(e.subs, id)
		e.snapMu.Unlock()
	}
}

// --- timer ticks ----------------------------------------------------------

func (e *Engine) onUpdateTick() {
	e.refreshTemperature()
	e.refreshGamma()
	e.refreshStatus()
}

// onPollTick reasserts the current gamma ramp to counteract external resets
func (e *Engine) onPollTick() {
	e.refreshGamma()
}

func (e *Engine) onPreviewTick() {
	s := e.store.Snapshot()

	e.st.previewTime = e.st.previewTime.Add(previewStep)
	if e.st.previewTime.Sub(e.st.time) >= previewSpan {
		e.previewTimer.SetEnabled(false)
		e.st.previewMode = false
		e.logger.Info("Cycle preview finished")

		e.refreshTemperature()
		e.refreshGamma()
		e.refreshStatus()
		return
	}

	e.st.previewMode = true
	newTemp := e.curve.TemperatureAt(e.st.previewTime)
	if shouldApplyUpdate(e.st.previewTemperature, newTemp, s) {
		e.st.previewTemperature = newTemp
		e.refreshGamma()
	}
	e.refreshStatus()
}

// --- external events ------------------------------------------------------

func (e *Engine) onFullscreenChanged() {
	s := e.store.Snapshot()
	blocked := s.FullscreenBlockingEnabled && e.monitor.IsForegroundFullscreen()
	if e.st.blocked == blocked {
		return
	}
	e.st.blocked = blocked
	e.logger.Info("Blocking state changed", "blocked", blocked)

	e.refreshPollingTimer()
	e.refreshTemperature()
	e.refreshGamma()
	e.refreshStatus()
}

func (e *Engine) onSettingsChanged(key string) {
	s := e.store.Snapshot()
	e.logger.Debug("Setting changed", "key", key)

	switch key {
	case config.KeyUpdateIntervalSec:
		e.updateTimer.SetInterval(s.UpdateInterval())

	case config.KeyPollingIntervalSec:
		e.pollTimer.SetInterval(s.PollingInterval())

	case config.KeyPollingEnabled:
		e.refreshPollingTimer()

	case config.KeySyncIntervalMin:
		e.syncTimer.SetInterval(s.SyncInterval())

	case config.KeyFullscreenBlockingEnabled:
		e.monitor.SetUseEventHooks(s.FullscreenBlockingEnabled)
		e.onFullscreenChanged()

	case config.KeyInternetSyncEnabled:
		e.syncTimer.SetEnabled(s.InternetSyncEnabled)
		if s.InternetSyncEnabled {
			// Toggled on: sync out of band instead of waiting for the
			// next aligned boundary
			e.startSolarSync()
		}

	case config.KeyMinTemperature, config.KeyMaxTemperature,
		config.KeyDefaultTemperature, config.KeyTemperatureEpsilon,
		config.KeySmoothingEnabled, config.KeyMinimumSmoothingTemperature,
		config.KeySmoothingDurationMs, config.KeySunrise, config.KeySunset,
		config.KeyTransitionDurationMin:
		e.refreshTemperature()
		e.refreshGamma()
		e.refreshStatus()
	}
}

// --- solar sync -----------------------------------------------------------

// startSolarSync launches a geolocation + solar resolution cycle off the
// control loop. Failures are skipped silently; the next scheduled sync
// retries. The completion is marshalled back onto the loop and re-validates
// that sync is still enabled before committing.
func (e *Engine) startSolarSync() {
	if e.syncInFlight {
		return
	}
	e.syncInFlight = true

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		loc, err := e.locator.Locate(ctx)
		if err != nil {
			e.logger.Debug("Solar sync skipped: geolocation unavailable", "error", err)
			e.dispatch(func() { e.syncInFlight = false })
			return
		}

		times, err := e.solar.Times(loc, e.now())
		if err != nil {
			e.logger.Debug("Solar sync skipped: no solar times", "error", err)
			e.dispatch(func() { e.syncInFlight = false })
			return
		}

		e.dispatch(func() { e.commitSolarSync(loc, times) })
	}()
}

// commitSolarSync runs on the control loop after a successful fetch. Sync
// may have been toggled off while the fetch was in flight, so the
// precondition is re-checked before anything is written.
func (e *Engine) commitSolarSync(loc geo.Location, times solar.Times) {
	e.syncInFlight = false

	s := e.store.Snapshot()
	if !s.InternetSyncEnabled {
		e.logger.Debug("Solar sync result discarded: sync disabled while in flight")
		return
	}

	sunrise := config.FormatClock(sinceMidnight(times.Sunrise))
	sunset := config.FormatClock(sinceMidnight(times.Sunset))

	if err := e.store.SetSolarTimes(sunrise, sunset); err != nil {
		e.logger.Error("Failed to commit solar times", "error", err)
		return
	}
	e.logger.Info("Solar times synchronized", "sunrise", sunrise, "sunset", sunset)

	if e.syncObs != nil {
		e.syncObs(loc, times)
	}
}

// --- recompute cascade ----------------------------------------------------

// refreshPollingTimer applies the polling timer invariant: running iff
// enabled, not blocked, and polling is configured on
func (e *Engine) refreshPollingTimer() {
	s := e.store.Snapshot()
	e.pollTimer.SetEnabled(e.st.enabled && !e.st.blocked && s.PollingEnabled)
}

// refreshTemperature recomputes the realtime target and applies the
// epsilon/extremes update rule, smoothing large changes when configured
func (e *Engine) refreshTemperature() {
	s := e.store.Snapshot()
	e.st.time = e.now()

	var newTemp uint16
	if e.st.enabled && !e.st.blocked {
		newTemp = e.curve.TemperatureAt(e.st.time)
	} else {
		newTemp = s.DefaultTemperature
	}

	if !shouldApplyUpdate(e.st.temperature, newTemp, s) {
		return
	}

	diff := absDiff(e.st.temperature, newTemp)
	if s.SmoothingEnabled && diff >= s.MinimumSmoothingTemperature && s.SmoothingDurationMs > 0 {
		e.smoother.Set(e.st.temperature, newTemp, s.SmoothingDuration(), e.onSmoothStep)
	} else {
		e.smoother.Stop()
		e.st.temperature = newTemp
	}
}

// onSmoothStep receives each interpolated value on the control loop
func (e *Engine) onSmoothStep(value uint16) {
	e.st.temperature = value
	e.refreshGamma()
	e.refreshStatus()
}

// refreshGamma applies the ramp for the currently displayed value: the
// preview value in preview mode, the realtime value otherwise. When the
// daemon is fully off the default ramp is restored instead.
func (e *Engine) refreshGamma() {
	switch {
	case e.st.previewMode:
		e.applier.ApplyLinear(display.IntensityFromTemperature(e.st.previewTemperature))
	case !e.st.enabled:
		e.applier.RestoreDefault()
	default:
		e.applier.ApplyLinear(display.IntensityFromTemperature(e.st.temperature))
	}
}

// refreshStatus reprojects the derived state and publishes a snapshot when
// anything visible changed
func (e *Engine) refreshStatus() {
	s := e.store.Snapshot()

	cycleState, statusText := projectStatus(e.st, e.previewTimer.Enabled(), s.MinTemperature, s.MaxTemperature)

	snap := Snapshot{
		Enabled:             e.st.enabled,
		Blocked:             e.st.blocked,
		PreviewMode:         e.st.previewMode,
		CyclePreviewRunning: e.previewTimer.Enabled(),
		Temperature:         e.st.temperature,
		PreviewTemperature:  e.st.previewTemperature,
		Time:                e.st.time,
		PreviewTime:         e.st.previewTime,
		CycleState:          cycleState,
		StatusText:          statusText,
	}

	e.snapMu.Lock()
	changed := !e.snapValid || snap != e.snap
	e.snap = snap
	e.snapValid = true
	subs := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.snapMu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(snap)
	}
}

// --- helpers --------------------------------------------------------------

// shouldApplyUpdate is the epsilon/extremes rule shared by the realtime and
// preview paths: sub-epsilon changes are suppressed to avoid jitter, but the
// exact bounds always pass so full day/night values are reached precisely
func shouldApplyUpdate(current, newTemp uint16, s config.Settings) bool {
	if newTemp == s.MinTemperature || newTemp == s.MaxTemperature {
		return true
	}
	return absDiff(current, newTemp) >= s.TemperatureEpsilon
}

func absDiff(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return b - a
}

// sinceMidnight returns the clock offset of t within its own day
func sinceMidnight(t time.Time) time.Duration {
	h, m, sec := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
}
