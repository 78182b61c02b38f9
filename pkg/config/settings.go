package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings field keys used in change notifications. Subscribers receive the
// key of every field that changed in a single update.
const (
	KeyMinTemperature              = "minTemperature"
	KeyMaxTemperature              = "maxTemperature"
	KeyDefaultTemperature          = "defaultTemperature"
	KeyTemperatureEpsilon          = "temperatureEpsilon"
	KeySmoothingEnabled            = "smoothingEnabled"
	KeyMinimumSmoothingTemperature = "minimumSmoothingTemperature"
	KeySmoothingDurationMs         = "smoothingDurationMs"
	KeyUpdateIntervalSec           = "updateIntervalSec"
	KeyPollingEnabled              = "pollingEnabled"
	KeyPollingIntervalSec          = "pollingIntervalSec"
	KeySyncIntervalMin             = "syncIntervalMin"
	KeyFullscreenBlockingEnabled   = "fullscreenBlockingEnabled"
	KeyInternetSyncEnabled         = "internetSyncEnabled"
	KeySunrise                     = "sunrise"
	KeySunset                      = "sunset"
	KeyTransitionDurationMin       = "transitionDurationMin"
)

// Settings holds the runtime-tunable behavior of the daemon. The engine
// observes it through the Store and never mutates it except on the solar
// sync commit path.
type Settings struct {
	// Temperature bounds in Kelvin. The curve provider delivers values
	// inside [MinTemperature, MaxTemperature]; DefaultTemperature is the
	// baseline applied while disabled or blocked.
	MinTemperature     uint16 `yaml:"min_temperature"`
	MaxTemperature     uint16 `yaml:"max_temperature"`
	DefaultTemperature uint16 `yaml:"default_temperature"`

	// Minimum Kelvin delta required before an update is applied. Exact
	// min/max values always pass regardless of this threshold.
	TemperatureEpsilon uint16 `yaml:"temperature_epsilon"`

	// Smoothing of applied temperature changes
	SmoothingEnabled            bool   `yaml:"smoothing_enabled"`
	MinimumSmoothingTemperature uint16 `yaml:"minimum_smoothing_temperature"`
	SmoothingDurationMs         int    `yaml:"smoothing_duration_ms"`

	// Timer intervals
	UpdateIntervalSec  int  `yaml:"update_interval_sec"`
	PollingEnabled     bool `yaml:"polling_enabled"`
	PollingIntervalSec int  `yaml:"polling_interval_sec"`
	SyncIntervalMin    int  `yaml:"sync_interval_min"`

	// Feature toggles
	FullscreenBlockingEnabled bool `yaml:"fullscreen_blocking_enabled"`
	InternetSyncEnabled       bool `yaml:"internet_sync_enabled"`

	// Solar schedule, HH:MM local time. Written by the sync cycle when
	// internet sync is enabled.
	Sunrise string `yaml:"sunrise"`
	Sunset  string `yaml:"sunset"`

	// Total duration of the sunrise/sunset temperature transition,
	// centered on the solar event.
	TransitionDurationMin int `yaml:"transition_duration_min"`
}

// DefaultSettings returns the settings used when no file exists yet
func DefaultSettings() Settings {
	return Settings{
		MinTemperature:              3400,
		MaxTemperature:              6600,
		DefaultTemperature:          6600,
		TemperatureEpsilon:          15,
		SmoothingEnabled:            true,
		MinimumSmoothingTemperature: 400,
		SmoothingDurationMs:         2000,
		UpdateIntervalSec:           15,
		PollingEnabled:              true,
		PollingIntervalSec:          300,
		SyncIntervalMin:             180,
		FullscreenBlockingEnabled:   false,
		InternetSyncEnabled:         true,
		Sunrise:                     "07:00",
		Sunset:                      "19:00",
		TransitionDurationMin:       60,
	}
}

// SmoothingDuration returns the smoothing duration as a time.Duration
func (s Settings) SmoothingDuration() time.Duration {
	return time.Duration(s.SmoothingDurationMs) * time.Millisecond
}

// UpdateInterval returns the realtime update interval as a time.Duration
func (s Settings) UpdateInterval() time.Duration {
	return time.Duration(s.UpdateIntervalSec) * time.Second
}

// PollingInterval returns the gamma polling interval as a time.Duration
func (s Settings) PollingInterval() time.Duration {
	return time.Duration(s.PollingIntervalSec) * time.Second
}

// SyncInterval returns the internet sync interval as a time.Duration
func (s Settings) SyncInterval() time.Duration {
	return time.Duration(s.SyncIntervalMin) * time.Minute
}

// TransitionDuration returns the solar transition duration as a time.Duration
func (s Settings) TransitionDuration() time.Duration {
	return time.Duration(s.TransitionDurationMin) * time.Minute
}

// SunriseOffset returns the sunrise as an offset from local midnight.
// Malformed values fall back to the default schedule; the store assumes
// validated input and does not defend further.
func (s Settings) SunriseOffset() time.Duration {
	if d, err := ParseClock(s.Sunrise); err == nil {
		return d
	}
	return 7 * time.Hour
}

// SunsetOffset returns the sunset as an offset from local midnight
func (s Settings) SunsetOffset() time.Duration {
	if d, err := ParseClock(s.Sunset); err == nil {
		return d
	}
	return 19 * time.Hour
}

// ParseClock parses an HH:MM string into an offset from midnight
func ParseClock(v string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(v, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", v, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", v)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// FormatClock formats an offset from midnight as an HH:MM string
func FormatClock(d time.Duration) string {
	d = d % (24 * time.Hour)
	if d < 0 {
		d += 24 * time.Hour
	}
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// Store owns the Settings, persists them to a YAML file, and broadcasts
// field-level change notifications to subscribers.
type Store struct {
	mu       sync.RWMutex
	path     string
	logger   *slog.Logger
	settings Settings

	nextSubID int
	subs      map[int]func(key string)
}

// NewStore creates a settings store backed by the given file path
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:     path,
		logger:   logger,
		settings: DefaultSettings(),
		subs:     make(map[int]func(key string)),
	}
}

// Load reads the settings file. A missing file is not an error: defaults are
// kept and written out so the file exists for the next edit.
func (st *Store) Load() error {
	data, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		st.logger.Info("No settings file found, writing defaults", "path", st.path)
		return st.Save()
	}
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	st.mu.Lock()
	st.settings = settings
	st.mu.Unlock()

	st.logger.Info("Settings loaded", "path", st.path)
	return nil
}

// Save writes the current settings to the YAML file
func (st *Store) Save() error {
	st.mu.RLock()
	settings := st.settings
	st.mu.RUnlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current settings
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings
}

// Subscribe registers a change callback and returns an unsubscribe function.
// The callback is invoked once per changed field key.
func (st *Store) Subscribe(fn func(key string)) func() {
	st.mu.Lock()
	id := st.nextSubID
	st.nextSubID++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

// SetSolarTimes commits new sunrise/sunset times, the only settings write
// the daemon itself performs (solar sync commit path)
func (st *Store) SetSolarTimes(sunrise, sunset string) error {
	next := st.Snapshot()
	next.Sunrise = sunrise
	next.Sunset = sunset
	return st.Update(next)
}

// Update replaces the settings, persists them, and notifies subscribers of
// every field that changed
func (st *Store) Update(next Settings) error {
	st.mu.Lock()
	changed := changedKeys(st.settings, next)
	st.settings = next
	subs := make([]func(key string), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()

	if len(changed) == 0 {
		return nil
	}

	if err := st.Save(); err != nil {
		st.logger.Error("Failed to persist settings", "error", err)
	}

	for _, key := range changed {
		for _, fn := range subs {
			fn(key)
		}
	}
	return nil
}

// changedKeys compares two settings values field by field
func changedKeys(prev, next Settings) []string {
	var keys []string
	if prev.MinTemperature != next.MinTemperature {
		keys = append(keys, KeyMinTemperature)
	}
	if prev.MaxTemperature != next.MaxTemperature {
		keys = append(keys, KeyMaxTemperature)
	}
	if prev.DefaultTemperature != next.DefaultTemperature {
		keys = append(keys, KeyDefaultTemperature)
	}
	if prev.TemperatureEpsilon != next.TemperatureEpsilon {
		keys = append(keys, KeyTemperatureEpsilon)
	}
	if prev.SmoothingEnabled != next.SmoothingEnabled {
		keys = append(keys, KeySmoothingEnabled)
	}
	if prev.MinimumSmoothingTemperature != next.MinimumSmoothingTemperature {
		keys = append(keys, KeyMinimumSmoothingTemperature)
	}
	if prev.SmoothingDurationMs != next.SmoothingDurationMs {
		keys = append(keys, KeySmoothingDurationMs)
	}
	if prev.UpdateIntervalSec != next.UpdateIntervalSec {
		keys = append(keys, KeyUpdateIntervalSec)
	}
	if prev.PollingEnabled != next.PollingEnabled {
		keys = append(keys, KeyPollingEnabled)
	}
	if prev.PollingIntervalSec != next.PollingIntervalSec {
		keys = append(keys, KeyPollingIntervalSec)
	}
	if prev.SyncIntervalMin != next.SyncIntervalMin {
		keys = append(keys, KeySyncIntervalMin)
	}
	if prev.FullscreenBlockingEnabled != next.FullscreenBlockingEnabled {
		keys = append(keys, KeyFullscreenBlockingEnabled)
	}
	if prev.InternetSyncEnabled != next.InternetSyncEnabled {
		keys = append(keys, KeyInternetSyncEnabled)
	}
	if prev.Sunrise != next.Sunrise {
		keys = append(keys, KeySunrise)
	}
	if prev.Sunset != next.Sunset {
		keys = append(keys, KeySunset)
	}
	if prev.TransitionDurationMin != next.TransitionDurationMin {
		keys = append(keys, KeyTransitionDurationMin)
	}
	return keys
}
