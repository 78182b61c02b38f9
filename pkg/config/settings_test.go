package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"00:00", 0, false},
		{"07:00", 7 * time.Hour, false},
		{"19:30", 19*time.Hour + 30*time.Minute, false},
		{"23:59", 23*time.Hour + 59*time.Minute, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"-1:00", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "00:00"},
		{7 * time.Hour, "07:00"},
		{19*time.Hour + 30*time.Minute, "19:30"},
		{25 * time.Hour, "01:00"},
		{-time.Hour, "23:00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatClock(tt.input), "input %v", tt.input)
	}
}

func TestClockRoundTrip(t *testing.T) {
	for _, v := range []string{"00:00", "06:12", "12:00", "20:45", "23:59"} {
		d, err := ParseClock(v)
		require.NoError(t, err)
		assert.Equal(t, v, FormatClock(d))
	}
}

func TestSunriseOffsetFallsBackOnMalformedValue(t *testing.T) {
	s := DefaultSettings()
	s.Sunrise = "not-a-clock"
	s.Sunset = "99:99"

	assert.Equal(t, 7*time.Hour, s.SunriseOffset())
	assert.Equal(t, 19*time.Hour, s.SunsetOffset())
}

func TestStoreLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := NewStore(path, testLogger())

	require.NoError(t, store.Load())
	assert.Equal(t, DefaultSettings(), store.Snapshot())

	// The defaults must exist on disk afterwards
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStoreLoadReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	first := NewStore(path, testLogger())
	custom := DefaultSettings()
	custom.MinTemperature = 3000
	custom.Sunrise = "06:12"
	require.NoError(t, first.Update(custom))

	second := NewStore(path, testLogger())
	require.NoError(t, second.Load())

	s := second.Snapshot()
	assert.Equal(t, uint16(3000), s.MinTemperature)
	assert.Equal(t, "06:12", s.Sunrise)
}

func TestStoreUpdateNotifiesChangedKeys(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.yaml"), testLogger())

	var keys []string
	store.Subscribe(func(key string) { keys = append(keys, key) })

	next := store.Snapshot()
	next.MinTemperature = 3000
	next.PollingEnabled = false
	require.NoError(t, store.Update(next))

	assert.ElementsMatch(t, []string{KeyMinTemperature, KeyPollingEnabled}, keys)
}

func TestStoreUpdateNoChangeNoNotification(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.yaml"), testLogger())

	var keys []string
	store.Subscribe(func(key string) { keys = append(keys, key) })

	require.NoError(t, store.Update(store.Snapshot()))
	assert.Empty(t, keys)
}

func TestStoreUnsubscribe(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.yaml"), testLogger())

	var keys []string
	unsubscribe := store.Subscribe(func(key string) { keys = append(keys, key) })
	unsubscribe()

	next := store.Snapshot()
	next.MinTemperature = 3000
	require.NoError(t, store.Update(next))

	assert.Empty(t, keys)
}

func TestStoreSetSolarTimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	store := NewStore(path, testLogger())

	var keys []string
	store.Subscribe(func(key string) { keys = append(keys, key) })

	require.NoError(t, store.SetSolarTimes("06:12", "20:45"))

	s := store.Snapshot()
	assert.Equal(t, "06:12", s.Sunrise)
	assert.Equal(t, "20:45", s.Sunset)
	assert.ElementsMatch(t, []string{KeySunrise, KeySunset}, keys)

	// Persisted: a fresh store sees the committed times
	reloaded := NewStore(path, testLogger())
	require.NoError(t, reloaded.Load())
	assert.Equal(t, "06:12", reloaded.Snapshot().Sunrise)
}

func TestSettingsDurations(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 15*time.Second, s.UpdateInterval())
	assert.Equal(t, 5*time.Minute, s.PollingInterval())
	assert.Equal(t, 3*time.Hour, s.SyncInterval())
	assert.Equal(t, 2*time.Second, s.SmoothingDuration())
	assert.Equal(t, time.Hour, s.TransitionDuration())
}
