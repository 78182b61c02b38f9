// Package curve maps a timestamp to a target display color temperature.
// The curve holds the configured maximum across the day, the minimum across
// the night, and eases between the two through a transition window centered
// on sunrise and sunset.
package curve

import (
	"math"
	"time"

	"github.com/ksaarinen/duskd/pkg/config"
)

const day = 24 * time.Hour

// Provider computes temperatures against the live settings store
type Provider struct {
	store *config.Store
}

// NewProvider creates a curve provider backed by the settings store
func NewProvider(store *config.Store) *Provider {
	return &Provider{store: store}
}

// TemperatureAt returns the target temperature for the given timestamp
func (p *Provider) TemperatureAt(t time.Time) uint16 {
	return TemperatureAt(p.store.Snapshot(), t)
}

// TemperatureAt computes the target temperature for a timestamp under a
// fixed settings snapshot. Pure and deterministic; the result is always in
// [MinTemperature, MaxTemperature].
func TemperatureAt(s config.Settings, t time.Time) uint16 {
	offset := clockOffset(t)
	sunrise := s.SunriseOffset()
	sunset := s.SunsetOffset()
	half := s.TransitionDuration() / 2

	switch {
	case within(offset, sunrise-half, sunrise+half):
		// Night -> day
		frac := fraction(offset, sunrise-half, s.TransitionDuration())
		return lerp(s.MinTemperature, s.MaxTemperature, ease(frac))
	case within(offset, sunset-half, sunset+half):
		// Day -> night
		frac := fraction(offset, sunset-half, s.TransitionDuration())
		return lerp(s.MaxTemperature, s.MinTemperature, ease(frac))
	case within(offset, sunrise+half, sunset-half):
		return s.MaxTemperature
	default:
		return s.MinTemperature
	}
}

// clockOffset returns the duration since local midnight
func clockOffset(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// wrap normalizes an offset into [0, 24h)
func wrap(d time.Duration) time.Duration {
	d = d % day
	if d < 0 {
		d += day
	}
	return d
}

// within reports whether x lies in the clock arc from start to end,
// both interpreted circularly so windows may cross midnight
func within(x, start, end time.Duration) bool {
	x = wrap(x - start)
	span := wrap(end - start)
	return x < span
}

// fraction returns the position of x inside a window of the given width
// starting at start, in [0, 1)
func fraction(x, start, width time.Duration) float64 {
	if width <= 0 {
		return 1
	}
	return float64(wrap(x-start)) / float64(width)
}

// ease applies cosine easing so transitions start and finish gently
func ease(frac float64) float64 {
	return (1 - math.Cos(math.Pi*frac)) / 2
}

// lerp interpolates between two temperatures, hitting both ends exactly
func lerp(from, to uint16, frac float64) uint16 {
	if frac <= 0 {
		return from
	}
	if frac >= 1 {
		return to
	}
	return uint16(math.Round(float64(from) + frac*(float64(to)-float64(from))))
}
