// Package solar resolves sunrise and sunset times for a geographic position.
package solar

import (
	"fmt"
	"time"

	"github.com/ksaarinen/duskd/internal/geo"
	"github.com/sixdouglas/suncalc"
)

// Times holds the solar schedule for one day
type Times struct {
	Sunrise time.Time
	Sunset  time.Time
}

// Resolver resolves solar times for a location and date
type Resolver interface {
	Times(loc geo.Location, date time.Time) (Times, error)
}

// SunCalcResolver computes solar times locally from solar geometry
type SunCalcResolver struct{}

// NewSunCalcResolver creates a solar time resolver
func NewSunCalcResolver() *SunCalcResolver {
	return &SunCalcResolver{}
}

// Times returns sunrise and sunset for the given location and date.
// During polar day or polar night no sunrise/sunset exists and an error is
// returned; the sync cycle treats that as a silent skip.
func (r *SunCalcResolver) Times(loc geo.Location, date time.Time) (Times, error) {
	times := suncalc.GetTimes(date, loc.Latitude, loc.Longitude)

	sunrise := times[suncalc.Sunrise].Value
	sunset := times[suncalc.Sunset].Value

	if sunrise.IsZero() || sunset.IsZero() {
		return Times{}, fmt.Errorf("no sunrise/sunset at lat %.2f lon %.2f on %s",
			loc.Latitude, loc.Longitude, date.Format("2006-01-02"))
	}
	if !sunset.After(sunrise) {
		return Times{}, fmt.Errorf("degenerate solar times at lat %.2f lon %.2f", loc.Latitude, loc.Longitude)
	}

	return Times{Sunrise: sunrise.Local(), Sunset: sunset.Local()}, nil
}
