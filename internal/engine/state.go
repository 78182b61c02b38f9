package engine

import (
	"fmt"
	"time"
)

// CycleState classifies the active temperature against the configured bounds
type CycleState string

const (
	CycleDisabled   CycleState = "disabled"
	CycleDay        CycleState = "day"
	CycleNight      CycleState = "night"
	CycleTransition CycleState = "transition"
)

// Snapshot is the externally visible runtime state. It is immutable once
// published; readers never observe a partially updated state.
type Snapshot struct {
	Enabled             bool       `json:"enabled"`
	Blocked             bool       `json:"blocked"`
	PreviewMode         bool       `json:"preview_mode"`
	CyclePreviewRunning bool       `json:"cycle_preview_running"`
	Temperature         uint16     `json:"temperature"`
	PreviewTemperature  uint16     `json:"preview_temperature"`
	Time                time.Time  `json:"time"`
	PreviewTime         time.Time  `json:"preview_time"`
	CycleState          CycleState `json:"cycle_state"`
	StatusText          string     `json:"status_text"`
}

// runtimeState is the loop-owned mutable state behind the snapshots
type runtimeState struct {
	enabled            bool
	blocked            bool
	previewMode        bool
	temperature        uint16
	previewTemperature uint16
	time               time.Time
	previewTime        time.Time
}

// classify maps a temperature to a cycle state: at or above the maximum is
// day, at or below the minimum is night, anything between is a transition
func classify(value, min, max uint16) CycleState {
	switch {
	case value >= max:
		return CycleDay
	case value <= min:
		return CycleNight
	default:
		return CycleTransition
	}
}

// projectStatus derives the cycle state and status text from the rest of the
// runtime state. Pure; exactly one of the five branches applies, evaluated
// in strict priority order.
func projectStatus(st runtimeState, cyclePreviewRunning bool, min, max uint16) (CycleState, string) {
	switch {
	case st.previewMode && !cyclePreviewRunning:
		return CycleDisabled, fmt.Sprintf("Preview %dK", st.previewTemperature)

	case st.previewMode && cyclePreviewRunning:
		state := classify(st.previewTemperature, min, max)
		return state, fmt.Sprintf("Preview %dK at %s", st.previewTemperature, st.previewTime.Format("15:04"))

	case !st.enabled:
		return CycleDisabled, "Off"

	case st.blocked:
		return CycleDisabled, "Paused: fullscreen application active"

	default:
		state := classify(st.temperature, min, max)
		return state, fmt.Sprintf("%dK at %s", st.temperature, st.time.Format("15:04"))
	}
}
