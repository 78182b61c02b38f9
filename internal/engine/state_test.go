package engine

import (
	"strings"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		value    uint16
		expected CycleState
	}{
		{"at maximum", 6500, CycleDay},
		{"above maximum", 6600, CycleDay},
		{"at minimum", 3000, CycleNight},
		{"below minimum", 2900, CycleNight},
		{"between bounds", 4500, CycleTransition},
		{"just above minimum", 3001, CycleTransition},
		{"just below maximum", 6499, CycleTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.value, 3000, 6500); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestProjectStatusPriorityOrder(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		st             runtimeState
		previewRunning bool
		expectedState  CycleState
		expectedText   string
	}{
		{
			name: "static preview",
			st: runtimeState{
				enabled:            true,
				previewMode:        true,
				previewTemperature: 4200,
			},
			expectedState: CycleDisabled,
			expectedText:  "Preview 4200K",
		},
		{
			name: "static preview outranks blocked",
			st: runtimeState{
				enabled:            true,
				blocked:            true,
				previewMode:        true,
				previewTemperature: 4200,
			},
			expectedState: CycleDisabled,
			expectedText:  "Preview 4200K",
		},
		{
			name: "running cycle preview classifies preview value",
			st: runtimeState{
				enabled:            true,
				previewMode:        true,
				previewTemperature: 6500,
				previewTime:        at,
			},
			previewRunning: true,
			expectedState:  CycleDay,
			expectedText:   "Preview 6500K at 12:30",
		},
		{
			name:          "off",
			st:            runtimeState{enabled: false, temperature: 6500},
			expectedState: CycleDisabled,
			expectedText:  "Off",
		},
		{
			name:          "blocked",
			st:            runtimeState{enabled: true, blocked: true, temperature: 6500},
			expectedState: CycleDisabled,
			expectedText:  "Paused: fullscreen application active",
		},
		{
			name: "realtime day",
			st: runtimeState{
				enabled:     true,
				temperature: 6500,
				time:        at,
			},
			expectedState: CycleDay,
			expectedText:  "6500K at 12:30",
		},
		{
			name: "realtime night",
			st: runtimeState{
				enabled:     true,
				temperature: 3000,
				time:        at,
			},
			expectedState: CycleNight,
		},
		{
			name: "realtime transition",
			st: runtimeState{
				enabled:     true,
				temperature: 5000,
				time:        at,
			},
			expectedState: CycleTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, text := projectStatus(tt.st, tt.previewRunning, 3000, 6500)
			if state != tt.expectedState {
				t.Errorf("expected state %s, got %s", tt.expectedState, state)
			}
			if tt.expectedText != "" && text != tt.expectedText {
				t.Errorf("expected text %q, got %q", tt.expectedText, text)
			}
		})
	}
}

func TestProjectStatusDisabledIgnoresTemperature(t *testing.T) {
	// Disabled always projects to Disabled regardless of the stored value
	for _, temp := range []uint16{3000, 5000, 6500} {
		st := runtimeState{enabled: false, temperature: temp}
		state, text := projectStatus(st, false, 3000, 6500)
		if state != CycleDisabled {
			t.Errorf("temperature %d: expected disabled, got %s", temp, state)
		}
		if !strings.Contains(text, "Off") {
			t.Errorf("temperature %d: expected off text, got %q", temp, text)
		}
	}
}
