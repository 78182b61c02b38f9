// Package fullscreen tracks whether the foreground window is fullscreen.
// Detection itself happens in an external agent that publishes the state on
// an MQTT context topic; this monitor subscribes to it on demand.
package fullscreen

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ksaarinen/duskd/pkg/mqtt"
)

// contextMessage is the payload published by the fullscreen detection agent
type contextMessage struct {
	Fullscreen bool `json:"fullscreen"`
}

// Monitor exposes the foreground fullscreen state and change notifications.
// Event hooks are off by default; enabling them subscribes to the context
// topic, disabling them unsubscribes and resets the state.
type Monitor struct {
	mqtt   mqtt.Client
	topic  string
	logger *slog.Logger

	mu         sync.Mutex
	hooked     bool
	fullscreen bool
	nextSubID  int
	subs       map[int]func()
}

// NewMonitor creates a monitor reading the given context topic
func NewMonitor(mqttClient mqtt.Client, topic string, logger *slog.Logger) *Monitor {
	return &Monitor{
		mqtt:   mqttClient,
		topic:  topic,
		logger: logger,
		subs:   make(map[int]func()),
	}
}

// IsForegroundFullscreen returns the last observed fullscreen state.
// Always false while event hooks are disabled.
func (m *Monitor) IsForegroundFullscreen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullscreen
}

// SetUseEventHooks subscribes to or unsubscribes from the context topic
func (m *Monitor) SetUseEventHooks(enabled bool) {
	m.mu.Lock()
	if m.hooked == enabled {
		m.mu.Unlock()
		return
	}
	m.hooked = enabled
	changed := false
	if !enabled && m.fullscreen {
		m.fullscreen = false
		changed = true
	}
	m.mu.Unlock()

	if enabled {
		if err := m.mqtt.Subscribe(m.topic, 0, m.handleMessage); err != nil {
			m.logger.Error("Failed to subscribe to fullscreen context", "topic", m.topic, "error", err)
		}
	} else {
		if err := m.mqtt.Unsubscribe(m.topic); err != nil {
			m.logger.Error("Failed to unsubscribe from fullscreen context", "topic", m.topic, "error", err)
		}
	}

	if changed {
		m.notify()
	}
}

// OnChange registers a change callback and returns an unsubscribe function
func (m *Monitor) OnChange(fn func()) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Monitor) handleMessage(msg mqtt.Message) {
	var ctx contextMessage
	if err := json.Unmarshal(msg.Payload(), &ctx); err != nil {
		m.logger.Warn("Invalid fullscreen context payload", "topic", msg.Topic(), "error", err)
		return
	}

	m.mu.Lock()
	changed := m.hooked && m.fullscreen != ctx.Fullscreen
	if changed {
		m.fullscreen = ctx.Fullscreen
	}
	m.mu.Unlock()

	if changed {
		m.logger.Debug("Fullscreen state changed", "fullscreen", ctx.Fullscreen)
		m.notify()
	}
}

func (m *Monitor) notify() {
	m.mu.Lock()
	subs := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
