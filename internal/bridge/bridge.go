// Package bridge exposes the engine's command set over MQTT and publishes
// its runtime state as a retained snapshot.
package bridge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ksaarinen/duskd/internal/engine"
	"github.com/ksaarinen/duskd/pkg/mqtt"
)

// Bridge wires MQTT command topics to engine commands
type Bridge struct {
	mqtt   mqtt.Client
	prefix string
	engine *engine.Engine
	logger *slog.Logger

	unsubscribeState func()
}

// New creates a bridge for the given topic prefix
func New(mqttClient mqtt.Client, prefix string, eng *engine.Engine, logger *slog.Logger) *Bridge {
	return &Bridge{
		mqtt:   mqttClient,
		prefix: prefix,
		engine: eng,
		logger: logger,
	}
}

// Start subscribes to the command topics and begins publishing state
func (b *Bridge) Start() error {
	topic := mqtt.CommandWildcard(b.prefix)
	if err := b.mqtt.Subscribe(topic, 0, b.handleCommand); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	b.logger.Info("Subscribed to command topics", "topic", topic)

	b.unsubscribeState = b.engine.SubscribeState(b.publishState)
	return nil
}

// Stop unsubscribes from commands and state notifications
func (b *Bridge) Stop() {
	if b.unsubscribeState != nil {
		b.unsubscribeState()
	}
	if err := b.mqtt.Unsubscribe(mqtt.CommandWildcard(b.prefix)); err != nil {
		b.logger.Error("Failed to unsubscribe from command topics", "error", err)
	}
}

// handleCommand decodes a command message and invokes the matching engine
// command. Malformed payloads are logged and dropped; a command failure must
// never disturb the daemon.
func (b *Bridge) handleCommand(msg mqtt.Message) {
	parts := strings.Split(msg.Topic(), "/")
	name := parts[len(parts)-1]
	payload := msg.Payload()

	switch name {
	case "set-enabled":
		var cmd struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.logger.Warn("Invalid set-enabled payload", "error", err)
			return
		}
		b.engine.SetEnabled(cmd.Enabled)

	case "set-preview-mode":
		var cmd struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.logger.Warn("Invalid set-preview-mode payload", "error", err)
			return
		}
		b.engine.SetPreviewMode(cmd.Enabled)

	case "set-preview-temperature":
		var cmd struct {
			Temperature uint16 `json:"temperature"`
		}
		if err := json.Unmarshal(payload, &cmd); err != nil {
			b.logger.Warn("Invalid set-preview-temperature payload", "error", err)
			return
		}
		b.engine.SetPreviewTemperature(cmd.Temperature)

	case "disable-temporarily":
		var cmd struct {
			DurationSec int `json:"duration_sec"`
		}
		if err := json.Unmarshal(payload, &cmd); err != nil || cmd.DurationSec <= 0 {
			b.logger.Warn("Invalid disable-temporarily payload", "error", err)
			return
		}
		b.engine.DisableTemporarily(time.Duration(cmd.DurationSec) * time.Second)

	case "start-cycle-preview":
		if !b.engine.CanStartCyclePreview() {
			b.logger.Info("Cycle preview already running, command ignored")
			return
		}
		b.engine.StartCyclePreview()

	default:
		b.logger.Warn("Unknown command", "command", name)
		return
	}

	b.logger.Debug("Command handled", "command", name)
}

// publishState publishes the snapshot retained so late subscribers converge
func (b *Bridge) publishState(snap engine.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		b.logger.Error("Failed to marshal state snapshot", "error", err)
		return
	}

	topic := mqtt.StateTopic(b.prefix)
	if err := b.mqtt.Publish(topic, 0, true, payload); err != nil {
		b.logger.Error("Failed to publish state", "topic", topic, "error", err)
	}
}
