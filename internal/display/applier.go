package display

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ksaarinen/duskd/pkg/mqtt"
)

// Applier applies or reverts a display gamma ramp. Implementations are
// side-effecting and handle their own failures; callers never consume a
// return value, so a failed apply is retried by the next polling tick.
type Applier interface {
	// ApplyLinear applies a linear ramp with the given channel gains
	ApplyLinear(intensity Intensity)

	// RestoreOriginal reverts to the ramp captured before the daemon ran
	RestoreOriginal()

	// RestoreDefault reverts to an identity ramp
	RestoreDefault()
}

// gammaCommand is the wire format published on the gamma topic
type gammaCommand struct {
	Action    string  `json:"action"`
	Red       float64 `json:"red,omitempty"`
	Green     float64 `json:"green,omitempty"`
	Blue      float64 `json:"blue,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// MQTTApplier publishes gamma commands for the display agent that owns the
// ramp. Commands are retained so a restarting display agent converges to
// the last requested state.
type MQTTApplier struct {
	mqtt   mqtt.Client
	topic  string
	logger *slog.Logger
}

// NewMQTTApplier creates an applier publishing on the given gamma topic
func NewMQTTApplier(mqttClient mqtt.Client, topic string, logger *slog.Logger) *MQTTApplier {
	return &MQTTApplier{
		mqtt:   mqttClient,
		topic:  topic,
		logger: logger,
	}
}

// ApplyLinear publishes a linear ramp command
func (a *MQTTApplier) ApplyLinear(intensity Intensity) {
	a.publish(gammaCommand{
		Action: "apply",
		Red:    intensity.Red,
		Green:  intensity.Green,
		Blue:   intensity.Blue,
	})
}

// RestoreOriginal publishes a restore-original command
func (a *MQTTApplier) RestoreOriginal() {
	a.publish(gammaCommand{Action: "restore-original"})
}

// RestoreDefault publishes a restore-default command
func (a *MQTTApplier) RestoreDefault() {
	a.publish(gammaCommand{Action: "restore-default"})
}

func (a *MQTTApplier) publish(cmd gammaCommand) {
	cmd.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	payload, err := json.Marshal(cmd)
	if err != nil {
		a.logger.Error("Failed to marshal gamma command", "error", err)
		return
	}

	if err := a.mqtt.Publish(a.topic, 0, true, payload); err != nil {
		a.logger.Error("Failed to publish gamma command",
			"topic", a.topic,
			"action", cmd.Action,
			"error", err)
		return
	}

	a.logger.Debug("Published gamma command", "action", cmd.Action)
}

// LogApplier logs gamma commands instead of publishing them (dry-run mode)
type LogApplier struct {
	logger *slog.Logger
}

// NewLogApplier creates a dry-run applier
func NewLogApplier(logger *slog.Logger) *LogApplier {
	return &LogApplier{logger: logger}
}

func (a *LogApplier) ApplyLinear(intensity Intensity) {
	a.logger.Info("Dry run: apply linear ramp",
		"red", intensity.Red,
		"green", intensity.Green,
		"blue", intensity.Blue)
}

func (a *LogApplier) RestoreOriginal() {
	a.logger.Info("Dry run: restore original ramp")
}

func (a *LogApplier) RestoreDefault() {
	a.logger.Info("Dry run: restore default ramp")
}
