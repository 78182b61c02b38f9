package mqtt

import "fmt"

// Topic suffixes under the configurable prefix.
//
//	{prefix}/command/{name}     inbound commands (JSON payloads)
//	{prefix}/state              retained runtime state snapshot
//	{prefix}/gamma/set          outbound gamma ramp commands
//	{prefix}/context/fullscreen inbound foreground fullscreen context
const (
	suffixCommand    = "command"
	suffixState      = "state"
	suffixGamma      = "gamma/set"
	suffixFullscreen = "context/fullscreen"
)

// CommandTopic constructs a command topic for a specific command name.
// Pattern: {prefix}/command/{name}
func CommandTopic(prefix, name string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, suffixCommand, name)
}

// CommandWildcard returns the subscription filter matching every command.
// Pattern: {prefix}/command/+
func CommandWildcard(prefix string) string {
	return fmt.Sprintf("%s/%s/+", prefix, suffixCommand)
}

// StateTopic returns the retained runtime state topic
func StateTopic(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, suffixState)
}

// GammaTopic returns the gamma ramp command topic
func GammaTopic(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, suffixGamma)
}

// FullscreenTopic returns the foreground fullscreen context topic
func FullscreenTopic(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, suffixFullscreen)
}
