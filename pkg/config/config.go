package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds the static service configuration for the duskd daemon.
// Runtime-tunable behavior lives in the Settings store instead.
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration (optional state mirror / sync cache)
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Service configuration
	ServiceName string
	HealthPort  int
	LogLevel    string

	// Topic prefix for all MQTT traffic (commands, state, gamma, context)
	TopicPrefix string

	// Path of the YAML settings file
	SettingsPath string

	// Geolocation endpoint used by the solar sync cycle
	GeoEndpoint string

	// DryRun disables the MQTT gamma applier and logs ramps instead
	DryRun bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:    "localhost",
		MQTTPort:      1883,
		MQTTUser:      "",
		MQTTPassword:  "",
		MQTTClientID:  "",
		RedisEnabled:  false,
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		ServiceName:   "duskd",
		HealthPort:    8080,
		LogLevel:      "info",
		TopicPrefix:   "duskd",
		SettingsPath:  "duskd-settings.yaml",
		GeoEndpoint:   "http://ip-api.com/json",
		DryRun:        false,
	}
}

// LoadFromEnv loads configuration from environment variables with DUSKD_ prefix
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("DUSKD_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("DUSKD_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("DUSKD_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("DUSKD_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("DUSKD_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	if v := os.Getenv("DUSKD_REDIS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.RedisEnabled = enabled
		}
	}
	if v := os.Getenv("DUSKD_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("DUSKD_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("DUSKD_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("DUSKD_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}

	if v := os.Getenv("DUSKD_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("DUSKD_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("DUSKD_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DUSKD_TOPIC_PREFIX"); v != "" {
		c.TopicPrefix = v
	}
	if v := os.Getenv("DUSKD_SETTINGS_PATH"); v != "" {
		c.SettingsPath = v
	}
	if v := os.Getenv("DUSKD_GEO_ENDPOINT"); v != "" {
		c.GeoEndpoint = v
	}
	if v := os.Getenv("DUSKD_DRY_RUN"); v != "" {
		if dry, err := strconv.ParseBool(v); err == nil {
			c.DryRun = dry
		}
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	pflag.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	pflag.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	pflag.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	pflag.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	pflag.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	pflag.BoolVar(&c.RedisEnabled, "redis-enabled", c.RedisEnabled, "Enable the Redis state mirror and sync cache")
	pflag.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	pflag.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	pflag.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	pflag.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")

	pflag.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	pflag.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	pflag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	pflag.StringVar(&c.TopicPrefix, "topic-prefix", c.TopicPrefix, "MQTT topic prefix")
	pflag.StringVar(&c.SettingsPath, "settings-path", c.SettingsPath, "Path of the YAML settings file")
	pflag.StringVar(&c.GeoEndpoint, "geo-endpoint", c.GeoEndpoint, "Geolocation API endpoint")
	pflag.BoolVar(&c.DryRun, "dry-run", c.DryRun, "Log gamma ramps instead of publishing them")

	pflag.Parse()
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.RedisEnabled {
		if c.RedisHost == "" {
			return fmt.Errorf("Redis host is required when Redis is enabled")
		}
		if c.RedisPort <= 0 || c.RedisPort > 65535 {
			return fmt.Errorf("Redis port must be between 1 and 65535")
		}
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("Topic prefix is required")
	}
	if c.SettingsPath == "" {
		return fmt.Errorf("Settings path is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
