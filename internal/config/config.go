package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Backend  BackendConfig `mapstructure:"backend"`
	MQTT     MQTTConfig    `mapstructure:"mqtt"`

	MonitorConfig       MonitorConfig       `mapstructure:"monitor"`
	CommandConfig       CommandConfig       `mapstructure:"command"`
	TelemetryConfig     TelemetryConfig     `mapstructure:"telemetry"`
	NotificationsConfig NotificationsConfig `mapstructure:"notifications"`
	WebSocketConfig     WebSocketConfig     `mapstructure:"websocket"`
	Devices             []DeviceSeed        `mapstructure:"devices"`
	Port                uint                `mapstructure:"port"`
	HttpLog             bool                `mapstructure:"http_log"`
}

type BackendConfig struct {
	Url           string
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type CommandConfig struct {
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type TelemetryConfig struct {
	Enable               bool
	Url                  string
	Token                string
	Org                  string
	Bucket               string
	BatchSize            uint   `mapstructure:"batch_size"`
	FlushIntervalMillis  uint   `mapstructure:"flush_interval_millis"`
	EnergyIntervalMillis uint32 `mapstructure:"energy_interval_millis"`
}

type NotificationsConfig struct {
	Capacity int
}

type WebSocketConfig struct {
	PingIntervalSeconds int `mapstructure:"ping_interval_seconds"`
	PongTimeoutSeconds  int `mapstructure:"pong_timeout_seconds"`
}

// DeviceSeed overrides one entry of the id to type registry.
type DeviceSeed struct {
	Id   int
	Name string
	Type string
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// SimulatorConfig configures the backend simulator binary.
type SimulatorConfig struct {
	LogLevel             zapcore.Level
	Port                 uint
	HttpLog              bool   `mapstructure:"http_log"`
	DBPath               string `mapstructure:"db_path"`
	DriftIntervalSeconds uint   `mapstructure:"drift_interval_seconds"`
}
