package util

import (
	"github.com/berfenger/homedash/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Backend: config.BackendConfig{
			Url:           "http://localhost:5000",
			TimeoutMillis: 2000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "homedash",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 500,
		},
		CommandConfig: config.CommandConfig{
			TimeoutMillis: 5000,
		},
		NotificationsConfig: config.NotificationsConfig{
			Capacity: 10,
		},
		WebSocketConfig: config.WebSocketConfig{
			PingIntervalSeconds: 30,
			PongTimeoutSeconds:  60,
		},
		Port: 8080,
	}
}
