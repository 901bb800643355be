package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/homedash/internal/adapter/actor"
	"github.com/berfenger/homedash/internal/adapter/rest"
	"github.com/berfenger/homedash/internal/adapter/telemetry"
	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/core/actor"
	"github.com/berfenger/homedash/internal/core/domain"
	"github.com/berfenger/homedash/internal/core/port"
	"github.com/berfenger/homedash/internal/core/service"
	"github.com/berfenger/homedash/internal/notify"
	"github.com/berfenger/homedash/internal/render"
	"github.com/berfenger/homedash/internal/server"
	"github.com/berfenger/homedash/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("starting homedash", zap.String("version", versioninfo.Short()))

	registry, err := buildRegistry(cfg.Devices)
	if err != nil {
		logger.Error("invalid device list", zap.Error(err))
		return
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	es := eventstream.NewEventStream()
	reconciler := service.NewReconciler(registry)
	board := render.NewBoard(render.EventStreamObserver{Stream: es}).WithInitializer(func(card port.CardHandle, record domain.DeviceRecord) {
		reconciler.Reconcile(card, record)
	})
	backend := rest.NewClient(cfg.Backend, logger)

	notifications := notify.NewStore(cfg.NotificationsConfig.Capacity)
	notifications.Attach(es)
	defer notifications.Detach(es)

	if cfg.TelemetryConfig.Enable {
		writer, err := telemetry.Connect(cfg.TelemetryConfig, logger)
		if err != nil {
			// the dashboard works without telemetry
			logger.Error("telemetry disabled", zap.Error(err))
		} else {
			writer.Attach(es)
			defer writer.Close(es)
		}
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, backend, registry, board, es, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		logger.Error("could not start master actor", zap.Error(err))
		return
	}

	srv := server.NewServer(*cfg, ctx, pid, backend, notifications, es, logger)
	httpServer := srv.HTTPServer()
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	go gracefulShutdown(httpServer, done)

	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	<-done
	log.Println("Graceful shutdown complete.")

	srv.Close()
	ctx.StopFuture(pid).Wait()
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => HOMEDASH_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("HOMEDASH_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("homedash")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.Backend.Url == "" {
		return nil, errors.New("config param backend.url is required")
	}
	if cfg.MonitorConfig.PollIntervalMillis < 500 {
		return nil, errors.New("config param monitor.poll_interval_millis should be >= 500")
	}
	if cfg.CommandConfig.TimeoutMillis < 1000 {
		return nil, errors.New("config param command.timeout_millis should be >= 1000")
	}
	if cfg.NotificationsConfig.Capacity <= 0 {
		return nil, errors.New("config param notifications.capacity should be > 0")
	}
	if cfg.TelemetryConfig.Enable && (cfg.TelemetryConfig.Url == "" || cfg.TelemetryConfig.Bucket == "") {
		return nil, errors.New("config params telemetry.url and telemetry.bucket are required when telemetry is enabled")
	}

	return &cfg, nil
}

func buildRegistry(devices []config.DeviceSeed) (*domain.Registry, error) {
	if len(devices) == 0 {
		return domain.DefaultRegistry(), nil
	}
	seed := make([]domain.RegistrySeed, 0, len(devices))
	for _, d := range devices {
		seed = append(seed, domain.RegistrySeed{Id: d.Id, Name: d.Name, Type: domain.DeviceType(d.Type)})
	}
	return domain.NewRegistry(seed)
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("backend.url", "http://localhost:5000")
	viper.SetDefault("backend.timeout_millis", 10000)
	viper.SetDefault("monitor.poll_interval_millis", 2000)
	viper.SetDefault("command.timeout_millis", 30000)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.base_topic", "homedash")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("telemetry.enable", false)
	viper.SetDefault("telemetry.batch_size", 100)
	viper.SetDefault("telemetry.flush_interval_millis", 10000)
	viper.SetDefault("telemetry.energy_interval_millis", 60000)
	viper.SetDefault("notifications.capacity", 100)
	viper.SetDefault("websocket.ping_interval_seconds", 30)
	viper.SetDefault("websocket.pong_timeout_seconds", 60)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.TelemetryConfig.Token = "*redacted*"
	slog.Info("Using", "config", cfg)
}
