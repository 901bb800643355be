package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/berfenger/homedash/internal/config"
	"github.com/berfenger/homedash/internal/simulator"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {

	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	slog.Info("Using", "config", *cfg)

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	store, err := simulator.Open(cfg.DBPath)
	if err != nil {
		logger.Error("could not open database", zap.String("path", cfg.DBPath), zap.Error(err))
		return
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drifter := simulator.NewDrifter(store, time.Duration(cfg.DriftIntervalSeconds)*time.Second, logger)
	go drifter.Run(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      simulator.NewRouter(store, cfg.HttpLog, logger),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down simulator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("simulator forced to shutdown", zap.Error(err))
		}
	}()

	logger.Info("simulator listening", zap.Uint("port", cfg.Port), zap.String("db", cfg.DBPath))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", zap.Error(err))
	}
}

func initConfig() (*config.SimulatorConfig, error) {

	// alias PORT => HOMEDASH_SIM_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("HOMEDASH_SIM_PORT", port)
	}

	viper.SetDefault("log_level", "info")
	viper.SetDefault("port", 5000)
	viper.SetDefault("http_log", false)
	viper.SetDefault("db_path", "devices.db")
	viper.SetDefault("drift_interval_seconds", 5)

	viper.SetEnvPrefix("homedash_sim")
	viper.AutomaticEnv()

	var cfg config.SimulatorConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	level, err := zap.ParseAtomicLevel(viper.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}
	cfg.LogLevel = level.Level()

	if cfg.DriftIntervalSeconds == 0 {
		return nil, errors.New("config param drift_interval_seconds should be > 0")
	}
	return &cfg, nil
}
