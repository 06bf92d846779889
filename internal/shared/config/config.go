// Package config loads the engine's ambient tuning knobs from the
// environment (and an optional config file), following the
// viper-defaults-then-override pattern of shared/config/config.go in
// github.com/georgi-georgiev/testmesh, narrowed to the handful of knobs
// a library engine actually reads — no database, cache, or HTTP-server
// configuration belongs here.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the engine consults at startup.
type Config struct {
	Environment string
	Engine      EngineConfig
	Logger      LoggerConfig
	API         APIConfig
}

// EngineConfig controls C3/C8/C10 tuning knobs.
type EngineConfig struct {
	// HTTPTimeout is the default per-request connect/read timeout (C3),
	// overridden by RMETER_HTTP_TIMEOUT_SECS.
	HTTPTimeout time.Duration
	// MaxRedirects bounds redirect hops followed per request (C3).
	MaxRedirects int
	// ProgressTickInterval holds engine.progress_tick_ms (default 500 ms).
	// No component reads it: the engine publishes no periodic
	// test-progress events, and progress is read on demand through
	// Controller.Progress.
	ProgressTickInterval time.Duration
	// ResultQueueDepth holds engine.result_queue_depth (default 256).
	// internal/events does not read it; its per-subscriber backlog is the
	// fixed subscriberQueueDepth.
	ResultQueueDepth int
}

// LoggerConfig controls the zap logger construction.
type LoggerConfig struct {
	Level string
}

// APIConfig controls the control-surface HTTP server.
type APIConfig struct {
	Port int
}

// Load reads configuration from environment variables (prefixed
// RMETER_) and an optional ./config.yaml, falling back to defaults.
func Load() (*Config, error) {
	viper.SetDefault("environment", "development")

	viper.SetDefault("engine.http_timeout_secs", 30)
	viper.SetDefault("engine.max_redirects", 10)
	viper.SetDefault("engine.progress_tick_ms", 500)
	viper.SetDefault("engine.result_queue_depth", 256)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("api.port", 8080)

	viper.SetEnvPrefix("rmeter")
	viper.AutomaticEnv()

	// RMETER_HTTP_TIMEOUT_SECS is bound directly since its name doesn't
	// follow the engine.* nesting the rest of the knobs use.
	_ = viper.BindEnv("engine.http_timeout_secs", "RMETER_HTTP_TIMEOUT_SECS")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // optional; absence is not an error

	cfg := &Config{
		Environment: viper.GetString("environment"),
		Engine: EngineConfig{
			HTTPTimeout:          time.Duration(viper.GetInt("engine.http_timeout_secs")) * time.Second,
			MaxRedirects:         viper.GetInt("engine.max_redirects"),
			ProgressTickInterval: time.Duration(viper.GetInt("engine.progress_tick_ms")) * time.Millisecond,
			ResultQueueDepth:     viper.GetInt("engine.result_queue_depth"),
		},
		Logger: LoggerConfig{
			Level: viper.GetString("logger.level"),
		},
		API: APIConfig{
			Port: viper.GetInt("api.port"),
		},
	}

	return cfg, nil
}
