// Package config assembles process configuration from defaults, an optional
// .env file, SKIRMISH_* environment variables and an optional JSON world file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"skirmish/internal/proto"
	"skirmish/internal/telemetry"
	"skirmish/internal/world"
	"skirmish/logging"
)

const (
	DefaultTCPAddr    = ":1337"
	DefaultUDPAddr    = ":1338"
	DefaultHTTPAddr   = ":8080"
	DefaultTickPeriod = 16 * time.Millisecond
	DefaultEnvFile    = ".env"
)

const (
	EnvTCPAddr      = "SKIRMISH_TCP_ADDR"
	EnvUDPAddr      = "SKIRMISH_UDP_ADDR"
	EnvHTTPAddr     = "SKIRMISH_HTTP_ADDR"
	EnvWorldFile    = "SKIRMISH_WORLD_FILE"
	EnvSeed         = "SKIRMISH_SEED"
	EnvTickMS       = "SKIRMISH_TICK_MS"
	EnvMaxFrame     = "SKIRMISH_MAX_FRAME"
	EnvQueueSize    = "SKIRMISH_QUEUE_SIZE"
	EnvWriteTimeout = "SKIRMISH_WRITE_TIMEOUT_MS"
	EnvCORSOrigin   = "SKIRMISH_CORS_ORIGIN"
	EnvEnablePprof  = "SKIRMISH_ENABLE_PPROF"
	EnvLogSinks     = "SKIRMISH_LOG_SINKS"
	EnvLogLevel     = "SKIRMISH_LOG_LEVEL"
	EnvLogJSONPath  = "SKIRMISH_LOG_JSON_PATH"
	EnvRedisAddr    = "SKIRMISH_REDIS_ADDR"
	EnvRedisChannel = "SKIRMISH_REDIS_CHANNEL"
)

type Config struct {
	TCPAddr      string
	UDPAddr      string
	HTTPAddr     string
	WorldFile    string
	TickPeriod   time.Duration
	MaxFrame     int
	QueueSize    int
	WriteTimeout time.Duration
	CORSOrigin   string
	EnablePprof  bool
	World        world.Config
	Logging      logging.Config
}

// File is the on-disk JSON world file. Absent fields keep their defaults.
type File struct {
	World world.Config `json:"world" jsonschema:"description=Arena tuning and static colliders"`
}

func Default() Config {
	return Config{
		TCPAddr:      DefaultTCPAddr,
		UDPAddr:      DefaultUDPAddr,
		HTTPAddr:     DefaultHTTPAddr,
		TickPeriod:   DefaultTickPeriod,
		MaxFrame:     proto.DefaultMaxFrame,
		WriteTimeout: 2 * time.Second,
		World:        world.DefaultConfig(),
		Logging:      logging.DefaultConfig(),
	}
}

// Load reads envFile (a missing file is not an error), applies the process
// environment and then the world file it names.
func Load(envFile string, logger telemetry.Logger) (Config, error) {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg := FromEnv(Default(), os.Getenv, logger)
	if cfg.WorldFile != "" {
		if err := ApplyFile(&cfg, cfg.WorldFile); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// FromEnv overlays environment values on cfg. Invalid values are logged and
// ignored.
func FromEnv(cfg Config, getenv func(string) string, logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	str := func(key string, dst *string) {
		if raw := strings.TrimSpace(getenv(key)); raw != "" {
			*dst = raw
		}
	}
	positive := func(key string, apply func(int)) {
		raw := strings.TrimSpace(getenv(key))
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			logger.Printf("invalid %s=%q: want a positive integer", key, raw)
			return
		}
		apply(value)
	}

	str(EnvTCPAddr, &cfg.TCPAddr)
	str(EnvUDPAddr, &cfg.UDPAddr)
	str(EnvHTTPAddr, &cfg.HTTPAddr)
	str(EnvWorldFile, &cfg.WorldFile)
	str(EnvSeed, &cfg.World.Seed)
	str(EnvCORSOrigin, &cfg.CORSOrigin)
	str(EnvLogJSONPath, &cfg.Logging.JSON.FilePath)
	str(EnvRedisAddr, &cfg.Logging.Redis.Addr)
	str(EnvRedisChannel, &cfg.Logging.Redis.Channel)

	positive(EnvTickMS, func(v int) { cfg.TickPeriod = time.Duration(v) * time.Millisecond })
	positive(EnvMaxFrame, func(v int) { cfg.MaxFrame = v })
	positive(EnvQueueSize, func(v int) { cfg.QueueSize = v })
	positive(EnvWriteTimeout, func(v int) { cfg.WriteTimeout = time.Duration(v) * time.Millisecond })

	if raw := strings.TrimSpace(getenv(EnvEnablePprof)); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.EnablePprof = value
		} else {
			logger.Printf("invalid %s=%q: %v", EnvEnablePprof, raw, err)
		}
	}
	if raw := strings.TrimSpace(getenv(EnvLogSinks)); raw != "" {
		if sinks, ok := parseSinks(raw); ok {
			cfg.Logging.EnabledSinks = sinks
		} else {
			logger.Printf("invalid %s=%q: known sinks are console, json, redis", EnvLogSinks, raw)
		}
	}
	if raw := strings.TrimSpace(getenv(EnvLogLevel)); raw != "" {
		if severity, ok := logging.ParseSeverity(strings.ToLower(raw)); ok {
			cfg.Logging.MinimumSeverity = severity
		} else {
			logger.Printf("invalid %s=%q", EnvLogLevel, raw)
		}
	}
	return cfg
}

func parseSinks(raw string) ([]string, bool) {
	var sinks []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		switch name {
		case "":
			continue
		case logging.SinkConsole, logging.SinkJSON, logging.SinkRedis:
			sinks = append(sinks, name)
		default:
			return nil, false
		}
	}
	return sinks, true
}

// ApplyFile decodes the world file at path over cfg.World.
func ApplyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read world file: %w", err)
	}
	file := File{World: cfg.World}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode world file %s: %w", path, err)
	}
	cfg.World = file.World
	return nil
}
