package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Config holds the server configuration.
type Config struct {
	TickRateHz    int    `json:"tick_rate_hz" yaml:"tick_rate_hz"`
	ViewDistance  int    `json:"view_distance" yaml:"view_distance"`
	Seed          uint64 `json:"seed" yaml:"seed"`
	GeneratorType string `json:"generator_type" yaml:"generator_type"` // "terrain" or "flat"
	Noise         string `json:"noise" yaml:"noise"`                   // "simplex" or "perlin"

	WorkerCount          int `json:"worker_count" yaml:"worker_count"`                     // 0 = half the CPUs
	RequestQueueCapacity int `json:"request_queue_capacity" yaml:"request_queue_capacity"` // 0 = unbounded
	WorldHeight          int `json:"world_height" yaml:"world_height"`

	// Persisted mode: chunks are loaded from WorldPath instead of generated.
	WorldPath     string  `json:"world_path" yaml:"world_path"`
	WorldURL      string  `json:"world_url" yaml:"world_url"`
	Store         string  `json:"store" yaml:"store"`                     // "region" or "sqlite"
	LoadRateLimit float64 `json:"load_rate_limit" yaml:"load_rate_limit"` // loads per second, 0 = unlimited

	PreloadRadius int        `json:"preload_radius" yaml:"preload_radius"` // -1 disables the spawn anchor
	Spawn         [3]float64 `json:"spawn" yaml:"spawn"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns a Config with sensible defaults. The seed defaults
// to the number of days since the Unix epoch.
func DefaultConfig() *Config {
	return &Config{
		TickRateHz:    20,
		ViewDistance:  8,
		Seed:          uint64(time.Now().Unix() / 86400),
		GeneratorType: "terrain",
		Noise:         "simplex",
		WorldHeight:   384,
		Store:         "region",
		PreloadRadius: 4,
		Spawn:         [3]float64{0, 70, 0},
		LogLevel:      "info",
	}
}

// Load reads a config file on top of the defaults. Files ending in .yaml
// or .yml are parsed as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["view-distance"] {
		cfg.ViewDistance = fromFile.ViewDistance
	}
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["generator"] {
		cfg.GeneratorType = fromFile.GeneratorType
	}
	if !explicitFlags["noise"] {
		cfg.Noise = fromFile.Noise
	}
	if !explicitFlags["workers"] {
		cfg.WorkerCount = fromFile.WorkerCount
	}
	if !explicitFlags["world"] {
		cfg.WorldPath = fromFile.WorldPath
	}
	if !explicitFlags["world-url"] {
		cfg.WorldURL = fromFile.WorldURL
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}

	// File-only settings.
	cfg.TickRateHz = fromFile.TickRateHz
	cfg.RequestQueueCapacity = fromFile.RequestQueueCapacity
	cfg.WorldHeight = fromFile.WorldHeight
	cfg.Store = fromFile.Store
	cfg.LoadRateLimit = fromFile.LoadRateLimit
	cfg.PreloadRadius = fromFile.PreloadRadius
	cfg.Spawn = fromFile.Spawn
}

//go:embed config.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

// Validate checks cfg against the config schema.
func (c *Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SpawnPoint returns the spawn position as a vector.
func (c *Config) SpawnPoint() mgl64.Vec3 {
	return mgl64.Vec3{c.Spawn[0], c.Spawn[1], c.Spawn[2]}
}

// Persisted reports whether chunks come from a stored world.
func (c *Config) Persisted() bool {
	return c.WorldPath != ""
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
