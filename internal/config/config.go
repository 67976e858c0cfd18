// Package config loads framecast settings from a YAML file overlaid with
// FRAMECAST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/adapters/file"
	"github.com/aretw0/framecast/pkg/compositor"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing default file is not an error.
const DefaultPath = "framecast.yaml"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Compositor CompositorConfig `mapstructure:"compositor"`
	Frames     FramesConfig     `mapstructure:"frames"`
	Share      ShareConfig      `mapstructure:"share"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StoreConfig struct {
	Driver string       `mapstructure:"driver"`
	Redis  RedisConfig  `mapstructure:"redis"`
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type CompositorConfig struct {
	OutputSize      int    `mapstructure:"output_size"`
	Interpolation   string `mapstructure:"interpolation"`
	MaxSourcePixels int64  `mapstructure:"max_source_pixels"`
}

// FramesConfig selects frame graphics. Items win over Dir; with neither the
// built-in frame is used.
type FramesConfig struct {
	Dir    string           `mapstructure:"dir"`
	Active string           `mapstructure:"active"`
	Items  []file.FrameSpec `mapstructure:"items"`
}

type ShareConfig struct {
	Title      string `mapstructure:"title"`
	Text       string `mapstructure:"text"`
	FilePrefix string `mapstructure:"file_prefix"`
	Outbox     string `mapstructure:"outbox"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Driver: DriverMemory,
			Redis:  RedisConfig{Addr: "localhost:6379", Prefix: "framecast:"},
			SQLite: SQLiteConfig{Path: "framecast.db"},
		},
		Compositor: CompositorConfig{
			OutputSize:      domain.DefaultOutputSize,
			Interpolation:   string(compositor.InterpBiLinear),
			MaxSourcePixels: compositor.DefaultMaxSourcePixels,
		},
		Log: LogConfig{Level: "info", Format: logging.FormatAuto},
	}
}

// envKeys maps environment variables to dotted config paths.
var envKeys = map[string]string{
	"FRAMECAST_SERVER_ADDR":                  "server.addr",
	"FRAMECAST_STORE_DRIVER":                 "store.driver",
	"FRAMECAST_REDIS_ADDR":                   "store.redis.addr",
	"FRAMECAST_REDIS_PASSWORD":               "store.redis.password",
	"FRAMECAST_REDIS_DB":                     "store.redis.db",
	"FRAMECAST_REDIS_PREFIX":                 "store.redis.prefix",
	"FRAMECAST_SQLITE_PATH":                  "store.sqlite.path",
	"FRAMECAST_COMPOSITOR_OUTPUT_SIZE":       "compositor.output_size",
	"FRAMECAST_COMPOSITOR_INTERPOLATION":     "compositor.interpolation",
	"FRAMECAST_COMPOSITOR_MAX_SOURCE_PIXELS": "compositor.max_source_pixels",
	"FRAMECAST_FRAMES_DIR":                   "frames.dir",
	"FRAMECAST_FRAMES_ACTIVE":                "frames.active",
	"FRAMECAST_SHARE_TITLE":                  "share.title",
	"FRAMECAST_SHARE_TEXT":                   "share.text",
	"FRAMECAST_SHARE_FILE_PREFIX":            "share.file_prefix",
	"FRAMECAST_SHARE_OUTBOX":                 "share.outbox",
	"FRAMECAST_LOG_LEVEL":                    "log.level",
	"FRAMECAST_LOG_FORMAT":                   "log.format",
}

// Load reads path (YAML), applies the environment overlay and validates the result.
// An empty path reads DefaultPath if it exists.
func Load(path string) (*Config, error) {
	raw := map[string]any{}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnv(raw, os.LookupEnv)

	cfg := Default()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(raw map[string]any, lookup func(string) (string, bool)) {
	for env, key := range envKeys {
		v, ok := lookup(env)
		if !ok {
			continue
		}
		set(raw, strings.Split(key, "."), v)
	}
}

func set(m map[string]any, path []string, v any) {
	if len(path) == 1 {
		m[path[0]] = v
		return
	}
	child, ok := m[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		m[path[0]] = child
	}
	set(child, path[1:], v)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver))
	}
	if c.Store.Driver == DriverSQLite && c.Store.SQLite.Path == "" {
		errs = append(errs, errors.New("store.sqlite.path: required for the sqlite driver"))
	}
	if c.Compositor.OutputSize <= 0 || c.Compositor.OutputSize > compositor.DefaultMaxOutputSize {
		errs = append(errs, fmt.Errorf("compositor.output_size: %d outside 1..%d", c.Compositor.OutputSize, compositor.DefaultMaxOutputSize))
	}
	if _, err := compositor.ParseInterpolation(c.Compositor.Interpolation); err != nil {
		errs = append(errs, fmt.Errorf("compositor.interpolation: %w", err))
	}
	if c.Compositor.MaxSourcePixels < 0 {
		errs = append(errs, errors.New("compositor.max_source_pixels: must not be negative"))
	}
	for i, item := range c.Frames.Items {
		if item.Path == "" {
			errs = append(errs, fmt.Errorf("frames.items[%d].path: required", i))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
