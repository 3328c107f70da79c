package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/2chong/Change-Detection/internal/core/common"
)

type MatchingConfig struct {
	CutThreshold       float64 `toml:"cut_threshold"`
	ChangeThreshold    float64 `toml:"change_threshold"`
	DetectionThreshold float64 `toml:"detection_threshold"`
	Workers            int     `toml:"workers"`
	MinArea            float64 `toml:"min_area"`
	MaxArea            float64 `toml:"max_area"`
}

type ServerConfig struct {
	Port string `toml:"port"`
	Mode string `toml:"mode"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type LogConfig struct {
	Mode string `toml:"mode"`
}

type Config struct {
	Matching MatchingConfig `toml:"matching"`
	Server   ServerConfig   `toml:"server"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Redis    RedisConfig    `toml:"redis"`
	Log      LogConfig      `toml:"log"`
}

// Default returns the settings used when no file or variable overrides them.
// Memgraph and Redis stay disabled until an address is configured.
func Default() *Config {
	return &Config{
		Matching: MatchingConfig{
			CutThreshold:       0.05,
			ChangeThreshold:    0.7,
			DetectionThreshold: 0.6,
		},
		Server: ServerConfig{Port: "8080", Mode: "release"},
		Redis:  RedisConfig{TTLSeconds: 3600},
		Log:    LogConfig{Mode: "production"},
	}
}

// Load reads a TOML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from the environment. Unparseable numbers
// are reported rather than ignored.
func (c *Config) ApplyEnv() error {
	floats := map[string]*float64{
		"CD_CUT_THRESHOLD":       &c.Matching.CutThreshold,
		"CD_CHANGE_THRESHOLD":    &c.Matching.ChangeThreshold,
		"CD_DETECTION_THRESHOLD": &c.Matching.DetectionThreshold,
		"CD_MIN_AREA":            &c.Matching.MinArea,
		"CD_MAX_AREA":            &c.Matching.MaxArea,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", key, err)
			}
			*dst = f
		}
	}

	ints := map[string]*int{
		"CD_WORKERS":        &c.Matching.Workers,
		"REDIS_DB":          &c.Redis.DB,
		"REDIS_TTL_SECONDS": &c.Redis.TTLSeconds,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", key, err)
			}
			*dst = n
		}
	}

	strs := map[string]*string{
		"PORT":              &c.Server.Port,
		"GIN_MODE":          &c.Server.Mode,
		"MEMGRAPH_URI":      &c.Memgraph.URI,
		"MEMGRAPH_USER":     &c.Memgraph.User,
		"MEMGRAPH_PASSWORD": &c.Memgraph.Password,
		"REDIS_ADDR":        &c.Redis.Addr,
		"REDIS_PASSWORD":    &c.Redis.Password,
		"LOG_MODE":          &c.Log.Mode,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	return nil
}

// Validate rejects thresholds outside [0,1] and an inverted area window.
func (c *Config) Validate() error {
	m := c.Matching
	for name, v := range map[string]float64{
		"matching.cut_threshold":       m.CutThreshold,
		"matching.change_threshold":    m.ChangeThreshold,
		"matching.detection_threshold": m.DetectionThreshold,
	} {
		if err := common.CheckThreshold("config.Validate", name, v); err != nil {
			return err
		}
	}
	if m.MinArea < 0 || m.MaxArea < 0 {
		return common.ConfigError("config.Validate", "area bounds must not be negative")
	}
	if m.MaxArea > 0 && m.MinArea > m.MaxArea {
		return common.ConfigError("config.Validate", "min_area %v exceeds max_area %v", m.MinArea, m.MaxArea)
	}
	if m.Workers < 0 {
		return common.ConfigError("config.Validate", "workers must not be negative")
	}
	return nil
}
