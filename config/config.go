package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/mtrr/api/control"
	"github.com/kilianp07/mtrr/core/factory"
	"github.com/kilianp07/mtrr/core/metrics"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/infra/mmt"
	"github.com/kilianp07/mtrr/infra/monitoring"
	"github.com/kilianp07/mtrr/infra/mqtt"
	"github.com/kilianp07/mtrr/infra/redis"
)

type Config struct {
	MQTT      mqtt.Config          `json:"mqtt"`
	Mission   MissionConfig        `json:"mission"`
	API       control.Config       `json:"api"`
	MMT       mmt.Config           `json:"mmt"`
	Knowledge factory.ModuleConfig `json:"knowledge"`
	Dedup     DedupConfig          `json:"dedup"`
	Metrics   metrics.Config       `json:"metrics"`
	Sentry    monitoring.Config    `json:"sentry"`
	Fleet     []model.Vehicle      `json:"fleet"`

	// Path is the file the configuration was read from.
	Path string `json:"-"`
}

// DedupConfig selects where processed report keys are remembered.
type DedupConfig struct {
	// Backend is "memory" or "redis".
	Backend string       `json:"backend"`
	Redis   redis.Config `json:"redis"`
}

func (c *DedupConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

func (c DedupConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("dedup: redis backend requires redis.addr")
		}
		return nil
	default:
		return fmt.Errorf("dedup: unknown backend %s", c.Backend)
	}
}

// Load reads the configuration file, then applies K_ prefixed environment
// overrides where "__" separates nested keys (K_MQTT__BROKER). A .env file
// in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k, err := read(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Path = path
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func read(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	return k, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.API.SetDefaults()
	c.MMT.SetDefaults()
	c.Dedup.SetDefaults()
	if c.Knowledge.Type == "" {
		c.Knowledge.Type = "memory"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Mission.Validate(); err != nil {
		return err
	}
	if err := c.Dedup.Validate(); err != nil {
		return err
	}
	seen := make(map[int]bool, len(c.Fleet))
	for _, v := range c.Fleet {
		if seen[v.ID] {
			return fmt.Errorf("fleet: duplicate vehicle id %d", v.ID)
		}
		seen[v.ID] = true
	}
	return nil
}
