package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/flexmarket/auth"
	"github.com/kilianp07/flexmarket/core/demand"
	"github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/core/roles"
	"github.com/kilianp07/flexmarket/infra/iothub"
	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/infra/monitoring"
	"github.com/kilianp07/flexmarket/infra/nodesapi"
	"github.com/kilianp07/flexmarket/infra/serial"
)

// PlatformConfig merges the API endpoint and the demo tuning under the
// "platform" section.
type PlatformConfig struct {
	API   nodesapi.Config `json:",squash"`
	Roles roles.Config    `json:",squash"`
}

type Config struct {
	Platform PlatformConfig    `json:"platform"`
	Auth     auth.Conf         `json:"auth"`
	Serial   serial.Config     `json:"serial"`
	IoTHub   iothub.Config     `json:"iothub"`
	Demo     demand.Config     `json:"demo"`
	Metrics  metrics.Config    `json:"metrics"`
	Journal  journal.Config    `json:"journal"`
	Sentry   monitoring.Config `json:"sentry"`
}

// Load reads the YAML or JSON file at path, applies K_SECTION__KEY
// environment overrides and fills defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}
	// K_SECTION__KEY overrides section.key. The callback already maps to the
	// koanf delimiter.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config format: %s", ext)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return k.Load(file.Provider(path), parser)
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Platform.API.SetDefaults()
	c.Platform.Roles.SetDefaults()
	c.Serial.SetDefaults()
	c.IoTHub.SetDefaults()
	c.Demo.SetDefaults()
	c.Journal.SetDefaults()
}

// Validate checks every section and names the failing one.
func (c Config) Validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"platform", c.Platform.API.Validate},
		{"platform", c.Platform.Roles.Validate},
		{"serial", c.Serial.Validate},
		{"iothub", c.IoTHub.Validate},
		{"demo", c.Demo.Validate},
		{"metrics", c.Metrics.Validate},
		{"journal", c.Journal.Validate},
		{"sentry", c.Sentry.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%s: %w", ch.section, err)
		}
	}
	return nil
}
