package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// LoadFile loads configuration from a YAML file layered over the defaults,
// then applies environment variable overrides. An empty path behaves like Load.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		applyEnvOverrides(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	logrus.Infof("Loaded configuration from %s", path)
	return cfg, nil
}
