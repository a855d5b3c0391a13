package engine

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/Carmen-Shannon/oxy-live/engine/renderer/layout"
)

// Config is the file form of the engine options.
type Config struct {
	// UniformPacking and InstancePacking name a layout.Packing; "auto" picks the platform default.
	UniformPacking      string  `toml:"uniform_packing"`
	InstancePacking     string  `toml:"instance_packing"`
	Debug               bool    `toml:"debug"`
	Profiling           bool    `toml:"profiling"`
	DiagnosticCacheSize int     `toml:"diagnostic_cache_size"`
	TickRate            float64 `toml:"tick_rate"`
}

// DefaultConfig returns the configuration NewEngine uses without options.
//
// Returns:
//   - Config: the defaults
func DefaultConfig() Config {
	return Config{
		UniformPacking:      "auto",
		InstancePacking:     "attribute",
		DiagnosticCacheSize: 128,
		TickRate:            60,
	}
}

// LoadConfig reads a TOML config file. Keys missing from the file keep their defaults.
//
// Parameters:
//   - path: the config file path
//
// Returns:
//   - Config: the merged configuration
//   - error: if the file cannot be read or decoded
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return conf, nil
}

// WriteConfig writes conf to path as TOML.
//
// Parameters:
//   - path: the config file path
//   - conf: the configuration to write
//
// Returns:
//   - error: if encoding or writing fails
func WriteConfig(path string, conf Config) error {
	var buffer bytes.Buffer
	if err := toml.NewEncoder(&buffer).Encode(conf); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buffer.Bytes(), 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Options converts the configuration to builder options.
//
// Returns:
//   - []EngineBuilderOption: the options
//   - error: if a packing name is unknown
func (c Config) Options() ([]EngineBuilderOption, error) {
	uniform, err := layout.ParsePacking(c.UniformPacking)
	if err != nil {
		return nil, fmt.Errorf("uniform_packing: %w", err)
	}
	instance := layout.PackingAttribute
	if c.InstancePacking != "" {
		instance, err = layout.ParsePacking(c.InstancePacking)
		if err != nil {
			return nil, fmt.Errorf("instance_packing: %w", err)
		}
	}
	return []EngineBuilderOption{
		WithUniformPacking(uniform),
		WithInstancePacking(instance),
		WithDebug(c.Debug),
		WithProfiling(c.Profiling),
		WithDiagnosticCacheSize(c.DiagnosticCacheSize),
		WithTickRate(c.TickRate),
	}, nil
}
