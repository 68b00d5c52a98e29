// Package config loads stagedraw's runtime configuration from an optional
// YAML file, environment variables, and built-in defaults, in that
// order of increasing precedence for env over file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. A loaded Config is treated as
// immutable; per-draw options are passed explicitly at draw start and
// never read from shared mutable state.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Data   DataConfig   `mapstructure:"data" yaml:"data"`
	Draw   DrawConfig   `mapstructure:"draw" yaml:"draw"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

type DataConfig struct {
	// Dir holds the collection files (lists.json, winners.json, ...).
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DrawConfig carries the defaults applied to a draw when the start request
// leaves them unset.
type DrawConfig struct {
	Delay                  time.Duration `mapstructure:"delay" yaml:"delay"`
	RevealMode             string        `mapstructure:"reveal_mode" yaml:"reveal_mode"`
	RevealInterval         time.Duration `mapstructure:"reveal_interval" yaml:"reveal_interval"`
	ExcludePriorWinners    bool          `mapstructure:"exclude_prior_winners" yaml:"exclude_prior_winners"`
	RemoveWinnersFromLists bool          `mapstructure:"remove_winners_from_lists" yaml:"remove_winners_from_lists"`
	FallbackField          string        `mapstructure:"fallback_field" yaml:"fallback_field"`
	DisplayField           string        `mapstructure:"display_field" yaml:"display_field"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8321},
		Data:   DataConfig{Dir: "data"},
		Draw: DrawConfig{
			Delay:               3 * time.Second,
			RevealMode:          "all-at-once",
			RevealInterval:      2 * time.Second,
			ExcludePriorWinners: true,
			DisplayField:        "name",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from path when it is non-empty, otherwise from
// stagedraw.yaml in the working directory if one exists. Environment
// variables prefixed STAGEDRAW_ override file values
// (STAGEDRAW_SERVER_PORT, STAGEDRAW_DATA_DIR, ...).
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("STAGEDRAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("stagedraw")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("config: data.dir must not be empty")
	}
	switch c.Draw.RevealMode {
	case "all-at-once", "sequential":
	default:
		return fmt.Errorf("config: draw.reveal_mode %q is not all-at-once or sequential", c.Draw.RevealMode)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format %q is not text or json", c.Log.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("draw.delay", d.Draw.Delay)
	v.SetDefault("draw.reveal_mode", d.Draw.RevealMode)
	v.SetDefault("draw.reveal_interval", d.Draw.RevealInterval)
	v.SetDefault("draw.exclude_prior_winners", d.Draw.ExcludePriorWinners)
	v.SetDefault("draw.remove_winners_from_lists", d.Draw.RemoveWinnersFromLists)
	v.SetDefault("draw.fallback_field", d.Draw.FallbackField)
	v.SetDefault("draw.display_field", d.Draw.DisplayField)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// WriteDefault writes the default configuration as a YAML file at path.
// Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return err
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: marshal defaults: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
