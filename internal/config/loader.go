package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "TESTHERD",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "TESTHERD",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (TESTHERD_*)
// 3. Project config (.testherd.yaml in current directory)
// 4. User config (~/.config/testherd/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".testherd")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "testherd"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("coord.root", ".testherd/coord")
	l.v.SetDefault("coord.lock_ttl", "30s")
	l.v.SetDefault("coord.lock_poll", "100ms")
	l.v.SetDefault("coord.lock_max_wait", "10s")
	l.v.SetDefault("coord.heartbeat_interval", "5s")
	l.v.SetDefault("coord.staleness_factor", 3)
	l.v.SetDefault("coord.barrier_timeout", "60s")
	l.v.SetDefault("coord.barrier_poll", "250ms")

	l.v.SetDefault("remote.url", "")
	l.v.SetDefault("remote.api_key", "")
	l.v.SetDefault("remote.project_id", 0)
	l.v.SetDefault("remote.run_name", "")
	l.v.SetDefault("remote.max_retries", 3)

	l.v.SetDefault("history.enabled", true)
	l.v.SetDefault("history.path", ".testherd/history.db")

	l.v.SetDefault("serve.host", "localhost")
	l.v.SetDefault("serve.port", 8790)
	l.v.SetDefault("serve.enable_cors", false)
	l.v.SetDefault("serve.cors_origins", []string{})
}
