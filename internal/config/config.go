package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Coord   CoordConfig   `mapstructure:"coord"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	History HistoryConfig `mapstructure:"history"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CoordConfig configures the coordination directory and its timing knobs.
type CoordConfig struct {
	// Root is the shared directory all workers coordinate through.
	Root string `mapstructure:"root"`

	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	LockPoll    time.Duration `mapstructure:"lock_poll"`
	LockMaxWait time.Duration `mapstructure:"lock_max_wait"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// StalenessFactor derives the worker staleness window as
	// factor × heartbeat interval. Staleness, when set, overrides the
	// derived value outright.
	StalenessFactor int           `mapstructure:"staleness_factor"`
	Staleness       time.Duration `mapstructure:"staleness"`

	BarrierTimeout time.Duration `mapstructure:"barrier_timeout"`
	BarrierPoll    time.Duration `mapstructure:"barrier_poll"`
}

// EffectiveStaleness resolves the staleness window: the explicit override if
// set, otherwise StalenessFactor × HeartbeatInterval.
func (c CoordConfig) EffectiveStaleness() time.Duration {
	if c.Staleness > 0 {
		return c.Staleness
	}
	factor := c.StalenessFactor
	if factor <= 0 {
		factor = 3
	}
	return time.Duration(factor) * c.HeartbeatInterval
}

// RemoteConfig configures the test-management API collaborator.
type RemoteConfig struct {
	URL        string `mapstructure:"url"`
	APIKey     string `mapstructure:"api_key"`
	ProjectID  int64  `mapstructure:"project_id"`
	RunName    string `mapstructure:"run_name"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// HistoryConfig configures the local run archive.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ServeConfig configures the read-only status HTTP server.
type ServeConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	EnableCORS  bool     `mapstructure:"enable_cors"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}
