package config

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError collects everything wrong with a config in one pass.
type ValidationError struct {
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Validate checks cross-field constraints. It reports every problem it
// finds, not just the first.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Coord.Root == "" {
		problems = append(problems, "coord.root must not be empty")
	}
	if cfg.Coord.LockTTL <= 0 {
		problems = append(problems, "coord.lock_ttl must be positive")
	}
	if cfg.Coord.LockPoll <= 0 {
		problems = append(problems, "coord.lock_poll must be positive")
	}
	if cfg.Coord.LockMaxWait < cfg.Coord.LockPoll {
		problems = append(problems, "coord.lock_max_wait must be at least coord.lock_poll")
	}
	if cfg.Coord.HeartbeatInterval <= 0 {
		problems = append(problems, "coord.heartbeat_interval must be positive")
	}
	if cfg.Coord.Staleness == 0 && cfg.Coord.StalenessFactor < 2 && cfg.Coord.StalenessFactor != 0 {
		problems = append(problems, "coord.staleness_factor below 2 misclassifies slow-but-alive workers")
	}
	if staleness := cfg.Coord.EffectiveStaleness(); staleness <= cfg.Coord.HeartbeatInterval {
		problems = append(problems, "staleness window must exceed the heartbeat interval")
	}
	if cfg.Coord.BarrierPoll <= 0 {
		problems = append(problems, "coord.barrier_poll must be positive")
	}
	if cfg.Remote.MaxRetries < 0 {
		problems = append(problems, "remote.max_retries must not be negative")
	}
	if cfg.Serve.Port < 0 || cfg.Serve.Port > 65535 {
		problems = append(problems, "serve.port out of range")
	}
	if lvl := cfg.Log.Level; lvl != "" && lvl != "debug" && lvl != "info" && lvl != "warn" && lvl != "error" {
		problems = append(problems, fmt.Sprintf("log.level %q not recognized", lvl))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// RequireRemote verifies the remote collaborator is configured; commands
// that talk to the API call this before constructing a client.
func RequireRemote(cfg *Config) error {
	if cfg.Remote.URL == "" {
		return errors.New("remote.url is not configured")
	}
	if cfg.Remote.ProjectID == 0 {
		return errors.New("remote.project_id is not configured")
	}
	return nil
}
