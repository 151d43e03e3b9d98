package cmd

import (
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/testherd/internal/config"
	"github.com/hugo-lorenzo-mato/testherd/internal/coord"
	"github.com/hugo-lorenzo-mato/testherd/internal/core"
	"github.com/hugo-lorenzo-mato/testherd/internal/logging"
	"github.com/hugo-lorenzo-mato/testherd/internal/remote"
)

// loadConfig loads configuration honoring flag bindings and builds the
// process logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return cfg, logger, nil
}

// components bundles read-side views of the coordination directory for the
// status surfaces (status, serve, watch). These commands observe; only run
// workers mutate.
type components struct {
	identity    core.WorkerIdentity
	store       *coord.FileStore
	registry    *coord.Registry
	locks       *coord.LockManager
	shards      *coord.ShardStore
	coordinator *coord.Coordinator
}

func buildComponents(cfg *config.Config, logger *logging.Logger) *components {
	identity := core.NewWorkerIdentity()
	store := coord.NewFileStore(logger.Logger)
	locks := coord.NewLockManager(cfg.Coord.Root, identity, logger.Logger,
		coord.WithPollInterval(cfg.Coord.LockPoll))
	registry := coord.NewRegistry(cfg.Coord.Root, store, logger.Logger)
	shards := coord.NewShardStore(cfg.Coord.Root, store, logger.Logger)

	var client core.RunClient
	if cfg.Remote.URL != "" {
		client = remote.NewClient(cfg.Remote.URL, cfg.Remote.APIKey, logger.Logger,
			remote.WithMaxRetries(cfg.Remote.MaxRetries))
	}
	coordinator := coord.NewCoordinator(cfg.Coord.Root, store, locks, client, coord.CoordinatorConfig{
		ProjectID:   cfg.Remote.ProjectID,
		RunName:     cfg.Remote.RunName,
		LockTTL:     cfg.Coord.LockTTL,
		LockMaxWait: cfg.Coord.LockMaxWait,
	}, logger.Logger)

	return &components{
		identity:    identity,
		store:       store,
		registry:    registry,
		locks:       locks,
		shards:      shards,
		coordinator: coordinator,
	}
}
