package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/testherd/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP status API over the coordination directory",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	c := buildComponents(cfg, logger)

	srvCfg := web.DefaultConfig()
	srvCfg.Host = cfg.Serve.Host
	srvCfg.Port = cfg.Serve.Port
	srvCfg.EnableCORS = cfg.Serve.EnableCORS
	srvCfg.CORSOrigins = cfg.Serve.CORSOrigins

	server := web.New(srvCfg, c.registry, c.locks, c.shards, c.coordinator,
		cfg.Coord.EffectiveStaleness(), logger.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Start(ctx)
}
