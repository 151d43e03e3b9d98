package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/testherd/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live coordination events (workers, locks, shards, run state)",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	w, err := watch.New(cfg.Coord.Root, logger.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		out := cmd.OutOrStdout()
		for ev := range w.Events() {
			fmt.Fprintf(out, "%s  %-18s %s\n", ev.At.Format("15:04:05.000"), ev.Kind, ev.Subject)
		}
	}()

	return w.Run(ctx)
}
