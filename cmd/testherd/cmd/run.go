package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/testherd/internal/config"
	"github.com/hugo-lorenzo-mato/testherd/internal/core"
	"github.com/hugo-lorenzo-mato/testherd/internal/history"
	"github.com/hugo-lorenzo-mato/testherd/internal/remote"
	"github.com/hugo-lorenzo-mato/testherd/internal/worker"
)

var (
	runResultsFile string
	runWorkers     int
	runFinalize    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Contribute results to the shared run as one or more workers",
	Long: `Reads a results JSON file (an array of result entries produced by a test
framework adapter) and drives the coordination lifecycle for it: register,
heartbeat, store the result shard, and settle run ownership with the remote
test-management API.

With --workers N the results are split across N independent in-process
workers, each with its own identity, exercising the same coordination a
multi-process run would. With --finalize the process waits for all known
workers to drain, aggregates every shard, and submits the merged results.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runResultsFile, "results", "", "results JSON file (required)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 1, "number of in-process workers to split results across")
	runCmd.Flags().BoolVar(&runFinalize, "finalize", false, "wait for all workers and submit merged results")
	_ = runCmd.MarkFlagRequired("results")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.RequireRemote(cfg); err != nil {
		return err
	}
	if runWorkers < 1 {
		return fmt.Errorf("--workers must be at least 1")
	}

	results, err := readResults(runResultsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := remote.NewClient(cfg.Remote.URL, cfg.Remote.APIKey, logger.Logger,
		remote.WithMaxRetries(cfg.Remote.MaxRetries))

	chunks := splitResults(results, runWorkers)
	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range chunks {
		chunk := chunk
		sup := worker.NewSupervisor(cfg, client, logger.Logger)
		g.Go(func() error {
			return sup.RunWorker(gctx, func(context.Context) ([]core.Result, error) {
				return chunk, nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if !runFinalize {
		return nil
	}

	var opts []worker.SupervisorOption
	if cfg.History.Enabled {
		archive, aerr := history.Open(cfg.History.Path)
		if aerr != nil {
			logger.Warn("run history unavailable", "error", aerr)
		} else {
			defer archive.Close()
			opts = append(opts, worker.WithArchive(archive))
		}
	}
	finalizer := worker.NewSupervisor(cfg, client, logger.Logger, opts...)
	return finalizer.Finalize(ctx)
}

// readResults parses the framework adapter's output: a JSON array of result
// entries.
func readResults(path string) ([]core.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	var results []core.Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing results file: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("results file %s contains no entries", path)
	}
	return results, nil
}

// splitResults deals results round-robin into n chunks, dropping empty ones.
func splitResults(results []core.Result, n int) [][]core.Result {
	chunks := make([][]core.Result, n)
	for i, r := range results {
		chunks[i%n] = append(chunks[i%n], r)
	}
	out := chunks[:0]
	for _, c := range chunks {
		if len(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}
