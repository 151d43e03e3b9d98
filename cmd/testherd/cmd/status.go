package cmd

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a snapshot of the coordination directory",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	c := buildComponents(cfg, logger)
	out := cmd.OutOrStdout()
	now := time.Now()
	staleness := cfg.Coord.EffectiveStaleness()

	state, err := c.coordinator.LoadRunState()
	if err != nil {
		return err
	}
	if state.Assigned() {
		fmt.Fprintf(out, "Run:     #%d (project %d, %d cases)\n",
			state.RunID, state.ProjectID, len(state.CaseIDs))
	} else {
		fmt.Fprintf(out, "Run:     unassigned (project %d)\n", state.ProjectID)
	}

	workers, err := c.registry.List()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Workers: %d known\n", len(workers))
	for _, rec := range workers {
		liveness := "stale"
		if rec.IsAlive(now, staleness) {
			liveness = "alive"
		}
		// Advisory PID check; liveness above is decided by heartbeat age only.
		proc := "?"
		if running, perr := process.PidExists(int32(rec.Identity.PID)); perr == nil {
			if running {
				proc = "running"
			} else {
				proc = "gone"
			}
		}
		fmt.Fprintf(out, "  %-40s %-9s beat %-8s ago  pid %d (%s)  seen=%d processed=%d\n",
			rec.Identity.ID, liveness+"/"+string(rec.Status),
			rec.HeartbeatAge(now).Round(time.Millisecond),
			rec.Identity.PID, proc, rec.TestsSeen, rec.ResultsProcessed)
	}

	locks, err := c.locks.List()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Locks:   %d held\n", len(locks))
	for _, rec := range locks {
		status := "valid"
		if rec.Expired(now) {
			status = "expired"
		}
		fmt.Fprintf(out, "  %-20s by %-40s %s (expires %s)\n",
			rec.Resource, rec.Holder.ID, status, rec.ExpiresAt.Format(time.RFC3339))
	}

	shards, err := c.shards.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Shards:  %d stored\n", shards)
	return nil
}
