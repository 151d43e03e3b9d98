package coord

import (
	"context"
	"log/slog"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

// Heartbeat refreshes a worker's registry record on a fixed period from its
// own goroutine so the main workflow can never starve it.
type Heartbeat struct {
	registry *Registry
	id       core.WorkerID
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewHeartbeat creates a heartbeat runner for the worker.
func NewHeartbeat(registry *Registry, id core.WorkerID, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		registry: registry,
		id:       id,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the background timer. The worker must already be registered.
func (h *Heartbeat) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.registry.Touch(h.id); err != nil {
					// A missed beat is recoverable as long as the record does
					// not outlive the staleness window; keep beating.
					h.logger.Warn("heartbeat failed", "worker", h.id, "error", err)
				}
			}
		}
	}()
}

// Stop halts the timer and waits for the goroutine to exit.
func (h *Heartbeat) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
	h.cancel = nil
}
