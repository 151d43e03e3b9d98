package coord

import (
	"context"
	"log/slog"
	"time"
)

// Barrier waits until the registry shows no active workers. It is best
// effort by design: a worker that registers after the barrier returns is
// invisible to it.
type Barrier struct {
	registry  *Registry
	staleness time.Duration
	poll      time.Duration
	logger    *slog.Logger
}

// NewBarrier creates a completion barrier over the registry.
func NewBarrier(registry *Registry, staleness, poll time.Duration, logger *slog.Logger) *Barrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Barrier{
		registry:  registry,
		staleness: staleness,
		poll:      poll,
		logger:    logger,
	}
}

// WaitForAll polls the registry until no currently-known worker is active.
// It returns (true, nil) when the registry drains and (false, nil) when the
// timeout elapses first; a timeout is an outcome for the caller to judge, not
// an error. A non-nil error means a registry failure or context cancellation.
func (b *Barrier) WaitForAll(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		active, err := b.registry.ListActive(b.staleness)
		if err != nil {
			return false, err
		}
		if len(active) == 0 {
			return true, nil
		}
		if time.Now().After(deadline) {
			b.logger.Warn("completion barrier timed out",
				"active_workers", len(active), "timeout", timeout)
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(b.poll):
		}
	}
}
