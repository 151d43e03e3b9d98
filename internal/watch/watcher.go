package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventKind classifies a coordination-directory change.
type EventKind string

const (
	EventWorkerJoined EventKind = "worker_joined"
	EventWorkerLeft   EventKind = "worker_left"
	EventWorkerBeat   EventKind = "worker_heartbeat"
	EventLockTaken    EventKind = "lock_taken"
	EventLockFreed    EventKind = "lock_freed"
	EventShardStored  EventKind = "shard_stored"
	EventRunUpdated   EventKind = "run_state_updated"
)

// Event is one observed change.
type Event struct {
	Kind    EventKind `json:"kind"`
	Subject string    `json:"subject"`
	At      time.Time `json:"at"`
}

// Watcher translates raw filesystem notifications on the coordination root
// into domain events. Observation only; it never touches the files.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	events chan Event
	logger *slog.Logger
}

// New creates a watcher over the coordination root. The subdirectories are
// created if missing so they can be registered for notification up front.
func New(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs := []string{root,
		filepath.Join(root, "workers"),
		filepath.Join(root, "locks"),
		filepath.Join(root, "results"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fsw.Close()
			return nil, err
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	return &Watcher{
		root:   root,
		fsw:    fsw,
		events: make(chan Event, 64),
		logger: logger,
	}, nil
}

// Events returns the event stream.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run pumps filesystem notifications into domain events until the context is
// cancelled. It closes the event channel on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if domain, ok := w.translate(ev); ok {
				select {
				case w.events <- domain:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// translate maps one fsnotify event onto a domain event. Temp and write-lock
// files from the atomic store are deliberately invisible.
func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	name := filepath.Base(ev.Name)
	if strings.Contains(name, ".tmp") || strings.HasSuffix(name, ".wlock") {
		return Event{}, false
	}
	dir := filepath.Base(filepath.Dir(ev.Name))
	now := time.Now()

	switch {
	case dir == "workers" && strings.HasSuffix(name, ".worker"):
		subject := strings.TrimSuffix(name, ".worker")
		switch {
		case ev.Op.Has(fsnotify.Create):
			return Event{Kind: EventWorkerJoined, Subject: subject, At: now}, true
		case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
			return Event{Kind: EventWorkerLeft, Subject: subject, At: now}, true
		case ev.Op.Has(fsnotify.Write):
			return Event{Kind: EventWorkerBeat, Subject: subject, At: now}, true
		}
	case dir == "locks" && strings.HasSuffix(name, ".lock"):
		subject := strings.TrimSuffix(name, ".lock")
		switch {
		case ev.Op.Has(fsnotify.Create):
			return Event{Kind: EventLockTaken, Subject: subject, At: now}, true
		case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
			return Event{Kind: EventLockFreed, Subject: subject, At: now}, true
		}
	case dir == "results" && strings.HasSuffix(name, ".results"):
		if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
			return Event{Kind: EventShardStored, Subject: strings.TrimSuffix(name, ".results"), At: now}, true
		}
	case name == "run.json":
		if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
			return Event{Kind: EventRunUpdated, Subject: name, At: now}, true
		}
	}
	return Event{}, false
}
