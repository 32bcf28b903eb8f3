// Package bus delivers engine notifications (snapshot created, deleted,
// restore completed) to any subscriber through buffered channels, so the
// engine never assumes it shares a thread with a presentation layer.
package bus

import (
	"log/slog"
	"sync"

	"github.com/savesentry/savesentry/internal/profile"
)

// Kind identifies the notification type.
type Kind string

const (
	// SnapshotCreated fires after a new snapshot generation is published.
	SnapshotCreated Kind = "snapshot_created"
	// SnapshotAmended fires after the latest generation is overwritten.
	SnapshotAmended Kind = "snapshot_amended"
	// SnapshotDeleted fires per deleted snapshot id.
	SnapshotDeleted Kind = "snapshot_deleted"
	// RestoreCompleted fires after a restore reaches DONE.
	RestoreCompleted Kind = "restore_completed"
	// WatchDegraded fires when the file watcher loses its subscription
	// and is being re-armed.
	WatchDegraded Kind = "watch_degraded"
)

// Event is one engine notification.
type Event struct {
	Kind       Kind
	Profile    profile.ID
	SnapshotID string
	// Err carries the failure for WatchDegraded events.
	Err error
}

// defaultBuffer is the per-subscriber channel capacity.
const defaultBuffer = 16

// Bus is a fan-out publisher. Publish never blocks: a subscriber that
// stops draining loses its oldest pending events rather than stalling
// the engine workers.
type Bus struct {
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// New creates a Bus. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe registers a listener and returns its event channel and a
// cancel function. Cancel closes the channel; pending events may still
// be drained from it afterwards.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, defaultBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber. A full subscriber
// buffer drops the oldest event to make room; the drop is logged, never
// silent.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		for {
			select {
			case ch <- ev:
			default:
				// Drop oldest, retry
				select {
				case old := <-ch:
					b.logger.Warn("subscriber lagging, dropping oldest event",
						"dropped_kind", old.Kind, "profile", int(old.Profile))
					continue
				default:
					// Raced with the subscriber draining; retry send
					continue
				}
			}
			break
		}
	}
}
