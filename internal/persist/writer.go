// Package persist coalesces tank document writes. Rapid successive
// mutations (a continuous drag) debounce into a single store write after a
// quiet period, while discrete confirmed actions (placement, rename, delete,
// leaving the screen) flush immediately so a save-point is never lost to an
// app backgrounding or navigation event.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"aquacore/pkg/domain"
)

// DefaultDelay is the quiet period before a debounced write fires.
const DefaultDelay = 600 * time.Millisecond

var (
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aquacore_tank_writes_total",
		Help: "Tank document writes by trigger and result.",
	}, []string{"trigger", "result"})
	supersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aquacore_tank_writes_superseded_total",
		Help: "Debounced writes superseded before firing.",
	})
)

// timer is the subset of *time.Timer the writer needs; tests substitute a
// manual implementation.
type timer interface {
	Stop() bool
}

type realTimer struct{ *time.Timer }

// Writer debounces writes for one open tank session. All methods are safe
// for concurrent use, though callers are expected to invoke them serially
// from a single event loop.
type Writer struct {
	store domain.TankStore
	key   domain.SessionKey
	log   *slog.Logger

	// Delay is the debounce quiet period. Change before first use only.
	Delay time.Duration

	// after schedules fn once d elapses; replaced in tests.
	after func(d time.Duration, fn func()) timer

	mu      sync.Mutex
	pending timer
	closed  bool
}

// NewWriter returns a Writer for the given session. A nil logger falls back
// to slog.Default.
func NewWriter(store domain.TankStore, key domain.SessionKey, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		store: store,
		key:   key,
		log:   log,
		Delay: DefaultDelay,
		after: func(d time.Duration, fn func()) timer {
			return realTimer{time.AfterFunc(d, fn)}
		},
	}
}

// Enqueue schedules doc for persistence after the quiet period. A later
// Enqueue or Flush supersedes it: only the payload derived from the last
// committed state is guaranteed to eventually persist. Fire-and-forget;
// failures are logged and counted, never surfaced to the mutation flow.
func (w *Writer) Enqueue(doc domain.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.cancelPendingLocked()
	var t timer
	t = w.after(w.Delay, func() {
		w.mu.Lock()
		if w.pending != t {
			// The timer fired while a newer Enqueue or a Flush was taking
			// over the slot; the newer payload owns persistence now.
			supersededTotal.Inc()
			w.mu.Unlock()
			return
		}
		w.pending = nil
		w.mu.Unlock()
		if err := w.store.Write(context.Background(), w.key, doc); err != nil {
			writesTotal.WithLabelValues("debounced", "error").Inc()
			w.log.Warn("debounced tank write failed",
				slog.String("tank_id", w.key.TankID), slog.Any("error", err))
			return
		}
		writesTotal.WithLabelValues("debounced", "ok").Inc()
	})
	w.pending = t
}

// Flush writes doc immediately, superseding any pending debounced write.
// Unlike Enqueue, the error is returned: flush points are confirmed user
// actions and the caller decides how to surface a failure.
func (w *Writer) Flush(ctx context.Context, doc domain.Document) error {
	w.mu.Lock()
	w.cancelPendingLocked()
	w.mu.Unlock()

	if err := w.store.Write(ctx, w.key, doc); err != nil {
		writesTotal.WithLabelValues("flush", "error").Inc()
		w.log.Warn("tank flush failed",
			slog.String("tank_id", w.key.TankID), slog.Any("error", err))
		return err
	}
	writesTotal.WithLabelValues("flush", "ok").Inc()
	return nil
}

// Close cancels any pending debounced write and rejects further Enqueues.
// It does not flush: callers flush explicitly before closing when the last
// state matters.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.cancelPendingLocked()
}

func (w *Writer) cancelPendingLocked() {
	if w.pending != nil {
		if w.pending.Stop() {
			supersededTotal.Inc()
		}
		w.pending = nil
	}
}
