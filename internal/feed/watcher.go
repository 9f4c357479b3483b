package feed

import (
	"context"
	"sync"
	"time"

	"github.com/helpdeskhq/insight/internal/common"
)

// Source is the slice of the source-of-record the watcher observes.
type Source interface {
	LatestMutation(ctx context.Context) (time.Time, error)
}

const defaultPollInterval = 15 * time.Second

// Watcher turns the source-of-record into a change-notification stream by
// polling its latest mutation timestamp. Subscribers are notified on any
// observed change; no field-level diffing is attempted.
type Watcher struct {
	source   Source
	interval time.Duration

	mu       sync.Mutex
	handlers map[int]func()
	nextID   int
	last     time.Time
	primed   bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
	started  bool
}

func NewWatcher(source Source, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{
		source:   source,
		interval: interval,
		handlers: make(map[int]func()),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe registers a handler invoked on every observed change. The
// returned cancel function is safe to call more than once.
func (w *Watcher) Subscribe(handler func()) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = handler
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.handlers, id)
			w.mu.Unlock()
		})
	}
}

// Start launches the polling loop. It returns immediately; the loop runs
// until Close is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}()
}

func (w *Watcher) poll(ctx context.Context) {
	latest, err := w.source.LatestMutation(ctx)
	if err != nil {
		common.Logger().Warn("feed: mutation poll failed", "error", err)
		return
	}
	w.mu.Lock()
	changed := w.primed && latest.After(w.last)
	if !w.primed || latest.After(w.last) {
		w.last = latest
	}
	w.primed = true
	var handlers []func()
	if changed {
		handlers = make([]func(), 0, len(w.handlers))
		for _, h := range w.handlers {
			handlers = append(handlers, h)
		}
	}
	w.mu.Unlock()
	if !changed {
		return
	}
	common.Logger().Debug("feed: source mutation observed", "latest", latest)
	for _, handler := range handlers {
		handler()
	}
}

// Close stops the polling loop and waits for it to exit. Safe to call more
// than once.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}
