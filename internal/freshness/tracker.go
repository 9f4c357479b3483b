package freshness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/helpdeskhq/insight/internal/common"
)

// DefaultStaleAfter is the re-validation window: a sync older than this is
// treated as stale even when no mutation has been observed.
const DefaultStaleAfter = 5 * time.Minute

// Tracker owns the "last successful sync" timestamp and decides whether the
// vector index needs to be rebuilt. Instances are independent; construct one
// per engine and share it with the change listener.
type Tracker struct {
	mu         sync.Mutex
	lastSync   time.Time
	staleAfter time.Duration
	statePath  string
	now        func() time.Time
}

type Option func(*Tracker)

// WithStaleAfter overrides the re-validation window.
func WithStaleAfter(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.staleAfter = d
		}
	}
}

// WithStatePath enables persisting the timestamp to a local JSON state file,
// loaded back on construction. This is convenience caching only; a missing
// or corrupt file degrades to "never synced".
func WithStatePath(path string) Option {
	return func(t *Tracker) {
		t.statePath = strings.TrimSpace(path)
	}
}

// WithClock overrides the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{staleAfter: DefaultStaleAfter, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.statePath != "" {
		t.loadState()
	}
	return t
}

// ShouldSync reports whether a full sync is required given the most recent
// mutation observed in the source-of-record. It is true when no sync has
// succeeded yet, when the last sync predates the mutation, or when the last
// sync has aged past the re-validation window. No side effects.
func (t *Tracker) ShouldSync(latestMutation time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastSync.IsZero() {
		return true
	}
	if latestMutation.After(t.lastSync) {
		return true
	}
	return t.now().Sub(t.lastSync) > t.staleAfter
}

// MarkSynced records a successful full sync at the current time.
func (t *Tracker) MarkSynced() {
	t.mu.Lock()
	t.lastSync = t.now()
	path := t.statePath
	stamp := t.lastSync
	t.mu.Unlock()
	if path != "" {
		t.saveState(path, stamp)
	}
}

// Invalidate forces the next ShouldSync to return true regardless of
// timestamp comparison. The change listener calls this on any row touch; no
// field-level diffing is attempted.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	t.lastSync = time.Time{}
	path := t.statePath
	t.mu.Unlock()
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			common.Logger().Warn("freshness: failed to remove state file", "path", path, "error", err)
		}
	}
}

// LastSync returns the recorded sync time, zero when never synced.
func (t *Tracker) LastSync() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSync
}

type stateFile struct {
	LastSync time.Time `json:"last_sync"`
}

func (t *Tracker) loadState() {
	data, err := os.ReadFile(t.statePath)
	if err != nil {
		return
	}
	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		common.Logger().Warn("freshness: ignoring corrupt state file", "path", t.statePath, "error", err)
		return
	}
	t.lastSync = state.LastSync
}

func (t *Tracker) saveState(path string, stamp time.Time) {
	logger := common.Logger()
	data, err := json.Marshal(stateFile{LastSync: stamp})
	if err != nil {
		logger.Warn("freshness: failed to encode state", "error", err)
		return
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("freshness: failed to create state dir", "dir", dir, "error", err)
			return
		}
	}
	tmp := fmt.Sprintf("%s.tmp", path)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logger.Warn("freshness: failed to write state file", "path", path, "error", err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		logger.Warn("freshness: failed to replace state file", "path", path, "error", err)
	}
}
