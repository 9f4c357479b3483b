package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu     sync.Mutex
	latest time.Time
	err    error
}

func (f *fakeSource) LatestMutation(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.err
}

func (f *fakeSource) set(t time.Time) {
	f.mu.Lock()
	f.latest = t
	f.mu.Unlock()
}

func TestWatcherNotifiesOnChange(t *testing.T) {
	source := &fakeSource{latest: time.Now()}
	watcher := NewWatcher(source, time.Hour)

	notified := make(chan struct{}, 4)
	cancel := watcher.Subscribe(func() { notified <- struct{}{} })
	t.Cleanup(cancel)

	ctx := context.Background()
	watcher.poll(ctx)
	select {
	case <-notified:
		t.Fatal("baseline poll should not notify")
	default:
	}

	source.set(time.Now().Add(time.Minute))
	watcher.poll(ctx)
	select {
	case <-notified:
	default:
		t.Fatal("expected notification after mutation")
	}

	watcher.poll(ctx)
	select {
	case <-notified:
		t.Fatal("unchanged source should not notify")
	default:
	}
}

func TestWatcherIgnoresPollErrors(t *testing.T) {
	source := &fakeSource{latest: time.Now(), err: errors.New("read failed")}
	watcher := NewWatcher(source, time.Hour)
	notified := make(chan struct{}, 1)
	cancel := watcher.Subscribe(func() { notified <- struct{}{} })
	t.Cleanup(cancel)

	watcher.poll(context.Background())
	select {
	case <-notified:
		t.Fatal("errored poll should not notify")
	default:
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	source := &fakeSource{latest: time.Now()}
	watcher := NewWatcher(source, time.Hour)
	calls := 0
	cancel := watcher.Subscribe(func() { calls++ })

	ctx := context.Background()
	watcher.poll(ctx)
	cancel()
	cancel()

	source.set(time.Now().Add(time.Minute))
	watcher.poll(ctx)
	if calls != 0 {
		t.Fatalf("expected no calls after unsubscribe, got %d", calls)
	}
}

func TestCloseStopsLoop(t *testing.T) {
	source := &fakeSource{latest: time.Now()}
	watcher := NewWatcher(source, 10*time.Millisecond)
	watcher.Start(context.Background())
	watcher.Close()
	watcher.Close()
}
