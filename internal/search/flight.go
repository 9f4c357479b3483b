package search

import (
	"context"
	"sync"
)

// flightGroup collapses concurrent sync invocations onto a single in-flight
// run. Late callers wait for the shared result instead of re-triggering the
// dirty-check and duplicating upserts.
type flightGroup struct {
	mu   sync.Mutex
	call *flightCall
}

type flightCall struct {
	done chan struct{}
	res  SyncResult
	err  error
}

func (g *flightGroup) do(ctx context.Context, fn func(context.Context) (SyncResult, error)) (SyncResult, error) {
	g.mu.Lock()
	if g.call != nil {
		call := g.call
		g.mu.Unlock()
		select {
		case <-call.done:
			return call.res, call.err
		case <-ctx.Done():
			return SyncResult{}, ctx.Err()
		}
	}
	call := &flightCall{done: make(chan struct{})}
	g.call = call
	g.mu.Unlock()

	call.res, call.err = fn(ctx)

	g.mu.Lock()
	g.call = nil
	g.mu.Unlock()
	close(call.done)
	return call.res, call.err
}
