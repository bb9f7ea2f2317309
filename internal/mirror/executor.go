package mirror

import (
	"context"
	"log/slog"
	"sync"

	"github.com/livepush/livepush/internal/remote"
)

// ExecuteBatch runs a batch of actions against one target. With a worker
// pool of 1 actions run sequentially in batch order; otherwise they are
// distributed across the pool with no ordering guarantee, which is safe
// because actions within one batch touch disjoint (dir, name) keys.
//
// A failing action is logged and does not abort its siblings: every action
// is idempotent, so the next event or init pass converges the file again.
func ExecuteBatch(ctx context.Context, t *remote.Target, batch []*Action) {
	if len(batch) == 0 {
		return
	}

	workers := t.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(batch) {
		workers = len(batch)
	}

	if workers == 1 {
		for _, a := range batch {
			runAction(ctx, t, a)
		}
		return
	}

	actions := make(chan *Action)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range actions {
				runAction(ctx, t, a)
			}
		}()
	}

	for _, a := range batch {
		actions <- a
	}
	close(actions)
	wg.Wait()
}

func runAction(ctx context.Context, t *remote.Target, a *Action) {
	if err := ctx.Err(); err != nil {
		return
	}
	if err := a.Apply(ctx, t); err != nil {
		slog.Error("action failed", "host", t.Host, "action", a, "error", err)
	}
}
