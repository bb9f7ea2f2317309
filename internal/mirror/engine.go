package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livepush/livepush/internal/remote"
)

// Engine ties the descriptor set to the target group: one optional full
// reconciliation pass, then event-driven mirroring until cancellation.
type Engine struct {
	group  *remote.Group
	descs  []*Descriptor
	window time.Duration
}

func NewEngine(group *remote.Group, descs []*Descriptor) *Engine {
	return &Engine{
		group:  group,
		descs:  descs,
		window: DefaultWindow,
	}
}

// InitSync reconciles every descriptor against every target once. Targets
// run concurrently and independently: a fingerprinting failure aborts only
// that target's pass. Action failures within a batch are logged by the
// executor and never abort siblings.
func (e *Engine) InitSync(ctx context.Context) error {
	slog.Info("running initial sync", "watches", len(e.descs), "targets", len(e.group.Targets()))
	tstart := time.Now()

	// local snapshots are target-independent, compute them once
	for _, d := range e.descs {
		if _, err := d.LocalSnapshot(); err != nil {
			return fmt.Errorf("local snapshot %s: %w", d.Name, err)
		}
	}

	err := e.group.Broadcast(ctx, func(ctx context.Context, t *remote.Target) error {
		for _, d := range e.descs {
			rs, err := RemoteSnapshot(ctx, t, d)
			if err != nil {
				return err
			}
			actions := Diff(d, d.CachedSnapshot(), rs)
			if len(actions) == 0 {
				continue
			}
			slog.Info("reconciling", "watch", d.Name, "host", t.Host, "actions", len(actions))
			ExecuteBatch(ctx, t, actions)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	slog.Info("initial sync done", "took", time.Since(tstart))
	return ctx.Err()
}

// Watch runs the change monitor until cancellation, fanning out every
// coalesced batch to all targets.
func (e *Engine) Watch(ctx context.Context) error {
	notifier, err := WatchDescriptors(e.descs)
	if err != nil {
		return err
	}
	defer notifier.Close()

	monitor := NewMonitor(e.descs, notifier, e.window, func(ctx context.Context, batch []*Action) {
		err := e.group.Broadcast(ctx, func(ctx context.Context, t *remote.Target) error {
			ExecuteBatch(ctx, t, batch)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("batch dispatch", "error", err)
		}
	})

	return monitor.Run(ctx)
}
