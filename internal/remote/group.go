package remote

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group is the fixed set of configured targets for the process lifetime.
type Group struct {
	targets []*Target
}

func NewGroup(targets []*Target) *Group {
	return &Group{targets: targets}
}

func (g *Group) Targets() []*Target {
	return g.targets
}

// Broadcast runs fn against every target concurrently and waits for all of
// them. One target failing does not stop the others; the error returned
// reflects any failure instead of losing it.
func (g *Group) Broadcast(ctx context.Context, fn func(ctx context.Context, t *Target) error) error {
	var eg errgroup.Group
	for _, target := range g.targets {
		target := target
		eg.Go(func() error {
			return fn(ctx, target)
		})
	}
	return eg.Wait()
}

// Close tears down every target connection.
func (g *Group) Close() {
	for _, t := range g.targets {
		_ = t.Close()
	}
}
