package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultWindow is the coalescing window for change events.
	DefaultWindow = 200 * time.Millisecond

	batchQueueSize = 16
)

// ErrUnwatchedPath signals an event whose path maps to no configured
// descriptor. The monitor only watches configured roots, so this means the
// watch set and the notification source have diverged.
var ErrUnwatchedPath = errors.New("event path matches no watch descriptor")

// numeric file names are transient editor artifacts (vim, emacs)
var numericName = regexp.MustCompile(`^[0-9]+$`)

// Event is one raw file-system notification.
type Event struct {
	Path string // absolute
	Op   Op
}

// Notifier produces a stream of raw change events. The production
// implementation watches the file system; tests feed a channel directly.
type Notifier interface {
	Events() <-chan Event
	Close()
}

// DispatchFunc receives one coalesced batch of actions.
type DispatchFunc func(ctx context.Context, batch []*Action)

type batchKey struct {
	desc *Descriptor
	dir  string
	name string
}

// Monitor consumes raw change events, resolves each to its owning
// descriptor, filters noise, coalesces duplicates within a polling window
// and hands deduplicated batches to the dispatch function.
type Monitor struct {
	descs    []*Descriptor
	notifier Notifier
	window   time.Duration
	dispatch DispatchFunc
}

func NewMonitor(descs []*Descriptor, notifier Notifier, window time.Duration, dispatch DispatchFunc) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Monitor{
		descs:    descs,
		notifier: notifier,
		window:   window,
		dispatch: dispatch,
	}
}

// Run loops until the context is cancelled, the notifier closes, or an
// internal invariant is violated. Batch dispatch happens on a separate
// goroutine so that slow remote execution never stalls event ingestion;
// batches are handed off in the order they were coalesced.
func (m *Monitor) Run(ctx context.Context) error {
	queue := make(chan []*Action, batchQueueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for batch := range queue {
			m.dispatch(ctx, batch)
		}
	}()
	defer func() {
		close(queue)
		wg.Wait()
	}()

	pending := make(map[batchKey]*Action)
	var order []batchKey

	timer := time.NewTimer(m.window)
	if !timer.Stop() {
		<-timer.C
	}
	var windowC <-chan time.Time
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-m.notifier.Events():
			if !ok {
				return nil
			}
			action, err := m.eventAction(ev)
			if err != nil {
				return err
			}
			if action == nil {
				continue
			}

			key := batchKey{desc: action.Desc, dir: action.Dir, name: action.Name}
			if _, seen := pending[key]; !seen {
				order = append(order, key)
			}
			// last event kind wins within the window
			pending[key] = action

			if windowC == nil {
				timer.Reset(m.window)
				windowC = timer.C
			}

		case <-windowC:
			windowC = nil
			if len(pending) == 0 {
				continue
			}
			batch := make([]*Action, 0, len(pending))
			for _, key := range order {
				batch = append(batch, pending[key])
			}
			pending = make(map[batchKey]*Action)
			order = nil

			slog.Debug("dispatching batch", "actions", len(batch))
			queue <- batch
		}
	}
}

// eventAction maps one raw event to an action, or nil when the event is
// filtered out. An event owned by no descriptor is a fatal internal error.
func (m *Monitor) eventAction(ev Event) (*Action, error) {
	desc := m.owner(ev.Path)
	if desc == nil {
		if m.owned(ev.Path) {
			// under a configured root but outside the variant's scope
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnwatchedPath, ev.Path)
	}

	name := filepath.Base(ev.Path)
	if transientName(name) {
		return nil, nil
	}

	rel := desc.Rel(ev.Path)
	if desc.Ignores(rel) {
		return nil, nil
	}

	if ev.Op == OpDelete && !desc.Removal {
		return nil, nil
	}

	if ev.Op != OpDelete {
		info, err := os.Stat(ev.Path)
		if err != nil {
			// vanished between the event and now
			return nil, nil
		}
		if info.IsDir() {
			// directories materialize implicitly via OpCreate of their files
			return nil, nil
		}
	}

	return NewAction(desc, rel, ev.Op), nil
}

// owner resolves the descriptor for an absolute path: longest-root match
// among the descriptors whose variant scope includes the file name.
func (m *Monitor) owner(absPath string) *Descriptor {
	name := filepath.Base(absPath)
	var best *Descriptor
	for _, d := range m.descs {
		if !d.Owns(absPath) || !d.Matches(name) {
			continue
		}
		if best == nil || len(d.LocalRoot) > len(best.LocalRoot) {
			best = d
		}
	}
	return best
}

// owned reports whether any descriptor root contains the path at all.
func (m *Monitor) owned(absPath string) bool {
	for _, d := range m.descs {
		if d.Owns(absPath) {
			return true
		}
	}
	return false
}

func transientName(name string) bool {
	return strings.HasSuffix(name, "~") || numericName.MatchString(name)
}
