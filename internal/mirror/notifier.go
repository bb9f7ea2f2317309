package mirror

import (
	"fmt"
	"log/slog"

	"github.com/rjeczalik/notify"
)

const eventBufferSize = 64

// fsNotifier adapts rjeczalik/notify to the Notifier interface.
type fsNotifier struct {
	raw  chan notify.EventInfo
	out  chan Event
	done chan struct{}
}

// WatchDescriptors registers file-system watches for every descriptor root.
// Tree roots are watched recursively; file and glob roots watch just their
// containing directory.
func WatchDescriptors(descs []*Descriptor) (Notifier, error) {
	raw := make(chan notify.EventInfo, eventBufferSize)

	for _, d := range descs {
		watchPath := d.LocalRoot
		if d.Kind == KindTree {
			watchPath += "/..."
		}
		if err := notify.Watch(watchPath, raw, notify.Create|notify.Write|notify.Remove|notify.Rename); err != nil {
			notify.Stop(raw)
			return nil, fmt.Errorf("watch %s: %w", d.LocalRoot, err)
		}
		slog.Info("watching", "watch", d.Name, "kind", d.Kind, "path", d.LocalRoot)
	}

	n := &fsNotifier{
		raw:  raw,
		out:  make(chan Event, eventBufferSize),
		done: make(chan struct{}),
	}
	go n.translate()
	return n, nil
}

func (n *fsNotifier) Events() <-chan Event {
	return n.out
}

func (n *fsNotifier) Close() {
	notify.Stop(n.raw)
	close(n.done)
}

func (n *fsNotifier) translate() {
	defer close(n.out)
	for {
		select {
		case <-n.done:
			return
		case ei, ok := <-n.raw:
			if !ok {
				return
			}
			ev := Event{Path: ei.Path(), Op: eventOp(ei.Event())}
			select {
			case n.out <- ev:
			default:
				slog.Warn("event dropped", "reason", "channel full", "path", ev.Path)
			}
		}
	}
}

func eventOp(e notify.Event) Op {
	switch {
	case e&notify.Create != 0:
		return OpCreate
	case e&(notify.Remove|notify.Rename) != 0:
		return OpDelete
	default:
		return OpModify
	}
}
