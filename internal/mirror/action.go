package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/livepush/livepush/internal/remote"
)

// Op is the kind of remote work an Action performs.
type Op int

const (
	// OpCreate uploads a file absent on the remote, ensuring its parent
	// directory first.
	OpCreate Op = iota
	// OpModify uploads a file whose remote fingerprint differs. Uploads
	// always overwrite, so no directory creation is needed.
	OpModify
	// OpDelete removes a remote file absent locally.
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Action is one immutable unit of remote work, bound to a descriptor and a
// path relative to its root.
type Action struct {
	Desc *Descriptor
	Dir  string // relative directory, "" for the root
	Name string
	Op   Op
}

// NewAction builds an action for a path relative to the descriptor root.
func NewAction(d *Descriptor, relPath string, op Op) *Action {
	dir, name := path.Split(relPath)
	return &Action{
		Desc: d,
		Dir:  strings.TrimSuffix(dir, "/"),
		Name: name,
		Op:   op,
	}
}

// RelPath returns the action's path relative to the descriptor root.
func (a *Action) RelPath() string {
	return path.Join(a.Dir, a.Name)
}

// LocalPath returns the absolute local path.
func (a *Action) LocalPath() string {
	return filepath.Join(a.Desc.LocalRoot, a.Dir, a.Name)
}

// RemoteDir returns the remote directory containing the file.
func (a *Action) RemoteDir() string {
	return path.Join(a.Desc.RemoteRoot, a.Dir)
}

// RemoteFile returns the absolute remote file path.
func (a *Action) RemoteFile() string {
	return path.Join(a.RemoteDir(), a.Name)
}

// Apply performs the action against one target. All mutating calls honor the
// target's dry-run flag.
func (a *Action) Apply(ctx context.Context, t *remote.Target) error {
	switch a.Op {
	case OpCreate:
		if err := t.Exec(ctx, "mkdir -p -- "+remote.ShellQuote(a.RemoteDir())); err != nil {
			return fmt.Errorf("mkdir %s:%s: %w", t.Host, a.RemoteDir(), err)
		}
		return a.upload(ctx, t)
	case OpModify:
		return a.upload(ctx, t)
	case OpDelete:
		if err := t.Exec(ctx, "rm -f -- "+remote.ShellQuote(a.RemoteFile())); err != nil {
			return fmt.Errorf("rm %s:%s: %w", t.Host, a.RemoteFile(), err)
		}
		slog.Info("deleted", "watch", a.Desc.Name, "host", t.Host, "path", a.RelPath())
		return nil
	default:
		return fmt.Errorf("unknown action op %d", a.Op)
	}
}

func (a *Action) upload(ctx context.Context, t *remote.Target) error {
	local := a.LocalPath()
	info, err := os.Stat(local)
	if err != nil {
		// the file may have been removed since the action was built; the
		// next event or init pass will converge it
		return fmt.Errorf("stat %s: %w", local, err)
	}

	if err := t.Push(ctx, a.RemoteDir(), []string{local}); err != nil {
		return fmt.Errorf("copy %s to %s:%s: %w", local, t.Host, a.RemoteDir(), err)
	}

	slog.Info("uploaded", "watch", a.Desc.Name, "host", t.Host, "path", a.RelPath(), "size", humanize.Bytes(uint64(info.Size())))
	return nil
}

func (a *Action) String() string {
	return fmt.Sprintf("%s %s", a.Op, a.RelPath())
}
