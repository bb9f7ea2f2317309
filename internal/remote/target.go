package remote

import (
	"context"
	"log/slog"
	"strings"
)

// Target is one addressable mirror destination. It is stateless between
// batches; all execution goes through its Runner.
type Target struct {
	// Host is the address as given on the command line, used for logging.
	Host string

	// Runner executes commands and copies files on the host.
	Runner Runner

	// Workers bounds concurrent actions within one batch. 1 means strictly
	// sequential execution in batch order.
	Workers int

	// DryRun logs mutating commands instead of executing them. Read-only
	// queries still execute.
	DryRun bool

	Verbose bool
}

// Query runs a read-only command and returns its stdout. Queries are never
// skipped in dry-run mode: fingerprinting must see real remote state.
func (t *Target) Query(ctx context.Context, cmd string) ([]byte, error) {
	if t.Verbose {
		slog.Debug("remote query", "host", t.Host, "cmd", cmd)
	}
	return t.Runner.Run(ctx, cmd)
}

// Exec runs a mutating command, honoring dry-run.
func (t *Target) Exec(ctx context.Context, cmd string) error {
	if t.DryRun {
		slog.Info("dry-run: skip exec", "host", t.Host, "cmd", cmd)
		return nil
	}
	if t.Verbose {
		slog.Debug("remote exec", "host", t.Host, "cmd", cmd)
	}
	_, err := t.Runner.Run(ctx, cmd)
	return err
}

// Push copies local files into destDir on the target, honoring dry-run.
func (t *Target) Push(ctx context.Context, destDir string, files []string) error {
	if t.DryRun {
		slog.Info("dry-run: skip copy", "host", t.Host, "dest", destDir, "files", strings.Join(files, " "))
		return nil
	}
	if t.Verbose {
		slog.Debug("remote copy", "host", t.Host, "dest", destDir, "count", len(files))
	}
	return t.Runner.Copy(ctx, destDir, files)
}

func (t *Target) Close() error {
	return t.Runner.Close()
}
