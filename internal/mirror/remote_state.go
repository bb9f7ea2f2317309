package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/livepush/livepush/internal/remote"
)

// RemoteSnapshot fingerprints the descriptor's remote scope with a single
// traversal-and-hash command. It always executes, even in dry-run mode.
func RemoteSnapshot(ctx context.Context, t *remote.Target, d *Descriptor) (Snapshot, error) {
	out, err := t.Query(ctx, remoteHashCmd(d))
	if err != nil {
		return nil, fmt.Errorf("remote fingerprint %s on %s: %w", d.Name, t.Host, err)
	}

	prefix := ""
	if d.Kind == KindTree {
		prefix = d.RemoteRoot
	}
	return parseFingerprints(out, prefix), nil
}

// remoteHashCmd builds the remote fingerprinting command for a descriptor.
// Tree scopes traverse with find; file and glob scopes hash an explicit list,
// letting the remote shell expand the glob so remote-only matches are seen.
func remoteHashCmd(d *Descriptor) string {
	root := remote.ShellQuote(d.RemoteRoot)
	switch d.Kind {
	case KindFile:
		return fmt.Sprintf("cd %s 2>/dev/null && sha1sum -- %s 2>/dev/null; true", root, remote.ShellQuote(d.Pattern))
	case KindGlob:
		// pattern deliberately unquoted: expansion happens remotely
		return fmt.Sprintf("cd %s 2>/dev/null && sha1sum -- %s 2>/dev/null; true", root, d.Pattern)
	default:
		return fmt.Sprintf("find %s -type f -exec sha1sum {} + 2>/dev/null; true", root)
	}
}

// parseFingerprints parses `<hex-digest><whitespace><path>` lines as emitted
// by sha1sum. Paths are rewritten relative to stripPrefix when set (tree
// traversals return absolute paths). Malformed lines are skipped.
func parseFingerprints(out []byte, stripPrefix string) Snapshot {
	snap := make(Snapshot)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		cut := strings.IndexAny(line, " \t")
		if cut <= 0 {
			continue
		}
		digest := line[:cut]
		if !isHexDigest(digest) {
			continue
		}

		path := strings.TrimLeft(line[cut:], " \t")
		// sha1sum prefixes binary-mode paths with '*'
		path = strings.TrimPrefix(path, "*")
		if path == "" {
			continue
		}

		if stripPrefix != "" {
			if !strings.HasPrefix(path, stripPrefix+"/") {
				continue
			}
			path = strings.TrimPrefix(path, stripPrefix+"/")
		}
		path = strings.TrimPrefix(path, "./")

		snap[path] = strings.ToLower(digest)
	}
	return snap
}

func isHexDigest(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
