package config

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/livepush/livepush/internal/mirror"
	"github.com/livepush/livepush/internal/utils"
)

// Mirror flag letters accepted after the second colon of a mapping spec.
const (
	// FlagRemoval enables deletion of remote-only files for this mapping.
	FlagRemoval = 'd'
)

// Options is the validated process configuration. All of it is fixed for
// the process lifetime.
type Options struct {
	// Mirrors are the raw `local:remote[:flags]` mapping specs.
	Mirrors []string

	// Targets are the remote addresses ("host", "user@host[:port]").
	Targets []string

	// InitSync runs one full reconciliation pass before monitoring.
	InitSync bool

	// DryRun logs mutating remote operations instead of executing them.
	DryRun bool

	// Workers bounds concurrent actions per target within one batch.
	Workers int

	Verbose bool

	// SSHUser overrides the login user for all targets.
	SSHUser string

	// InsecureHostKey skips known_hosts verification.
	InsecureHostKey bool
}

func (o *Options) Validate() error {
	if len(o.Mirrors) == 0 {
		return errors.New("at least one --mirror mapping is required")
	}
	if len(o.Targets) == 0 {
		return errors.New("at least one target address is required")
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", o.Workers)
	}
	return nil
}

// Descriptors resolves every mapping spec into a watch descriptor. Any
// unresolvable mapping is a fatal configuration error, reported before any
// remote contact is attempted.
func (o *Options) Descriptors() ([]*mirror.Descriptor, error) {
	descs := make([]*mirror.Descriptor, 0, len(o.Mirrors))
	for _, spec := range o.Mirrors {
		d, err := parseMirrorSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("mirror spec %q: %w", spec, err)
		}
		descs = append(descs, d)
	}

	if err := validateNesting(descs); err != nil {
		return nil, err
	}
	return descs, nil
}

// parseMirrorSpec parses `local:remote[:flags]` and infers the watch
// variant: directory -> tree, file -> file, glob pattern -> glob.
func parseMirrorSpec(spec string) (*mirror.Descriptor, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, errors.New("want local:remote or local:remote:flags")
	}

	local, remotePath := parts[0], parts[1]
	removal := false
	if len(parts) == 3 {
		for _, flag := range parts[2] {
			switch flag {
			case FlagRemoval:
				removal = true
			default:
				return nil, fmt.Errorf("unknown mirror flag %q", string(flag))
			}
		}
	}

	if !path.IsAbs(remotePath) {
		return nil, fmt.Errorf("remote path %q must be absolute", remotePath)
	}
	remotePath = path.Clean(remotePath)

	abs, err := utils.ResolvePath(local)
	if err != nil {
		return nil, err
	}

	switch {
	case utils.DirExists(abs):
		return mirror.NewDescriptor(filepath.Base(abs), mirror.KindTree, abs, remotePath, "", removal), nil

	case utils.FileExists(abs):
		root := filepath.Dir(abs)
		name := filepath.Base(abs)
		return mirror.NewDescriptor(name, mirror.KindFile, root, remotePath, name, removal), nil

	default:
		root := filepath.Dir(abs)
		pattern := filepath.Base(abs)
		if !hasGlobMeta(pattern) || !utils.DirExists(root) {
			return nil, fmt.Errorf("local path %q is neither a file, directory, nor glob", local)
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
		return mirror.NewDescriptor(pattern, mirror.KindGlob, root, remotePath, pattern, removal), nil
	}
}

// validateNesting rejects configurations where a tree watch contains
// another watch's root. Ownership of an event path would be ambiguous, so
// the configuration is refused up front rather than left undefined. File
// and glob watches only claim matching names in their own directory, so
// they may share a root with each other.
func validateNesting(descs []*mirror.Descriptor) error {
	for i, a := range descs {
		for _, b := range descs[i+1:] {
			if a.LocalRoot == b.LocalRoot {
				if a.Kind == mirror.KindTree || b.Kind == mirror.KindTree {
					return fmt.Errorf("nested watches: %s and %s share a root", a.Name, b.Name)
				}
				continue
			}
			if a.Kind == mirror.KindTree && a.Owns(b.LocalRoot) {
				return fmt.Errorf("nested watches: %s contains %s", a.Name, b.Name)
			}
			if b.Kind == mirror.KindTree && b.Owns(a.LocalRoot) {
				return fmt.Errorf("nested watches: %s contains %s", b.Name, a.Name)
			}
		}
	}
	return nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
