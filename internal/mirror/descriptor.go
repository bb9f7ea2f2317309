package mirror

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind selects the watch variant of a Descriptor. The set is closed; every
// per-variant operation dispatches on it explicitly.
type Kind int

const (
	// KindTree mirrors a directory recursively.
	KindTree Kind = iota
	// KindFile mirrors a single file 1:1.
	KindFile
	// KindGlob mirrors the files matching a pattern within one directory.
	KindGlob
)

func (k Kind) String() string {
	switch k {
	case KindTree:
		return "tree"
	case KindFile:
		return "file"
	case KindGlob:
		return "glob"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor pairs one watched local location with its remote counterpart.
// Immutable after construction, except for the cached local snapshot.
type Descriptor struct {
	// Name identifies the descriptor in logs.
	Name string

	Kind Kind

	// LocalRoot is the absolute local directory being watched. For KindFile
	// and KindGlob it is the directory containing the watched file(s).
	LocalRoot string

	// RemoteRoot is the remote directory that mirrors LocalRoot.
	RemoteRoot string

	// Pattern constrains file names: the exact file name for KindFile, a
	// glob for KindGlob, empty for KindTree.
	Pattern string

	// Removal enables deletion of remote-only files.
	Removal bool

	ignore *IgnoreList

	// cached local snapshot, refreshed by LocalSnapshot
	snapshot Snapshot
}

// NewDescriptor builds a descriptor and loads its ignore policy.
func NewDescriptor(name string, kind Kind, localRoot, remoteRoot, pattern string, removal bool) *Descriptor {
	d := &Descriptor{
		Name:       name,
		Kind:       kind,
		LocalRoot:  localRoot,
		RemoteRoot: remoteRoot,
		Pattern:    pattern,
		Removal:    removal,
		ignore:     NewIgnoreList(localRoot),
	}
	d.ignore.Load()
	return d
}

// Matches reports whether a file name is within this descriptor's scope.
// It checks the variant pattern only; ignore rules are applied separately.
func (d *Descriptor) Matches(name string) bool {
	switch d.Kind {
	case KindTree:
		return true
	case KindFile:
		return name == d.Pattern
	case KindGlob:
		ok, err := doublestar.Match(d.Pattern, name)
		return err == nil && ok
	default:
		return false
	}
}

// Ignores reports whether the path relative to LocalRoot is excluded by the
// ignore policy.
func (d *Descriptor) Ignores(relPath string) bool {
	return d.ignore.ShouldIgnore(relPath)
}

// Owns reports whether the absolute path falls under this descriptor's
// local root.
func (d *Descriptor) Owns(absPath string) bool {
	if absPath == d.LocalRoot {
		return true
	}
	return strings.HasPrefix(absPath, d.LocalRoot+"/")
}

// Rel returns absPath relative to LocalRoot. absPath must satisfy Owns.
func (d *Descriptor) Rel(absPath string) string {
	return strings.TrimPrefix(strings.TrimPrefix(absPath, d.LocalRoot), "/")
}

// RemotePath maps a path relative to LocalRoot onto the remote side.
func (d *Descriptor) RemotePath(relPath string) string {
	return path.Join(d.RemoteRoot, relPath)
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s[%s %s -> %s]", d.Name, d.Kind, d.LocalRoot, d.RemoteRoot)
}
