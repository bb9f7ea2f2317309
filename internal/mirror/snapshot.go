package mirror

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Snapshot maps a path relative to a descriptor root to the hex SHA-1 of the
// file's content. SHA-1 matches the remote side's sha1sum output.
type Snapshot map[string]string

// LocalSnapshot walks the descriptor's local scope, hashes file contents and
// caches the result on the descriptor.
func (d *Descriptor) LocalSnapshot() (Snapshot, error) {
	snap := make(Snapshot)

	switch d.Kind {
	case KindTree:
		err := filepath.WalkDir(d.LocalRoot, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				// files can vanish mid-walk
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			rel := d.Rel(p)
			if entry.IsDir() {
				if rel != "" && d.Ignores(rel+"/") {
					return filepath.SkipDir
				}
				return nil
			}
			if !entry.Type().IsRegular() || d.Ignores(rel) {
				return nil
			}
			digest, err := hashFile(p)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			snap[rel] = digest
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", d.LocalRoot, err)
		}

	case KindFile:
		p := filepath.Join(d.LocalRoot, d.Pattern)
		digest, err := hashFile(p)
		if err != nil {
			// the watched file may legitimately not exist right now
			if os.IsNotExist(err) {
				break
			}
			return nil, err
		}
		snap[d.Pattern] = digest

	case KindGlob:
		matches, err := doublestar.Glob(os.DirFS(d.LocalRoot), d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s in %s: %w", d.Pattern, d.LocalRoot, err)
		}
		for _, rel := range matches {
			if d.Ignores(rel) {
				continue
			}
			p := filepath.Join(d.LocalRoot, rel)
			info, err := os.Stat(p)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			digest, err := hashFile(p)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, err
			}
			snap[rel] = digest
		}
	}

	d.snapshot = snap
	slog.Debug("local snapshot", "watch", d.Name, "files", len(snap))
	return snap, nil
}

// CachedSnapshot returns the last computed local snapshot, which may be nil.
func (d *Descriptor) CachedSnapshot() Snapshot {
	return d.snapshot
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha1.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
