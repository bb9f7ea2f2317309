package mirror

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha1Hex(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestLocalSnapshot_Tree(t *testing.T) {
	root := t.TempDir()
	d := NewDescriptor("app", KindTree, root, "/srv/app", "", false)

	writeLocal(t, d, "a.py", "aaa")
	writeLocal(t, d, "sub/deep/b.py", "bbb")
	// all of these must be excluded
	writeLocal(t, d, "c.py~", "backup")
	writeLocal(t, d, "notes.swp", "swap")
	writeLocal(t, d, ".git/config", "vcs")
	writeLocal(t, d, "__pycache__/a.cpython-312.pyc", "compiled")

	snap, err := d.LocalSnapshot()
	require.NoError(t, err)

	assert.Equal(t, Snapshot{
		"a.py":          sha1Hex("aaa"),
		"sub/deep/b.py": sha1Hex("bbb"),
	}, snap)
	assert.Equal(t, snap, d.CachedSnapshot())
}

func TestLocalSnapshot_File(t *testing.T) {
	root := t.TempDir()
	d := NewDescriptor("app.conf", KindFile, root, "/etc/app", "app.conf", false)

	// file not existing yet is not an error
	snap, err := d.LocalSnapshot()
	require.NoError(t, err)
	assert.Empty(t, snap)

	writeLocal(t, d, "app.conf", "key=value")
	writeLocal(t, d, "other.conf", "unrelated")

	snap, err = d.LocalSnapshot()
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"app.conf": sha1Hex("key=value")}, snap)
}

func TestLocalSnapshot_Glob(t *testing.T) {
	root := t.TempDir()
	d := NewDescriptor("*.py", KindGlob, root, "/srv/src", "*.py", false)

	writeLocal(t, d, "a.py", "aaa")
	writeLocal(t, d, "b.py", "bbb")
	writeLocal(t, d, "readme.txt", "not matched")
	writeLocal(t, d, "sub/c.py", "not matched, one level down")

	snap, err := d.LocalSnapshot()
	require.NoError(t, err)
	assert.Equal(t, Snapshot{
		"a.py": sha1Hex("aaa"),
		"b.py": sha1Hex("bbb"),
	}, snap)
}

func TestDescriptorMatches(t *testing.T) {
	tree := NewDescriptor("t", KindTree, t.TempDir(), "/r", "", false)
	file := NewDescriptor("f", KindFile, t.TempDir(), "/r", "app.conf", false)
	glob := NewDescriptor("g", KindGlob, t.TempDir(), "/r", "*.py", false)

	assert.True(t, tree.Matches("anything.txt"))
	assert.True(t, file.Matches("app.conf"))
	assert.False(t, file.Matches("other.conf"))
	assert.True(t, glob.Matches("main.py"))
	assert.False(t, glob.Matches("main.pyc"))
}

func TestDescriptorOwnsAndRel(t *testing.T) {
	root := t.TempDir()
	d := NewDescriptor("t", KindTree, root, "/r", "", false)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))

	assert.True(t, d.Owns(filepath.Join(root, "sub", "x.py")))
	assert.False(t, d.Owns(root+"-sibling/x.py"))
	assert.Equal(t, "sub/x.py", d.Rel(filepath.Join(root, "sub", "x.py")))
}
