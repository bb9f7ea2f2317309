package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepush/livepush/internal/mirror"
)

func TestOptionsValidate(t *testing.T) {
	valid := &Options{Mirrors: []string{"a:/b"}, Targets: []string{"host"}, Workers: 4}
	require.NoError(t, valid.Validate())

	assert.Error(t, (&Options{Targets: []string{"host"}, Workers: 1}).Validate())
	assert.Error(t, (&Options{Mirrors: []string{"a:/b"}, Workers: 1}).Validate())
	assert.Error(t, (&Options{Mirrors: []string{"a:/b"}, Targets: []string{"host"}, Workers: 0}).Validate())
}

func TestParseMirrorSpec_TreeVariant(t *testing.T) {
	dir := t.TempDir()

	d, err := parseMirrorSpec(dir + ":/srv/app")
	require.NoError(t, err)
	assert.Equal(t, mirror.KindTree, d.Kind)
	assert.Equal(t, dir, d.LocalRoot)
	assert.Equal(t, "/srv/app", d.RemoteRoot)
	assert.False(t, d.Removal)
}

func TestParseMirrorSpec_FileVariant(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.conf")
	require.NoError(t, os.WriteFile(file, []byte("k=v"), 0o644))

	d, err := parseMirrorSpec(file + ":/etc/app")
	require.NoError(t, err)
	assert.Equal(t, mirror.KindFile, d.Kind)
	assert.Equal(t, dir, d.LocalRoot)
	assert.Equal(t, "app.conf", d.Pattern)
	assert.Equal(t, "/etc/app", d.RemoteRoot)
}

func TestParseMirrorSpec_GlobVariant(t *testing.T) {
	dir := t.TempDir()

	d, err := parseMirrorSpec(filepath.Join(dir, "*.py") + ":/srv/src")
	require.NoError(t, err)
	assert.Equal(t, mirror.KindGlob, d.Kind)
	assert.Equal(t, dir, d.LocalRoot)
	assert.Equal(t, "*.py", d.Pattern)
}

func TestParseMirrorSpec_RemovalFlag(t *testing.T) {
	dir := t.TempDir()

	d, err := parseMirrorSpec(dir + ":/srv/app:d")
	require.NoError(t, err)
	assert.True(t, d.Removal)

	_, err = parseMirrorSpec(dir + ":/srv/app:z")
	assert.ErrorContains(t, err, "unknown mirror flag")
}

func TestParseMirrorSpec_Errors(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		spec string
	}{
		{"missing remote", dir},
		{"too many fields", dir + ":/srv/app:d:x"},
		{"relative remote", dir + ":srv/app"},
		{"nonexistent local", filepath.Join(dir, "missing") + ":/srv/app"},
		{"glob under nonexistent dir", filepath.Join(dir, "nope", "*.py") + ":/srv/src"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseMirrorSpec(tc.spec)
			assert.Error(t, err)
		})
	}
}

func TestDescriptors_NestedTreesRejected(t *testing.T) {
	outer := t.TempDir()
	inner := filepath.Join(outer, "sub")
	require.NoError(t, os.MkdirAll(inner, 0o755))

	opts := &Options{
		Mirrors: []string{outer + ":/srv/a", inner + ":/srv/b"},
		Targets: []string{"host"},
		Workers: 1,
	}
	_, err := opts.Descriptors()
	assert.ErrorContains(t, err, "nested watches")
}

func TestDescriptors_TreeContainingFileRejected(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "sub", "app.conf")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("k=v"), 0o644))

	opts := &Options{
		Mirrors: []string{root + ":/srv/a", file + ":/etc/app"},
		Targets: []string{"host"},
		Workers: 1,
	}
	_, err := opts.Descriptors()
	assert.ErrorContains(t, err, "nested watches")
}

func TestDescriptors_SiblingGlobsAllowed(t *testing.T) {
	dir := t.TempDir()

	opts := &Options{
		Mirrors: []string{
			filepath.Join(dir, "*.py") + ":/srv/py",
			filepath.Join(dir, "*.sh") + ":/srv/sh",
		},
		Targets: []string{"host"},
		Workers: 1,
	}
	descs, err := opts.Descriptors()
	require.NoError(t, err)
	assert.Len(t, descs, 2)
}

func TestDescriptors_SeparateRootsAllowed(t *testing.T) {
	opts := &Options{
		Mirrors: []string{t.TempDir() + ":/srv/a:d", t.TempDir() + ":/srv/b"},
		Targets: []string{"host"},
		Workers: 1,
	}
	descs, err := opts.Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.True(t, descs[0].Removal)
	assert.False(t, descs[1].Removal)
}
