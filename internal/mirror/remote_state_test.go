package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFingerprints(t *testing.T) {
	out := []byte(
		"da39a3ee5e6b4b0d3255bfef95601890afd80709  /srv/app/a.py\n" +
			"356a192b7913b04c54574d18c28d46e6395428ab  /srv/app/sub/b with space.py\n" +
			"DA4B9237BACCCDF19C0760CAB7AEC4A8359010B0 */srv/app/bin.dat\n" +
			"sha1sum: /srv/app/gone.py: No such file or directory\n" +
			"not-a-digest  /srv/app/x.py\n" +
			"\n",
	)

	snap := parseFingerprints(out, "/srv/app")
	assert.Equal(t, Snapshot{
		"a.py":                "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"sub/b with space.py": "356a192b7913b04c54574d18c28d46e6395428ab",
		"bin.dat":             "da4b9237bacccdf19c0760cab7aec4a8359010b0",
	}, snap)
}

func TestParseFingerprints_RelativePaths(t *testing.T) {
	out := []byte(
		"da39a3ee5e6b4b0d3255bfef95601890afd80709  app.conf\n" +
			"356a192b7913b04c54574d18c28d46e6395428ab  ./other.conf\n",
	)

	snap := parseFingerprints(out, "")
	assert.Equal(t, Snapshot{
		"app.conf":   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"other.conf": "356a192b7913b04c54574d18c28d46e6395428ab",
	}, snap)
}

func TestParseFingerprints_OutsidePrefixSkipped(t *testing.T) {
	out := []byte("da39a3ee5e6b4b0d3255bfef95601890afd80709  /etc/passwd\n")
	assert.Empty(t, parseFingerprints(out, "/srv/app"))
}

func TestRemoteHashCmd(t *testing.T) {
	tree := NewDescriptor("app", KindTree, "/tmp/app", "/srv/app", "", false)
	assert.Contains(t, remoteHashCmd(tree), "find '/srv/app' -type f")
	assert.Contains(t, remoteHashCmd(tree), "sha1sum")

	file := NewDescriptor("conf", KindFile, "/tmp/etc", "/srv/etc", "app.conf", false)
	assert.Contains(t, remoteHashCmd(file), "cd '/srv/etc'")
	assert.Contains(t, remoteHashCmd(file), "'app.conf'")

	// glob patterns stay unquoted so the remote shell expands them
	glob := NewDescriptor("py", KindGlob, "/tmp/src", "/srv/src", "*.py", false)
	assert.Contains(t, remoteHashCmd(glob), "sha1sum -- *.py")
}
