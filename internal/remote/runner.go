package remote

import (
	"context"
	"strings"
)

// Runner abstracts command execution and file transfer against one host.
// The production implementation speaks SSH/SFTP; tests substitute fakes.
type Runner interface {
	// Run executes a shell command on the host and returns its stdout.
	Run(ctx context.Context, cmd string) ([]byte, error)

	// Copy transfers local files into destDir on the host, overwriting.
	Copy(ctx context.Context, destDir string, files []string) error

	Close() error
}

// ShellQuote wraps s in single quotes so the remote shell treats it as a
// literal word. Embedded single quotes are escaped with the '\'' idiom.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
