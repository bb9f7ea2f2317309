package mirror

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is read from each watched tree root on top of the built-in
// rules.
const IgnoreFileName = ".livepushignore"

var defaultIgnoreLines = []string{
	// version control metadata
	".git/",
	".hg/",
	".svn/",
	// editor swap and backup artifacts
	"*~",
	"*.swp",
	"*.swo",
	".#*",
	"#*#",
	// compiled artifacts
	"__pycache__/",
	"*.py[cod]",
	"*.o",
	"*.class",
	// OS noise
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList decides which paths are excluded from snapshots and events.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

// Load compiles the built-in rules plus the optional ignore file at the
// base directory.
func (l *IgnoreList) Load() {
	ignorePath := filepath.Join(l.baseDir, IgnoreFileName)
	ignoreLines := defaultIgnoreLines

	file, err := os.Open(ignorePath)
	if err == nil {
		defer file.Close()

		rules := 0
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := scanner.Text()
			if line != "" {
				ignoreLines = append(ignoreLines, line)
				rules++
			}
		}
		if err := scanner.Err(); err != nil {
			slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
		} else {
			slog.Info("loaded ignore file", "path", ignorePath, "rules", rules)
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

func (l *IgnoreList) ShouldIgnore(path string) bool {
	return l.ignore.MatchesPath(path)
}
