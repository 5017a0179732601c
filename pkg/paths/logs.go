package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvPagewatchLogDir = "PAGEWATCH_LOG_DIR"

// LogsBaseDir returns the directory log files are written under. The
// PAGEWATCH_LOG_DIR environment variable overrides the default, which is
// .pagewatch/logs relative to the working directory.
func LogsBaseDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvPagewatchLogDir)); dir != "" {
		return filepath.Clean(ExpandHome(dir))
	}
	return filepath.Join(".pagewatch", "logs")
}

// LogsBaseDirForWorkdir anchors a relative logs dir to the given workdir.
func LogsBaseDirForWorkdir(workdir string) string {
	base := LogsBaseDir()
	if filepath.IsAbs(base) || strings.TrimSpace(workdir) == "" {
		return base
	}
	return filepath.Join(workdir, base)
}

// ExpandHome expands a leading ~ or ~/ to the user's home directory. Paths
// that cannot be expanded are returned unchanged.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
