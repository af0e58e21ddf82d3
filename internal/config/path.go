// Package config resolves user-supplied filesystem paths. The CLI keeps its
// settings in viper; this package covers the keys that name files on disk,
// such as database.path.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading tilde against the home directory and expands
// $VAR environment references. Paths that need no expansion come back
// unchanged, as does a tilde when the home directory cannot be determined.
func ExpandPath(path string) string {
	switch {
	case path == "":
		return ""
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
