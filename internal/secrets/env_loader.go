package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnvLoader reads the named environment variables. Unset variables are omitted.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

// DirLoader reads the named keys from files in dir, one secret per file, the way
// container runtimes mount them under /run/secrets. A missing directory or file is not an
// error. Trailing newlines are trimmed.
func DirLoader(dir string, keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		if dir == "" {
			return vals, nil
		}
		for _, k := range keys {
			raw, err := os.ReadFile(filepath.Join(dir, k))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("read secret %s: %w", k, err)
			}
			if v := strings.TrimRight(string(raw), "\r\n"); v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}
