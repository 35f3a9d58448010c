package history

import (
	"path/filepath"
	"strings"
)

// Open returns the store for path: a JSON lines file for .json and .jsonl
// paths, an SQLite database otherwise. An empty path keeps history in memory.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl":
		return NewFileStore(path), nil
	}
	return OpenSQLiteStore(path)
}
