// Package storage is the boundary to the external file store. The engine
// only ever holds opaque path strings; bytes are fetched here and nowhere
// else.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FileStore interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// LocalFileStore serves photo references from a directory. Deployments
// backed by object storage swap in their own FileStore.
type LocalFileStore struct {
	Root string
}

func (s LocalFileStore) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.Root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.Root)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("load %q: path escapes storage root", path)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", path, err)
	}
	return data, nil
}
