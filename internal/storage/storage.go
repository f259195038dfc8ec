package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ObjectStore is the read side of the dataset store. The analytical parquet
// files are produced elsewhere; this service only fetches them.
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// Download materializes an object into destPath, creating parent directories.
// The file is written to a temporary sibling first and renamed into place.
func Download(ctx context.Context, store ObjectStore, key, destPath string) error {
	if store == nil {
		return fmt.Errorf("object store is required")
	}
	reader, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create directory for %q: %w", destPath, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", destPath, err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("download object %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file for %q: %w", destPath, err)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move object %q into place: %w", key, err)
	}
	return nil
}
