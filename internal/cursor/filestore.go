package cursor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryInterval = 50 * time.Millisecond

// FileStore persists breadcrumbs to a local file, writing to a temp file
// and renaming into place so a reader never observes a partial write. A
// gofrs/flock advisory lock additionally guards against two chainstream
// processes racing on the same path, the same atomic-rename pattern used
// for key files in node keystores.
type FileStore struct {
	Path string
}

func (f *FileStore) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cursor/filestore: read %s: %w", f.Path, err)
	}
	return data, nil
}

func (f *FileStore) Save(ctx context.Context, data []byte) error {
	lock := flock.New(f.Path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fmt.Errorf("cursor/filestore: lock %s: %w", f.Path, err)
	}
	if !locked {
		return fmt.Errorf("cursor/filestore: could not acquire lock on %s", f.Path)
	}
	defer lock.Unlock()

	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".breadcrumbs-*.tmp")
	if err != nil {
		return fmt.Errorf("cursor/filestore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cursor/filestore: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cursor/filestore: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cursor/filestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		return fmt.Errorf("cursor/filestore: rename into place: %w", err)
	}
	return nil
}
