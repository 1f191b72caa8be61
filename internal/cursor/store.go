// Package cursor implements the cursor stage: tracking chain points as
// they flow past, and periodically persisting them as breadcrumbs so a
// restart can resume near where it left off.
package cursor

import "context"

// Store is the persistence backend for a breadcrumbs blob: a file path or
// a keyed remote store are the two backend families.
type Store interface {
	// Load returns the previously-saved breadcrumbs blob, or (nil, nil) if
	// none exists yet.
	Load(ctx context.Context) ([]byte, error)
	// Save atomically replaces the persisted blob.
	Save(ctx context.Context, data []byte) error
}
