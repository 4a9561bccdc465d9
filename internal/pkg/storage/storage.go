package storage

import (
	"context"
	"io"
)

// Storage is the object-store contract the image slots write through.
// Puts overwrite: slot object names are deterministic, so re-uploading a slot
// replaces the previous binary instead of accumulating copies.
type Storage interface {
	// Put stores an object under key, replacing any existing object.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Delete removes an object. Deleting a key that does not exist is a
	// no-op, not an error; callers guess candidate names on cleanup.
	Delete(ctx context.Context, key string) error

	// PublicURL returns the public reference URL for an object key.
	PublicURL(key string) string
}
