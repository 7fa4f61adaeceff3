// Package storage uploads analyzed videos to remote object storage for
// durable access.
package storage

import "context"

// UploadResult describes where an uploaded object landed.
type UploadResult struct {
	Key  string
	URL  string
	Size int64
}

// ObjectStorage is implemented by remote object stores.
type ObjectStorage interface {
	// Upload pushes the local file at path and returns its remote location.
	Upload(ctx context.Context, path string) (*UploadResult, error)
	// Delete removes a previously uploaded object by key.
	Delete(ctx context.Context, key string) error
	// Verify checks that the configured bucket is reachable.
	Verify(ctx context.Context) error
}
