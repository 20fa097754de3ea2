package out

import "context"

// BlobStore fetches and publishes split files in object storage.
type BlobStore interface {
	// Fetch returns the object body. Missing objects yield a NotFound AppError.
	Fetch(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, body []byte) error
}
