package core

import "context"

// ObjectStore is any service that can hold uploaded files and serve them publicly.
type ObjectStore interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}
