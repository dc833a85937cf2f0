// Package storagecap is the byte-storage capability backing the cache
// (pkg/cachestore implements it) and any future download/artifact sink.
package storagecap

import "context"

// Storage is a content-addressed byte store.
type Storage interface {
	ReadBytes(ctx context.Context, key string) ([]byte, error)
	WriteBytes(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}
