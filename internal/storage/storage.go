package storage

import (
	"context"
	"io"
)

// ObjectStorage define las operaciones comunes a los backends de avatares.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL devuelve la dirección pública del objeto.
	URL(key string) string
}
