// Package blob abstracts object storage so services can be tested against
// an in-memory fake while production runs on MinIO.
package blob

import (
	"context"
	"io"
)

type Store interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Remove(ctx context.Context, objectName string) error
}
