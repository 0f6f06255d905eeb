package blob

import (
	"context"
	"errors"
	"io"
	"iter"
)

// ErrInvalidName indicates a blob or container name that would escape its namespace.
var ErrInvalidName = errors.New("invalid blob name")

// Blob is one entry of a container listing.
type Blob struct {
	Name string
	Size int64
}

// Store is the contract for containerised binary objects.
//
// List yields names relative to the container and fetches pages lazily; iteration
// stops at the first error, which is yielded with a zero Blob. Delete treats a
// missing blob as success.
type Store interface {
	List(ctx context.Context, container string) iter.Seq2[Blob, error]
	Delete(ctx context.Context, container, name string) error
}

// Writer uploads blobs. Reclamation never writes, so it is kept apart from Store.
type Writer interface {
	Put(ctx context.Context, container, name, contentType string, r io.Reader) (int64, error)
}
