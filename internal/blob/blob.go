// Package blob is the port to the external blob store. The core never
// stores file contents, only the opaque references this interface returns.
package blob

import (
	"context"
	"io"
)

// Store accepts an opaque upload and returns a retrievable reference.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (ref string, err error)
}
