// Package blob stores the pipeline's data files on local disk or in Cloud Storage.
package blob

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotExist is returned by Read when the named object is absent.
var ErrNotExist = eris.New("blob: object does not exist")

// Backend reads and writes whole named objects.
type Backend interface {
	// Read returns the full contents of name, or ErrNotExist.
	Read(ctx context.Context, name string) ([]byte, error)
	// Write replaces name with data. Readers never observe a partial object.
	Write(ctx context.Context, name string, data []byte) error
	// Append adds data to the end of name, creating it if needed.
	Append(ctx context.Context, name string, data []byte) error
}
