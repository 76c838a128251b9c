// Package datasource defines where record readers get their bytes from.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw byte stream of one input file. Open may be called more
// than once; each call returns an independent stream positioned at the start.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the source in errors and logs (usually the path).
	Name() string
}
