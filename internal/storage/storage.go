package storage

import (
	"context"
	"io"
)

// Archiver keeps a copy of uploaded audio. Callers treat failures as
// non-fatal.
type Archiver interface {
	Archive(ctx context.Context, objectName, contentType string, r io.Reader) (storedPath string, err error)
}
