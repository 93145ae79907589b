// Package lod reads Might and Magic LOD archives and the compressed blocks
// stored inside them.
package lod

import (
	"errors"

	"go.uber.org/zap"
)

// LOD errors.
var (
	ErrInvalidFormat      = errors.New("invalid LOD magic: expected 'LOD'")
	ErrUnsupportedVersion = errors.New("unsupported LOD version")
	ErrTruncated          = errors.New("truncated LOD data")
	ErrIO                 = errors.New("LOD i/o error")
	ErrSizeMismatch       = errors.New("block size mismatch")
	ErrNotFound           = errors.New("entry not found")
)

var log = zap.NewNop()

// SetLogger sets the logger used to trace archive reads and block decoding.
// Passing nil disables tracing.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}
