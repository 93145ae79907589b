package formats

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/lod"
)

// EntrySource lists and reads the entries of a single archive.
// *lod.Archive satisfies it.
type EntrySource interface {
	List() []string
	Get(name string) ([]byte, error)
}

// AssetSource resolves "archive/entry" paths across archives.
// *lod.Set satisfies it.
type AssetSource interface {
	Resolve(path string) ([]byte, error)
}

var log = zap.NewNop()

// SetLogger sets the logger used to trace decoding fallbacks.
// Passing nil disables tracing.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}

// loadBlock resolves path and strips its compression framing.
func loadBlock(src AssetSource, path string) ([]byte, error) {
	raw, err := src.Resolve(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return lod.DecodeBlock(raw).Data, nil
}

// ErrMissingAsset reports an entry a composite asset depends on that
// could not be found.
var ErrMissingAsset = errors.New("missing asset")
