package lod

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/encoding"
)

// Set groups archives by logical name, the lowercased file name without
// its extension ("bitmaps", "games", "icons", ...). Paths of the form
// "archive/entry" are resolved against it.
type Set struct {
	archives map[string]*Archive
	mu       sync.RWMutex
}

// NewSet creates an empty archive set.
func NewSet() *Set {
	return &Set{archives: make(map[string]*Archive)}
}

// OpenSet opens every *.lod file in dir. Any archive that fails to open
// fails the whole set.
func OpenSet(dir string) (*Set, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %w", ErrIO, dir, err)
	}

	set := NewSet()
	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".lod") {
			continue
		}
		archive, err := Open(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}
		set.Add(f.Name(), archive)
	}

	log.Debug("archive set opened", zap.String("dir", dir), zap.Strings("archives", set.Names()))
	return set, nil
}

// Add registers an archive. The name may include a ".lod" extension.
// An archive already registered under the same name is replaced.
func (s *Set) Add(name string, archive *Archive) {
	key := archiveKey(name)

	s.mu.Lock()
	s.archives[key] = archive
	s.mu.Unlock()
}

// Archive returns the archive registered under name.
func (s *Set) Archive(name string) (*Archive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	archive, ok := s.archives[archiveKey(name)]
	return archive, ok
}

// Names returns the registered archive names, sorted.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.archives))
	for name := range s.archives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the bytes of "archive/entry".
func (s *Set) Resolve(path string) ([]byte, error) {
	archiveName, entryName, ok := strings.Cut(encoding.NormalizeName(path), "/")
	if !ok || archiveName == "" || entryName == "" {
		return nil, fmt.Errorf("%w: invalid path %q", ErrNotFound, path)
	}

	archive, found := s.Archive(archiveName)
	if !found {
		return nil, fmt.Errorf("%w: archive %s", ErrNotFound, archiveName)
	}
	return archive.Get(entryName)
}

func archiveKey(name string) string {
	name = filepath.Base(name)
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".lod") {
		name = strings.TrimSuffix(name, ext)
	}
	return strings.ToLower(name)
}
