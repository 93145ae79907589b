package lod

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/mm-lod/pkg/encoding"
)

const (
	lodMagic        = "LOD"
	directoryOffset = 256
	recordSize      = 32
	recordNameSize  = 16
)

// Version identifies the game an archive was built for.
type Version uint8

// Version constants.
const (
	VersionUnknown Version = iota
	VersionMM6
	VersionMM7
	VersionMM8
)

// String returns the short game name.
func (v Version) String() string {
	switch v {
	case VersionMM6:
		return "MM6"
	case VersionMM7:
		return "MM7"
	case VersionMM8:
		return "MM8"
	default:
		return "Unknown"
	}
}

// ParseVersion maps the version token stored after the magic to a game.
func ParseVersion(token string) (Version, error) {
	switch token {
	case "GameMMVI", "MMVI":
		return VersionMM6, nil
	case "GameMMVII", "MMVII":
		return VersionMM7, nil
	case "GameMMVIII", "MMVIII":
		return VersionMM8, nil
	default:
		return VersionUnknown, fmt.Errorf("%w: %q", ErrUnsupportedVersion, token)
	}
}

// Entry describes one directory record.
type Entry struct {
	Name   string // Lowercased
	Offset int64  // Absolute offset in the archive file
	Size   int64
}

// Archive is a fully loaded LOD archive. All entry bytes are read into
// memory by Open, so the archive holds no file handle.
type Archive struct {
	version Version
	entries []Entry
	files   map[string][]byte
}

// Open reads a LOD archive from disk.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrIO, path, err)
	}
	defer file.Close()

	archive, err := OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	log.Debug("archive opened",
		zap.String("path", path),
		zap.Stringer("version", archive.version),
		zap.Int("entries", len(archive.entries)))
	return archive, nil
}

// OpenReader reads a LOD archive from r.
func OpenReader(r io.ReadSeeker) (*Archive, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	header := make([]byte, directoryOffset)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading header: %w", ErrIO, err)
	}
	header = header[:n]

	version, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	if n < directoryOffset {
		return nil, fmt.Errorf("%w: header is %d bytes", ErrTruncated, n)
	}

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	entries, err := readDirectory(r, end)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	archive := &Archive{
		version: version,
		entries: entries,
		files:   make(map[string][]byte, len(entries)),
	}
	for _, e := range entries {
		data, err := readEntry(r, e, end)
		if err != nil {
			return nil, fmt.Errorf("reading entry %s: %w", e.Name, err)
		}
		archive.files[e.Name] = data
	}
	return archive, nil
}

// parseHeader checks the NUL-terminated magic and version strings at the
// start of the file.
func parseHeader(header []byte) (Version, error) {
	end := bytes.IndexByte(header, 0)
	if end < 0 || string(header[:end]) != lodMagic {
		return VersionUnknown, ErrInvalidFormat
	}
	rest := header[end+1:]

	end = bytes.IndexByte(rest, 0)
	if end < 0 {
		return VersionUnknown, fmt.Errorf("%w: unterminated version", ErrTruncated)
	}
	return ParseVersion(string(rest[:end]))
}

// readDirectory reads the master record at the directory offset and the
// records that follow it. Offsets of the following records are relative to
// the master record's offset; the master record is kept as an entry too.
// All records must fit within the first size bytes.
func readDirectory(r io.ReadSeeker, size int64) ([]Entry, error) {
	if _, err := r.Seek(directoryOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	master, count, err := readRecord(r)
	if err != nil {
		return nil, fmt.Errorf("master record: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative entry count %d", ErrTruncated, count)
	}
	if need := directoryOffset + (int64(count)+1)*recordSize; need > size {
		return nil, fmt.Errorf("%w: %d records need %d bytes, archive has %d", ErrTruncated, count, need, size)
	}

	entries := make([]Entry, 0, int(count)+1)
	entries = append(entries, master)
	for i := int32(0); i < count; i++ {
		e, _, err := readRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		e.Offset += master.Offset
		entries = append(entries, e)
	}
	return entries, nil
}

func readRecord(r io.Reader) (Entry, int32, error) {
	var raw [recordSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Entry{}, 0, fmt.Errorf("%w: %w", ErrTruncated, err)
	}

	offset := int32(binary.LittleEndian.Uint32(raw[16:]))
	size := int32(binary.LittleEndian.Uint32(raw[20:]))
	count := int32(binary.LittleEndian.Uint32(raw[28:]))

	e := Entry{
		Name:   encoding.FixedName(raw[:recordNameSize]),
		Offset: int64(offset),
		Size:   int64(size),
	}
	if e.Offset < 0 || e.Size < 0 {
		return Entry{}, 0, fmt.Errorf("%w: %s has offset %d size %d", ErrTruncated, e.Name, e.Offset, e.Size)
	}
	return e, count, nil
}

func readEntry(r io.ReadSeeker, e Entry, end int64) ([]byte, error) {
	if e.Offset+e.Size > end {
		return nil, fmt.Errorf("%w: %d bytes at %d exceed archive size %d", ErrTruncated, e.Size, e.Offset, end)
	}
	if _, err := r.Seek(e.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	data := make([]byte, e.Size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return data, nil
}

// Version returns the game version declared in the header.
func (a *Archive) Version() Version {
	return a.version
}

// Entries returns the directory records in file order.
func (a *Archive) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// List returns all entry names, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.files))
	for name := range a.files {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Len returns the number of distinct entries.
func (a *Archive) Len() int {
	return len(a.files)
}

// Contains checks if an entry exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.files[encoding.NormalizeName(name)]
	return ok
}

// Get returns the stored bytes of an entry. The returned slice is shared
// and must not be modified.
func (a *Archive) Get(name string) ([]byte, error) {
	data, ok := a.files[encoding.NormalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return data, nil
}
