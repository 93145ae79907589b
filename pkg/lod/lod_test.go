package lod

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
)

// testFile is one entry of a synthetic archive.
type testFile struct {
	name string
	data []byte
}

// buildLOD creates a LOD archive in memory. The master record is named
// after the directory and its size spans the record table plus payload.
func buildLOD(version, directory string, files []testFile) []byte {
	buf := new(bytes.Buffer)

	// Magic and version, NUL-terminated
	buf.WriteString("LOD\x00")
	buf.WriteString(version)
	buf.WriteByte(0)
	buf.Write(make([]byte, directoryOffset-buf.Len()))

	// Records, offsets relative to the master record's offset
	records := new(bytes.Buffer)
	payload := new(bytes.Buffer)
	tableSize := int32(len(files) * recordSize)
	for _, f := range files {
		writeRecord(records, f.name, tableSize+int32(payload.Len()), int32(len(f.data)), 0)
		payload.Write(f.data)
	}

	base := int32(directoryOffset + recordSize)
	writeRecord(buf, directory, base, int32(records.Len()+payload.Len()), int32(len(files)))
	buf.Write(records.Bytes())
	buf.Write(payload.Bytes())
	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, name string, offset, size, count int32) {
	block := make([]byte, recordNameSize)
	copy(block, name)
	buf.Write(block)
	binary.Write(buf, binary.LittleEndian, offset)
	binary.Write(buf, binary.LittleEndian, size)
	binary.Write(buf, binary.LittleEndian, int32(0)) // reserved
	binary.Write(buf, binary.LittleEndian, count)
}

// writeLOD writes a synthetic archive to dir and returns its path.
func writeLOD(dir, fileName string, data []byte) (string, error) {
	path := filepath.Join(dir, fileName)
	return path, os.WriteFile(path, data, 0644)
}

// compress returns a zlib stream of data.
func compress(data []byte) []byte {
	buf := new(bytes.Buffer)
	w := zlib.NewWriter(buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// shortBlock frames data with the 8-byte header.
func shortBlock(data []byte) []byte {
	z := compress(data)
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(z)))
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(z)
	return buf.Bytes()
}

// extendedBlock frames data with the 48-byte header.
func extendedBlock(data []byte) []byte {
	z := compress(data)
	header := make([]byte, ExtendedHeaderSize)
	copy(header, "block")
	binary.LittleEndian.PutUint32(header[20:], uint32(len(z)))
	binary.LittleEndian.PutUint32(header[40:], uint32(len(data)))
	return append(header, z...)
}

// openTestArchive builds and opens an MM6 archive.
func openTestArchive(directory string, files []testFile) (*Archive, error) {
	return OpenReader(bytes.NewReader(buildLOD("GameMMVI", directory, files)))
}
