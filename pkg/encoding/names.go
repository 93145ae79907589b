// Package encoding provides text encoding utilities for LOD archive names.
package encoding

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Windows1252ToUTF8(data []byte) string {
	decoder := charmap.Windows1252.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// NormalizeName folds an entry name or path for case-insensitive lookup.
func NormalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.ToLower(name)
}

// FixedString decodes a fixed-size, NUL-terminated name block.
// Bytes after the first NUL are ignored.
func FixedString(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return Windows1252ToUTF8(data)
}

// FixedName decodes a fixed-size name block and lowercases it.
func FixedName(data []byte) string {
	return strings.ToLower(FixedString(data))
}
