// Package codec detects and decompresses mcuboot's optional
// compressed-image payload format. It only decompresses: a boot-time
// selection core reads images, it never writes compressed ones back
// out.
package codec

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Format identifies a compression container by its magic prefix.
type Format int

const (
	Plain Format = iota
	GZIP
	XZ
	LZMA
	BZIP2
	LZ4
)

var magics = []struct {
	format Format
	magic  []byte
}{
	{XZ, []byte("\xfd7zXZ")},
	{GZIP, []byte("\x1f\x8b")},
	{GZIP, []byte("\x1f\x9e")},
	{BZIP2, []byte("BZh")},
	{LZ4, []byte("\x04\x22\x4d\x18")},
	{LZ4, []byte("\x03\x21\x4c\x18")},
}

// Detect inspects a payload's leading bytes and reports its
// compression format, or Plain if none of the known magics match.
func Detect(buf []byte) Format {
	for _, m := range magics {
		if len(buf) >= len(m.magic) && bytes.Equal(buf[:len(m.magic)], m.magic) {
			return m.format
		}
	}
	if len(buf) >= 13 && bytes.Equal(buf[:3], []byte("\x5d\x00\x00")) && (buf[12] == '\xff' || buf[12] == 0x00) {
		return LZMA
	}
	return Plain
}

// NewReader wraps r in a decompressing reader for the given format.
// Plain returns r unchanged.
func NewReader(format Format, r io.Reader) (io.Reader, error) {
	switch format {
	case Plain:
		return r, nil
	case GZIP:
		return gzip.NewReader(r)
	case XZ:
		return xz.NewReader(r)
	case LZMA:
		return lzma.NewReader(r)
	case BZIP2:
		return bzip2.NewReader(r), nil
	case LZ4:
		return lz4.NewReader(r), nil
	default:
		return nil, fmt.Errorf("codec: unsupported format %d", format)
	}
}

// Decompress auto-detects buf's format and returns its fully
// decompressed contents, capped at maxOut bytes to bound RAM staging
// usage.
func Decompress(buf []byte, maxOut uint32) ([]byte, error) {
	format := Detect(buf)
	r, err := NewReader(format, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	limited := io.LimitReader(r, int64(maxOut)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if uint32(len(out)) > maxOut {
		return nil, fmt.Errorf("codec: decompressed image exceeds staging size %d", maxOut)
	}
	return out, nil
}
