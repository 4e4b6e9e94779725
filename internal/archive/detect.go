package archive

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Stream compression detected from leading magic bytes.
type Compression int

const (
	Uncompressed Compression = iota
	Gzip
	Zstd
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	tarMagic  = []byte("ustar")
)

const tarMagicOffset = 257

func detectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	default:
		return Uncompressed
	}
}

// Returns a reader yielding the decompressed stream. The returned close
// function releases decoder resources and must be called.
func Decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(len(zstdMagic))
	if err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("%w: peek stream: %w", ErrExtract, err)
	}

	switch detectCompression(head) {
	case Gzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: gzip: %w", ErrExtract, err)
		}
		return gz, func() { gz.Close() }, nil

	case Zstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: zstd: %w", ErrExtract, err)
		}
		return zr, zr.Close, nil

	default:
		return br, func() {}, nil
	}
}

// Reports whether the file at path holds a tar archive, compressed or not.
// Compressed files count only when their decompressed stream starts with
// a tar header; a compressed file that cannot be decoded is not an archive.
func IsArchive(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	r, done, err := Decompress(f)
	if err != nil {
		return false, nil
	}
	defer done()

	head := make([]byte, tarMagicOffset+len(tarMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return false, nil
	}
	return bytes.Equal(head[tarMagicOffset:], tarMagic), nil
}
