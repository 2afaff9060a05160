package install

import (
	"archive/tar"
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/cavaliergopher/cpio"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedArchive is returned for archives of an unknown format.
var ErrUnsupportedArchive = errors.New("unsupported archive format")

// archiveReader iterates over the entries of a bundled archive.
type archiveReader interface {
	io.Reader

	// next advances to the next entry, returning io.EOF at the end of the archive.
	next() (string, fs.FileInfo, error)
}

type tarArchive struct {
	*tar.Reader
}

func (a tarArchive) next() (string, fs.FileInfo, error) {
	hdr, err := a.Next()
	if err != nil {
		return "", nil, err
	}

	return hdr.Name, hdr.FileInfo(), nil
}

type cpioArchive struct {
	*cpio.Reader
}

func (a cpioArchive) next() (string, fs.FileInfo, error) {
	hdr, err := a.Next()
	if err != nil {
		return "", nil, err
	}

	return hdr.Name, hdr.FileInfo(), nil
}

// openArchive returns a reader for the archive, picking the format from its name.
// The returned function releases the decompressor.
func openArchive(name string, r io.Reader) (archiveReader, func(), error) {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}

		return tarArchive{tar.NewReader(gz)}, func() { _ = gz.Close() }, nil

	case strings.HasSuffix(name, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}

		return tarArchive{tar.NewReader(zr)}, zr.Close, nil

	case strings.HasSuffix(name, ".tar"):
		return tarArchive{tar.NewReader(r)}, func() {}, nil

	case strings.HasSuffix(name, ".cpio"):
		return cpioArchive{cpio.NewReader(r)}, func() {}, nil

	default:
		return nil, nil, ErrUnsupportedArchive
	}
}
