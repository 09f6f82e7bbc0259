// Package loader provides the seekable byte sources a parser reads from.
//
// A Source never blocks on missing data: reads past the loaded region
// return io.ErrUnexpectedEOF (or io.EOF) and the caller decides, using
// Complete, whether to wait for more bytes or to treat the stream as ended.
package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

type Source interface {
	io.ReaderAt
	io.Closer
	// Loaded returns the number of bytes currently available from offset 0.
	Loaded() int64
	// Total returns the expected stream size, or -1 when unknown.
	Total() int64
	// Complete reports that no more bytes will arrive.
	Complete() bool
}

// Opener resolves a url into a Source.
type Opener interface {
	Open(ctx context.Context, url string) (Source, error)
}

type OpenerFunc func(ctx context.Context, url string) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, url string) (Source, error) {
	return f(ctx, url)
}

var ErrUnsupportedURL = errors.New("unsupported url")

// DefaultOpener opens http(s) urls with an HTTP loader and everything else
// as a local file path.
var DefaultOpener Opener = OpenerFunc(Open)

func Open(ctx context.Context, url string) (Source, error) {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return OpenHTTP(ctx, url)
	case strings.HasPrefix(url, "file://"):
		return OpenFile(strings.TrimPrefix(url, "file://"))
	case strings.Contains(url, "://"):
		return nil, ErrUnsupportedURL
	default:
		return OpenFile(url)
	}
}

// File is a fully available local file.
type File struct {
	f    *os.File
	size int64
}

func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{f: f, size: st.Size()}, nil
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *File) Loaded() int64 { return f.size }

func (f *File) Total() int64 { return f.size }

func (f *File) Complete() bool { return true }

func (f *File) Close() error {
	return f.f.Close()
}
