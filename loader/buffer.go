package loader

import (
	"errors"
	"io"
	"sync"
)

var ErrBufferLimit = errors.New("loader: buffer limit reached")

// Buffer is a growing in-memory Source. One goroutine appends with Write
// while a parser reads with ReadAt from another.
type Buffer struct {
	mu       sync.RWMutex
	data     []byte
	total    int64
	complete bool
	err      error
	closed   bool
	limit    int64
}

type BufferConf func(*Buffer)

// WithTotal declares the expected final size of the buffer.
func WithTotal(total int64) BufferConf {
	return func(b *Buffer) {
		b.total = total
	}
}

// WithLimit caps how many bytes the buffer accepts. Data is kept from the
// start so late readers can still parse the stream header, which makes the
// cap the only bound on a long running push. 0 means no limit.
func WithLimit(limit int64) BufferConf {
	return func(b *Buffer) {
		b.limit = limit
	}
}

func NewBuffer(conf ...BufferConf) *Buffer {
	b := &Buffer{total: -1}
	for _, c := range conf {
		c(b)
	}
	return b
}

// NewBufferBytes returns a complete Buffer holding data.
func NewBufferBytes(data []byte) *Buffer {
	b := NewBuffer(WithTotal(int64(len(data))))
	b.data = data
	b.complete = true
	return b
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.complete {
		return 0, io.ErrClosedPipe
	}
	if b.limit > 0 && int64(len(b.data)+len(p)) > b.limit {
		n := int(b.limit) - len(b.data)
		b.data = append(b.data, p[:n]...)
		return n, ErrBufferLimit
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// CloseWrite marks the buffer complete. A non-nil err records why loading
// stopped early.
func (b *Buffer) CloseWrite(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.complete = true
	if b.err == nil {
		b.err = err
	}
}

// Err returns the error loading stopped with, if any.
func (b *Buffer) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if off >= int64(len(b.data)) {
		if b.complete {
			return 0, io.EOF
		}
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		if b.complete {
			return n, io.EOF
		}
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (b *Buffer) Loaded() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int64(len(b.data))
}

func (b *Buffer) Total() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

func (b *Buffer) Complete() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.complete
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return io.ErrClosedPipe
	}
	b.closed = true
	b.complete = true
	b.data = nil
	return nil
}
