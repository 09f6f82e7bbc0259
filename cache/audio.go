package cache

import (
	"sync"

	"github.com/zijiren233/gencontainer/dllist"
)

const DefaultAudioQueueCap = 20

// AudioSample is a block of decoded PCM that can be consumed piecewise.
type AudioSample struct {
	data []byte
	off  int
}

func NewAudioSample(pcm []byte) *AudioSample {
	return &AudioSample{data: pcm}
}

// Size returns the number of bytes not consumed yet.
func (s *AudioSample) Size() int {
	return len(s.data) - s.off
}

// AudioQueue hands decoded samples from the decoder to the audio output.
// Push never blocks: a full queue rejects the sample.
type AudioQueue struct {
	mu    sync.Mutex
	l     *dllist.Dllist[*AudioSample]
	max   int
	bytes int
}

func NewAudioQueue(max int) *AudioQueue {
	if max <= 0 {
		max = DefaultAudioQueueCap
	}
	return &AudioQueue{
		l:   dllist.New[*AudioSample](),
		max: max,
	}
}

// Push appends s unless the queue already holds Cap samples.
func (q *AudioQueue) Push(s *AudioSample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.l.Len() >= q.max {
		return false
	}
	q.l.PushBack(s)
	q.bytes += s.Size()
	return true
}

// PullInto fills buf from the front samples and returns the bytes copied.
// A sample larger than the remaining space is consumed partially and stays
// at the front.
func (q *AudioQueue) PullInto(buf []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(buf) {
		e := q.l.Front()
		if e == nil {
			break
		}
		s := e.Value
		c := copy(buf[n:], s.data[s.off:])
		s.off += c
		n += c
		if s.Size() == 0 {
			q.l.Remove(e)
		}
	}
	q.bytes -= n
	return n
}

// Pull returns up to n bytes from the front of the queue.
func (q *AudioQueue) Pull(n int) []byte {
	buf := make([]byte, n)
	return buf[:q.PullInto(buf)]
}

func (q *AudioQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for e := q.l.Front(); e != nil; e = q.l.Front() {
		q.l.Remove(e)
	}
	q.bytes = 0
}

func (q *AudioQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

func (q *AudioQueue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len() >= q.max
}

// Bytes returns the number of unconsumed bytes queued.
func (q *AudioQueue) Bytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// FrontSize returns the unconsumed size of the front sample, 0 if empty.
func (q *AudioQueue) FrontSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e := q.l.Front(); e != nil {
		return e.Value.Size()
	}
	return 0
}

func (q *AudioQueue) Cap() int {
	return q.max
}
