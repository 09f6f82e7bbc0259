package netstream

import (
	"sync"

	"github.com/zijiren233/gencontainer/dllist"
)

// StatusCode is an event reported to the status handler.
type StatusCode int

const (
	BufferEmpty StatusCode = iota
	BufferFull
	BufferFlush
	PlayStart
	PlayStop
	SeekNotify
	StreamNotFound
	InvalidTime
)

type statusInfo struct {
	code  string
	level string
}

var statusInfos = map[StatusCode]statusInfo{
	BufferEmpty:    {"NetStream.Buffer.Empty", "status"},
	BufferFull:     {"NetStream.Buffer.Full", "status"},
	BufferFlush:    {"NetStream.Buffer.Flush", "status"},
	PlayStart:      {"NetStream.Play.Start", "status"},
	PlayStop:       {"NetStream.Play.Stop", "status"},
	SeekNotify:     {"NetStream.Seek.Notify", "status"},
	StreamNotFound: {"NetStream.Play.StreamNotFound", "error"},
	InvalidTime:    {"NetStream.Seek.InvalidTime", "error"},
}

// Info returns the event code and level reported to scripts.
func (s StatusCode) Info() (code, level string) {
	info, ok := statusInfos[s]
	if !ok {
		return "NetStream.Unknown", "error"
	}
	return info.code, info.level
}

func (s StatusCode) String() string {
	code, _ := s.Info()
	return code
}

// IsError reports whether the event has the error level.
func (s StatusCode) IsError() bool {
	_, level := s.Info()
	return level == "error"
}

// statusQueue is a FIFO of pending events. An event equal to the most
// recently queued one is not queued twice.
type statusQueue struct {
	mu   sync.Mutex
	l    *dllist.Dllist[StatusCode]
	last StatusCode
}

func newStatusQueue() *statusQueue {
	return &statusQueue{l: dllist.New[StatusCode]()}
}

func (q *statusQueue) push(s StatusCode) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.l.Len() > 0 && q.last == s {
		return false
	}
	q.l.PushBack(s)
	q.last = s
	return true
}

// drain removes and returns every queued event in order.
func (q *statusQueue) drain() []StatusCode {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.l.Len() == 0 {
		return nil
	}
	out := make([]StatusCode, 0, q.l.Len())
	for e := q.l.Front(); e != nil; e = q.l.Front() {
		out = append(out, e.Value)
		q.l.Remove(e)
	}
	return out
}

func (q *statusQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}
