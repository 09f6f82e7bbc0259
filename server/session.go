package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/flvplay/netstream"
)

const (
	DefaultTickInterval = 40 * time.Millisecond
	maxEvents           = 32
)

var ErrClosed = errors.New("session closed")

// Event is a status event dispatched by a session's stream.
type Event struct {
	Code  string    `json:"code"`
	Level string    `json:"level"`
	Time  time.Time `json:"time"`
}

// Session owns one NetStream and the goroutine that advances it.
type Session struct {
	name       string
	ns         *netstream.NetStream
	tick       time.Duration
	streamConf []netstream.NetStreamConf
	log        *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
	events []Event
}

type SessionConf func(*Session)

func WithTickInterval(d time.Duration) SessionConf {
	return func(s *Session) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithStreamConf(conf ...netstream.NetStreamConf) SessionConf {
	return func(s *Session) {
		s.streamConf = append(s.streamConf, conf...)
	}
}

func WithSessionLogger(l *logrus.Entry) SessionConf {
	return func(s *Session) {
		s.log = l
	}
}

func NewSession(name string, conf ...SessionConf) *Session {
	s := &Session{
		name: name,
		tick: DefaultTickInterval,
		log:  logrus.WithField("component", "server"),
		done: make(chan struct{}),
	}
	for _, c := range conf {
		c(s)
	}
	s.log = s.log.WithField("session", name)
	s.ns = netstream.New(append(s.streamConf,
		netstream.WithLogger(s.log.WithField("component", "netstream")),
		netstream.WithStatusHandler(s.onStatus),
	)...)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.ns.Advance()
		}
	}
}

func (s *Session) onStatus(code netstream.StatusCode) {
	info, level := code.Info()
	l := s.log.WithField("status", info)
	if code.IsError() {
		l.Warn("status")
	} else {
		l.Debug("status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == maxEvents {
		s.events = append(s.events[:0], s.events[1:]...)
	}
	s.events = append(s.events, Event{Code: info, Level: level, Time: time.Now()})
}

func (s *Session) Name() string {
	return s.name
}

// Stream returns the underlying NetStream.
func (s *Session) Stream() *netstream.NetStream {
	return s.ns
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Play starts url in this session. The stream outlives the caller's
// request, so loading is bound to the session and not to a caller context.
func (s *Session) Play(url string) error {
	if s.Closed() {
		return ErrClosed
	}
	return s.ns.Play(s.ctx, url)
}

func (s *Session) Pause(mode netstream.PauseMode) error {
	if s.Closed() {
		return ErrClosed
	}
	s.ns.Pause(mode)
	return nil
}

func (s *Session) Seek(ms uint32) error {
	if s.Closed() {
		return ErrClosed
	}
	return s.ns.Seek(ms)
}

// Events returns the most recent status events, oldest first.
func (s *Session) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// Close stops the tick loop and the stream. It waits for a running Advance
// to return.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.ns.Close()
	s.log.Info("session closed")
	return nil
}

type SessionInfo struct {
	Name         string         `json:"name"`
	URL          string         `json:"url"`
	Time         uint64         `json:"time"`
	State        string         `json:"state"`
	Playback     string         `json:"playback"`
	BufferTime   float64        `json:"buffer_time"`
	BufferLength uint32         `json:"buffer_length"`
	BytesLoaded  int64          `json:"bytes_loaded"`
	BytesTotal   int64          `json:"bytes_total"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	Volume       int            `json:"volume"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Events       []Event        `json:"events"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		Name:         s.name,
		URL:          s.ns.URL(),
		Time:         s.ns.Time(),
		State:        s.ns.DecodingState().String(),
		Playback:     s.ns.PlaybackState().String(),
		BufferTime:   s.ns.BufferTime(),
		BufferLength: s.ns.BufferLength(),
		BytesLoaded:  s.ns.BytesLoaded(),
		BytesTotal:   s.ns.BytesTotal(),
		Width:        s.ns.VideoWidth(),
		Height:       s.ns.VideoHeight(),
		Volume:       s.ns.Volume(),
		Metadata:     s.ns.Metadata(),
		Events:       s.Events(),
	}
}
