// Package server hosts named playback sessions. Each session advances its
// stream from its own ticker. Sessions are controlled over HTTP, and FLV
// data can be pushed over raw TCP on the same port.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/soheilhy/cmux"
	"github.com/zijiren233/flvplay/loader"
	"github.com/zijiren233/flvplay/netstream"
	"github.com/zijiren233/gencontainer/rwmap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	sessions   rwmap.RWMap[string, *Session]
	ingests    rwmap.RWMap[string, *loader.Buffer]
	opener     loader.Opener
	tick       time.Duration
	streamConf []netstream.NetStreamConf
	cors       bool
	ingestMax  int64
	log        *logrus.Entry
}

type ServerConf func(*Server)

// WithOpener sets how non ingest urls are opened.
func WithOpener(o loader.Opener) ServerConf {
	return func(s *Server) {
		s.opener = o
	}
}

func WithSessionTick(d time.Duration) ServerConf {
	return func(s *Server) {
		s.tick = d
	}
}

// WithSessionStreamConf applies conf to the stream of every new session.
func WithSessionStreamConf(conf ...netstream.NetStreamConf) ServerConf {
	return func(s *Server) {
		s.streamConf = append(s.streamConf, conf...)
	}
}

func WithCors(cors bool) ServerConf {
	return func(s *Server) {
		s.cors = cors
	}
}

// WithIngestLimit caps the bytes kept for one pushed stream. A push going
// past it is cut off. 0 removes the cap.
func WithIngestLimit(n int64) ServerConf {
	return func(s *Server) {
		s.ingestMax = n
	}
}

func WithLogger(l *logrus.Entry) ServerConf {
	return func(s *Server) {
		s.log = l
	}
}

func NewServer(conf ...ServerConf) *Server {
	s := &Server{
		opener:    loader.DefaultOpener,
		tick:      DefaultTickInterval,
		cors:      true,
		ingestMax: DefaultIngestLimit,
		log:       logrus.WithField("component", "server"),
	}
	for _, c := range conf {
		c(s)
	}
	return s
}

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

func (s *Server) newSession(name string) *Session {
	conf := append([]netstream.NetStreamConf{netstream.WithOpener(s)}, s.streamConf...)
	return NewSession(name,
		WithTickInterval(s.tick),
		WithSessionLogger(s.log),
		WithStreamConf(conf...),
	)
}

func (s *Server) NewSession(name string) (*Session, error) {
	if _, ok := s.sessions.Load(name); ok {
		return nil, ErrSessionAlreadyExists
	}
	sess := s.newSession(name)
	if _, loaded := s.sessions.LoadOrStore(name, sess); loaded {
		sess.Close()
		return nil, ErrSessionAlreadyExists
	}
	return sess, nil
}

func (s *Server) GetOrNewSession(name string) *Session {
	if sess, ok := s.sessions.Load(name); ok {
		return sess
	}
	sess := s.newSession(name)
	actual, loaded := s.sessions.LoadOrStore(name, sess)
	if loaded {
		sess.Close()
	}
	return actual
}

func (s *Server) GetSession(name string) (*Session, error) {
	sess, ok := s.sessions.Load(name)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Server) DelSession(name string) error {
	sess, loaded := s.sessions.LoadAndDelete(name)
	if !loaded {
		return ErrSessionNotFound
	}
	return sess.Close()
}

// Sessions returns the session names in sorted order.
func (s *Server) Sessions() []string {
	names := []string{}
	s.sessions.Range(func(name string, _ *Session) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Close closes every session.
func (s *Server) Close() {
	s.sessions.Range(func(name string, sess *Session) bool {
		s.sessions.Delete(name)
		sess.Close()
		return true
	})
}

// Serve splits l between the HTTP API and raw FLV ingest and serves both
// until ctx is done or one of them fails. All sessions are closed on
// return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	defer s.Close()

	muxer := cmux.New(l)
	httpl := muxer.Match(cmux.HTTP1Fast())
	tcpl := muxer.Match(cmux.Any())
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.serveIngest(ctx, tcpl)
	})
	g.Go(func() error {
		if err := srv.Serve(httpl); ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := muxer.Serve(); ctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		srv.Close()
		l.Close()
		return nil
	})
	return g.Wait()
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.WithField("addr", l.Addr().String()).Info("listening")
	return s.Serve(ctx, l)
}
