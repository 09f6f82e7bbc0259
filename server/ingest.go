package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/flvplay/loader"
)

// IngestScheme prefixes urls that play an FLV stream pushed over TCP.
const IngestScheme = "ingest://"

// DefaultIngestLimit bounds the memory one pushed stream may hold. Pushed
// data is kept whole for the lifetime of the push so a player joining late
// still sees the stream header and every key frame.
const DefaultIngestLimit = 512 << 20

const maxIngestNameLen = 256

var (
	ErrIngestNotFound      = errors.New("ingest not found")
	ErrIngestAlreadyExists = errors.New("ingest already in publication")
	ErrInvalidIngestName   = errors.New("invalid ingest name")
)

// ingestSource hands an ingest buffer to one player. The buffer belongs to
// the ingest connection, so closing the source leaves it alone.
type ingestSource struct {
	*loader.Buffer
}

func (ingestSource) Close() error {
	return nil
}

// Open resolves ingest urls to the matching pushed stream and everything
// else through the configured opener.
func (s *Server) Open(ctx context.Context, url string) (loader.Source, error) {
	name, ok := strings.CutPrefix(url, IngestScheme)
	if !ok {
		return s.opener.Open(ctx, url)
	}
	buf, ok := s.ingests.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIngestNotFound, name)
	}
	return ingestSource{buf}, nil
}

func (s *Server) serveIngest(ctx context.Context, l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			if err := s.handleIngest(conn); err != nil {
				s.log.WithField("remote", conn.RemoteAddr()).WithError(err).Warn("ingest")
			}
		}()
	}
}

// handleIngest reads a stream name terminated by a newline, then appends
// the raw FLV bytes that follow to the named ingest buffer until the
// connection ends or the ingest limit is reached.
func (s *Server) handleIngest(conn net.Conn) error {
	defer conn.Close()
	r := bufio.NewReaderSize(conn, 4096)
	line, err := r.ReadSlice('\n')
	if err != nil {
		return fmt.Errorf("read ingest name: %w", err)
	}
	name := strings.TrimSpace(string(line))
	if name == "" || len(name) > maxIngestNameLen || strings.ContainsAny(name, "/ ") {
		return fmt.Errorf("%w: %q", ErrInvalidIngestName, name)
	}

	buf := loader.NewBuffer(loader.WithLimit(s.ingestMax))
	if _, loaded := s.ingests.LoadOrStore(name, buf); loaded {
		return fmt.Errorf("%w: %s", ErrIngestAlreadyExists, name)
	}
	defer s.ingests.Delete(name)

	log := s.log.WithFields(logrus.Fields{"ingest": name, "remote": conn.RemoteAddr()})
	log.Info("ingest started")
	n, err := io.Copy(buf, r)
	buf.CloseWrite(err)
	log.WithField("bytes", n).Info("ingest finished")
	return err
}

// Ingests returns the names of the streams being pushed.
func (s *Server) Ingests() []string {
	var names []string
	s.ingests.Range(func(name string, _ *loader.Buffer) bool {
		names = append(names, name)
		return true
	})
	return names
}
