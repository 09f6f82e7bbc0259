package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zijiren233/flvplay/container/flv"
	"github.com/zijiren233/flvplay/loader"
	"github.com/zijiren233/flvplay/netstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testOpener(data []byte) loader.Opener {
	return loader.OpenerFunc(func(ctx context.Context, url string) (loader.Source, error) {
		if url != "test.flv" {
			return nil, os.ErrNotExist
		}
		return loader.NewBufferBytes(data), nil
	})
}

// newTestServer returns a server whose sessions never tick on their own.
func newTestServer(t *testing.T, conf ...ServerConf) *Server {
	t.Helper()
	data, err := flv.SynthesizeBytes(flv.DefaultSynthConf())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(append([]ServerConf{
		WithOpener(testOpener(data)),
		WithSessionTick(time.Hour),
	}, conf...)...)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeInfo(t *testing.T, w *httptest.ResponseRecorder) SessionInfo {
	t.Helper()
	var info SessionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return info
}

func TestSessionAPI(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/sessions/a/play", gin.H{"url": "test.flv", "buffer_time": 0.5})
	if w.Code != http.StatusOK {
		t.Fatalf("play: %d %s", w.Code, w.Body.String())
	}
	info := decodeInfo(t, w)
	if info.Name != "a" || info.URL != "test.flv" || info.State != "buffering" || info.BufferTime != 0.5 {
		t.Errorf("play info: %+v", info)
	}

	sess, err := s.GetSession("a")
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		sess.Stream().Advance()
	}

	w = do(t, h, http.MethodGet, "/sessions/a", nil)
	info = decodeInfo(t, w)
	if info.State != "decoding" || info.Width != 64 || info.Height != 48 {
		t.Errorf("info: %+v", info)
	}
	if len(info.Events) == 0 || info.Events[0].Code != "NetStream.Play.Start" {
		t.Errorf("events: %+v", info.Events)
	}

	w = do(t, h, http.MethodGet, "/sessions/a/frame.png?width=32", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("frame: %d %s", w.Code, w.Body.String())
	}
	img, err := png.Decode(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("frame size: %v", b)
	}

	w = do(t, h, http.MethodPost, "/sessions/a/seek", gin.H{"time": 5000})
	if w.Code != http.StatusOK || decodeInfo(t, w).Time != 5000 {
		t.Errorf("seek: %d %s", w.Code, w.Body.String())
	}
	if w = do(t, h, http.MethodPost, "/sessions/a/seek", gin.H{}); w.Code != http.StatusBadRequest {
		t.Errorf("seek without time: %d", w.Code)
	}

	if w = do(t, h, http.MethodPost, "/sessions/a/pause", gin.H{"mode": "bogus"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad pause mode: %d", w.Code)
	}
	w = do(t, h, http.MethodPost, "/sessions/a/pause", gin.H{"mode": "pause"})
	if w.Code != http.StatusOK || decodeInfo(t, w).Playback != "paused" {
		t.Errorf("pause: %d %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/sessions/a/pause", nil)
	if decodeInfo(t, w).Playback != "playing" {
		t.Errorf("toggle: %s", w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/sessions/a/volume", gin.H{"volume": 250})
	if decodeInfo(t, w).Volume != 100 {
		t.Errorf("volume: %s", w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/sessions", nil)
	var list struct {
		Sessions []string `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Sessions) != 1 || list.Sessions[0] != "a" {
		t.Errorf("list: %s", w.Body.String())
	}

	if w = do(t, h, http.MethodPost, "/sessions/a/close", nil); w.Code != http.StatusNoContent {
		t.Errorf("close: %d", w.Code)
	}
	if w = do(t, h, http.MethodGet, "/sessions/a", nil); w.Code != http.StatusNotFound {
		t.Errorf("closed session still served: %d", w.Code)
	}
	if !sess.Closed() || sess.Close() != ErrClosed {
		t.Errorf("session not closed")
	}
}

func TestPlayErrors(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()
	if w := do(t, h, http.MethodPost, "/sessions/a/play", gin.H{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing url: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/sessions/a/play", gin.H{"url": "missing.flv"}); w.Code != http.StatusNotFound {
		t.Errorf("missing stream: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/sessions/a/play", gin.H{"url": "ingest://nobody"}); w.Code != http.StatusNotFound {
		t.Errorf("missing ingest: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/sessions/a/seek", gin.H{"time": 10}); w.Code != http.StatusConflict {
		t.Errorf("seek before play: %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/sessions/a/frame.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("frame before play: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/sessions/b/pause", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown session: %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/sessions/b/close", nil); w.Code != http.StatusNotFound {
		t.Errorf("close unknown session: %d", w.Code)
	}
}

func TestSessionRegistry(t *testing.T) {
	s := newTestServer(t)
	a, err := s.NewSession("a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.NewSession("a"); !errors.Is(err, ErrSessionAlreadyExists) {
		t.Errorf("duplicate session: %v", err)
	}
	if s.GetOrNewSession("a") != a {
		t.Errorf("GetOrNewSession returned another session")
	}
	if err := s.DelSession("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSession("a"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("deleted session: %v", err)
	}
	if err := a.Play("test.flv"); !errors.Is(err, ErrClosed) {
		t.Errorf("play on closed session: %v", err)
	}
}

func TestSessionTicks(t *testing.T) {
	data, err := flv.SynthesizeBytes(flv.DefaultSynthConf())
	if err != nil {
		t.Fatal(err)
	}
	sess := NewSession("tick",
		WithTickInterval(time.Millisecond),
		WithStreamConf(netstream.WithOpener(testOpener(data))),
	)
	defer sess.Close()
	if err := sess.Play("test.flv"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for sess.Stream().VideoFrame() == nil {
		if time.Now().After(deadline) {
			t.Fatal("no frame decoded by the tick loop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitIngest(t *testing.T, s *Server, name string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := s.ingests.Load(name); ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("ingest %s not registered", name)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIngest(t *testing.T) {
	s := newTestServer(t)
	data, err := flv.SynthesizeBytes(flv.DefaultSynthConf())
	if err != nil {
		t.Fatal(err)
	}

	client, conn := net.Pipe()
	errc := make(chan error, 1)
	go func() { errc <- s.handleIngest(conn) }()

	if _, err := client.Write(append([]byte("live\n"), data[:len(data)/2]...)); err != nil {
		t.Fatal(err)
	}
	waitIngest(t, s, "live")

	src, err := s.Open(context.Background(), IngestScheme+"live")
	if err != nil {
		t.Fatal(err)
	}
	if src.Complete() {
		t.Errorf("ingest complete before the pusher finished")
	}

	// a second pusher with the same name is refused
	c2, conn2 := net.Pipe()
	go func() { _, _ = c2.Write([]byte("live\n")) }()
	if err := s.handleIngest(conn2); !errors.Is(err, ErrIngestAlreadyExists) {
		t.Errorf("duplicate ingest: %v", err)
	}
	c2.Close()

	if _, err := client.Write(data[len(data)/2:]); err != nil {
		t.Fatal(err)
	}
	client.Close()
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if !src.Complete() || src.Loaded() != int64(len(data)) {
		t.Errorf("loaded %d of %d", src.Loaded(), len(data))
	}
	if err := src.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	if _, err := s.Open(context.Background(), IngestScheme+"live"); !errors.Is(err, ErrIngestNotFound) {
		t.Errorf("finished ingest still open: %v", err)
	}
}

func TestIngestLimit(t *testing.T) {
	s := newTestServer(t, WithIngestLimit(1024))
	data, err := flv.SynthesizeBytes(flv.DefaultSynthConf())
	if err != nil {
		t.Fatal(err)
	}

	client, conn := net.Pipe()
	errc := make(chan error, 1)
	go func() { errc <- s.handleIngest(conn) }()
	if _, err := client.Write(append([]byte("big\n"), data[:100]...)); err != nil {
		t.Fatal(err)
	}
	waitIngest(t, s, "big")
	src, err := s.Open(context.Background(), IngestScheme+"big")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		// fails once the server hangs up at the limit
		_, _ = client.Write(data[100:])
		client.Close()
	}()

	if err := <-errc; !errors.Is(err, loader.ErrBufferLimit) {
		t.Errorf("ingest over the limit: %v", err)
	}
	if !src.Complete() || src.Loaded() != 1024 {
		t.Errorf("complete %v, loaded %d", src.Complete(), src.Loaded())
	}
}

func TestServe(t *testing.T) {
	s := newTestServer(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, l) }()

	addr := l.Addr().String()
	resp, err := http.Get("http://" + addr + "/sessions")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("http over mux: %d", resp.StatusCode)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	data, err := flv.SynthesizeBytes(flv.DefaultSynthConf())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(append([]byte("raw\n"), data[:64]...)); err != nil {
		t.Fatal(err)
	}
	waitIngest(t, s, "raw")
	conn.Close()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
