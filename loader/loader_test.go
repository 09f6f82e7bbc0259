package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestBuffer(t *testing.T) {
	b := NewBuffer(WithTotal(6))
	if _, err := b.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	p := make([]byte, 4)
	n, err := b.ReadAt(p, 1)
	if n != 2 || err != io.ErrUnexpectedEOF || string(p[:n]) != "bc" {
		t.Errorf("partial read: %d %v", n, err)
	}
	if _, err := b.ReadAt(p, 3); err != io.ErrUnexpectedEOF {
		t.Errorf("read past loaded: %v", err)
	}
	if b.Loaded() != 3 || b.Total() != 6 || b.Complete() {
		t.Errorf("loaded %d total %d", b.Loaded(), b.Total())
	}

	b.Write([]byte("def"))
	b.CloseWrite(nil)
	if !b.Complete() || b.Err() != nil {
		t.Errorf("not complete")
	}
	if _, err := b.Write([]byte("g")); err != io.ErrClosedPipe {
		t.Errorf("write after complete: %v", err)
	}
	n, err = b.ReadAt(p, 4)
	if n != 2 || err != io.EOF {
		t.Errorf("tail read: %d %v", n, err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != io.ErrClosedPipe {
		t.Errorf("double close: %v", err)
	}
}

func TestBufferLimit(t *testing.T) {
	b := NewBuffer(WithLimit(5))
	if n, err := b.Write([]byte("abc")); n != 3 || err != nil {
		t.Fatalf("write: %d %v", n, err)
	}
	n, err := b.Write([]byte("defg"))
	if n != 2 || !errors.Is(err, ErrBufferLimit) {
		t.Errorf("write over limit: %d %v", n, err)
	}
	if b.Loaded() != 5 {
		t.Errorf("loaded %d", b.Loaded())
	}
	if _, err := b.Write([]byte("h")); !errors.Is(err, ErrBufferLimit) {
		t.Errorf("write at limit: %v", err)
	}
	p := make([]byte, 5)
	if n, _ := b.ReadAt(p, 0); n != 5 || string(p) != "abcde" {
		t.Errorf("read: %q", p[:n])
	}
}

func TestBufferRecordsLoadError(t *testing.T) {
	b := NewBuffer()
	boom := errors.New("boom")
	b.CloseWrite(boom)
	b.CloseWrite(nil)
	if b.Err() != boom || b.Total() != -1 {
		t.Errorf("err %v total %d", b.Err(), b.Total())
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.flv")
	if err := os.WriteFile(path, []byte("FLV data"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, url := range []string{path, "file://" + path} {
		src, err := Open(context.Background(), url)
		if err != nil {
			t.Fatal(err)
		}
		p := make([]byte, 3)
		if _, err := src.ReadAt(p, 0); err != nil || string(p) != "FLV" {
			t.Errorf("%s: read %q %v", url, p, err)
		}
		if src.Loaded() != 8 || src.Total() != 8 || !src.Complete() {
			t.Errorf("%s: sizes", url)
		}
		src.Close()
	}
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: %v", err)
	}
	if _, err := Open(context.Background(), "rtmp://host/app"); !errors.Is(err, ErrUnsupportedURL) {
		t.Errorf("unsupported scheme: %v", err)
	}
}

func TestOpenHTTP(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.flv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	defer srv.Close()

	src, err := Open(context.Background(), srv.URL+"/a.flv")
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	deadline := time.Now().Add(5 * time.Second)
	for !src.Complete() {
		if time.Now().After(deadline) {
			t.Fatal("load did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if src.Loaded() != int64(len(data)) || src.Total() != int64(len(data)) {
		t.Errorf("loaded %d total %d", src.Loaded(), src.Total())
	}
	p := make([]byte, 10)
	if _, err := src.ReadAt(p, 9990); err != nil || string(p) != "0123456789" {
		t.Errorf("read %q %v", p, err)
	}

	if _, err := Open(context.Background(), srv.URL+"/missing.flv"); err == nil {
		t.Errorf("expected error for 404")
	}
}
