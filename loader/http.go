package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// HTTP streams a remote resource into a Buffer from a background goroutine.
type HTTP struct {
	*Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

var httpLog = logrus.WithField("component", "loader")

func OpenHTTP(ctx context.Context, url string) (*HTTP, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("get %s: %s", url, resp.Status)
	}
	h := &HTTP{
		Buffer: NewBuffer(WithTotal(resp.ContentLength)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go h.load(resp.Body, url)
	return h, nil
}

func (h *HTTP) load(body io.ReadCloser, url string) {
	defer close(h.done)
	defer body.Close()
	n, err := io.Copy(h.Buffer, body)
	if err != nil {
		httpLog.WithFields(logrus.Fields{"url": url, "bytes": n}).WithError(err).Warn("load interrupted")
	} else {
		httpLog.WithFields(logrus.Fields{"url": url, "bytes": n}).Debug("load complete")
	}
	h.Buffer.CloseWrite(err)
}

// Close stops the background load and releases the buffered bytes.
func (h *HTTP) Close() error {
	h.cancel()
	<-h.done
	return h.Buffer.Close()
}
