package cache

import (
	"sync"

	"github.com/zijiren233/flvplay/av"
)

// FrameCache keeps the single most recent decoded video frame. Each Write
// replaces the previous frame in place.
type FrameCache struct {
	mu    sync.RWMutex
	f     *av.VideoFrame
	fresh bool
}

func NewFrameCache() *FrameCache {
	return &FrameCache{}
}

func (c *FrameCache) Write(f *av.VideoFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.f = f
	c.fresh = true
}

// Frame returns the current frame, nil if none was written yet.
func (c *FrameCache) Frame() *av.VideoFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.f
}

// NewFrameReady reports whether a frame was written since the last call.
func (c *FrameCache) NewFrameReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ready := c.fresh
	c.fresh = false
	return ready
}

func (c *FrameCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.f = nil
	c.fresh = false
}
