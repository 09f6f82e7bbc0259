package cache

import (
	"bytes"
	"image"
	"runtime"
	"sync"
	"testing"

	"github.com/zijiren233/flvplay/av"
)

func TestAudioQueueCap(t *testing.T) {
	q := NewAudioQueue(20)
	for i := 1; i <= 25; i++ {
		ok := q.Push(NewAudioSample([]byte{byte(i)}))
		if ok != (i <= 20) {
			t.Errorf("push %d: got %v", i, ok)
		}
		if q.Len() > 20 {
			t.Fatalf("queue grew to %d", q.Len())
		}
	}
	if q.Len() != 20 || !q.Full() || q.Bytes() != 20 {
		t.Errorf("len %d bytes %d", q.Len(), q.Bytes())
	}
	// the rejected pushes left the queue unchanged
	if got := q.Pull(100); len(got) != 20 || got[0] != 1 || got[19] != 20 {
		t.Errorf("contents: %v", got)
	}
}

func TestAudioQueuePartialPull(t *testing.T) {
	q := NewAudioQueue(0)
	if q.Cap() != DefaultAudioQueueCap {
		t.Errorf("default cap: %d", q.Cap())
	}
	q.Push(NewAudioSample([]byte{1, 2, 3, 4, 5, 6}))
	q.Push(NewAudioSample([]byte{7, 8}))

	if got := q.Pull(4); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("first pull: %v", got)
	}
	if q.FrontSize() != 2 || q.Len() != 2 || q.Bytes() != 4 {
		t.Errorf("after partial pull: front %d len %d bytes %d", q.FrontSize(), q.Len(), q.Bytes())
	}
	if got := q.Pull(2); !bytes.Equal(got, []byte{5, 6}) {
		t.Errorf("remainder: %v", got)
	}
	if got := q.Pull(10); !bytes.Equal(got, []byte{7, 8}) {
		t.Errorf("last sample: %v", got)
	}
	if q.Len() != 0 || q.Pull(4) == nil || len(q.Pull(4)) != 0 {
		t.Errorf("queue not empty")
	}
}

func TestAudioQueueClear(t *testing.T) {
	q := NewAudioQueue(2)
	q.Push(NewAudioSample([]byte{1}))
	q.Push(NewAudioSample([]byte{2}))
	q.Clear()
	if q.Len() != 0 || q.Bytes() != 0 || q.Full() {
		t.Errorf("not cleared")
	}
	if !q.Push(NewAudioSample([]byte{3})) {
		t.Errorf("push after clear")
	}
}

func TestAudioQueueConcurrent(t *testing.T) {
	const (
		samples = 2000
		size    = 5
	)
	q := NewAudioQueue(8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range samples {
			pcm := make([]byte, size)
			for j := range pcm {
				pcm[j] = byte(i*size + j)
			}
			s := NewAudioSample(pcm)
			for !q.Push(s) {
				runtime.Gosched()
			}
		}
	}()

	got := make([]byte, 0, samples*size)
	buf := make([]byte, 7)
	for len(got) < samples*size {
		n := q.PullInto(buf)
		if n == 0 {
			runtime.Gosched()
			continue
		}
		got = append(got, buf[:n]...)
	}
	wg.Wait()

	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("byte %d: got %d", i, b)
		}
	}
	if q.Len() != 0 || q.Bytes() != 0 {
		t.Errorf("left over: len %d bytes %d", q.Len(), q.Bytes())
	}
}

func TestPacketQueueFlushOnRegression(t *testing.T) {
	q := NewPacketQueue()
	for _, ts := range []uint32{0, 40, 80} {
		q.Write(&av.Packet{IsVideo: true, TimeStamp: ts})
	}
	if q.Duration() != 80 || q.Len() != 3 {
		t.Fatalf("duration %d len %d", q.Duration(), q.Len())
	}
	q.Write(&av.Packet{IsVideo: true, TimeStamp: 20})
	if q.Len() != 1 || q.Peek().TimeStamp != 20 {
		t.Errorf("queue not flushed: len %d", q.Len())
	}
	if p := q.Pop(); p.TimeStamp != 20 || q.Pop() != nil || q.Last() != nil {
		t.Errorf("pop")
	}

	for i := range maxQueueCap {
		if err := q.Write(&av.Packet{IsVideo: true, TimeStamp: uint32(i)}); err != nil {
			t.Fatalf("write %d: %s", i, err)
		}
	}
	if !q.Full() || q.Write(&av.Packet{IsVideo: true, TimeStamp: uint32(maxQueueCap)}) != ErrPacketQueueFull {
		t.Errorf("cap not enforced")
	}
}

func TestCacheBufferedUntil(t *testing.T) {
	c := NewCache()
	if c.BufferedUntil(true, true) != 0 {
		t.Errorf("empty cache")
	}
	c.Write(&av.Packet{IsVideo: true, TimeStamp: 0})
	c.Write(&av.Packet{IsVideo: true, TimeStamp: 1000})
	if c.BufferedUntil(true, true) != 0 {
		t.Errorf("audio wanted but missing")
	}
	if c.BufferedUntil(true, false) != 1000 {
		t.Errorf("video only: %d", c.BufferedUntil(true, false))
	}
	c.Write(&av.Packet{IsAudio: true, TimeStamp: 600})
	c.Write(&av.Packet{IsMetadata: true, TimeStamp: 5000})
	if c.BufferedUntil(true, true) != 600 || c.Span(true, true) != 0 || c.Span(true, false) != 1000 {
		t.Errorf("until %d span %d", c.BufferedUntil(true, true), c.Span(true, true))
	}
	c.Write(&av.Packet{IsAudio: true, TimeStamp: 1400})
	if c.BufferedUntil(true, true) != 1000 || c.Span(true, true) != 800 {
		t.Errorf("until %d span %d", c.BufferedUntil(true, true), c.Span(true, true))
	}
	if c.Full() {
		t.Errorf("full")
	}
	c.Clear()
	if c.Video().Len() != 0 || c.Audio().Len() != 0 {
		t.Errorf("not cleared")
	}
}

func TestFrameCache(t *testing.T) {
	c := NewFrameCache()
	if c.Frame() != nil || c.NewFrameReady() {
		t.Fatalf("empty cache")
	}
	f := &av.VideoFrame{Image: image.NewRGBA(image.Rect(0, 0, 2, 2)), TimeStamp: 40}
	c.Write(f)
	if !c.NewFrameReady() || c.NewFrameReady() {
		t.Errorf("ready flag")
	}
	if c.Frame() != f {
		t.Errorf("frame")
	}
	c.Reset()
	if c.Frame() != nil {
		t.Errorf("reset")
	}
}
