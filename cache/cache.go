package cache

import (
	"github.com/zijiren233/flvplay/av"
)

// Cache holds the encoded frames a parser has read ahead, one queue per
// media type.
type Cache struct {
	video *PacketQueue
	audio *PacketQueue
}

func NewCache() *Cache {
	return &Cache{
		video: NewPacketQueue(),
		audio: NewPacketQueue(),
	}
}

func (cache *Cache) Write(p *av.Packet) error {
	if p.IsVideo {
		return cache.video.Write(p)
	} else if p.IsAudio {
		return cache.audio.Write(p)
	}
	return nil
}

func (cache *Cache) Video() *PacketQueue {
	return cache.video
}

func (cache *Cache) Audio() *PacketQueue {
	return cache.audio
}

// BufferedUntil returns the timestamp up to which frames are buffered for
// every wanted media type. An empty wanted queue yields 0.
func (cache *Cache) BufferedUntil(video, audio bool) uint32 {
	return cache.fold(video, audio, (*PacketQueue).lastTs)
}

// Span returns the shortest timestamp span among the wanted queues. An
// empty wanted queue yields 0.
func (cache *Cache) Span(video, audio bool) uint32 {
	return cache.fold(video, audio, (*PacketQueue).Duration)
}

func (cache *Cache) fold(video, audio bool, f func(*PacketQueue) uint32) uint32 {
	var (
		least uint32
		set   bool
	)
	for _, q := range []struct {
		want bool
		q    *PacketQueue
	}{{video, cache.video}, {audio, cache.audio}} {
		if !q.want {
			continue
		}
		if q.q.Len() == 0 {
			return 0
		}
		if v := f(q.q); !set || v < least {
			least = v
			set = true
		}
	}
	return least
}

// Full reports whether either queue reached its capacity.
func (cache *Cache) Full() bool {
	return cache.video.Full() || cache.audio.Full()
}

func (cache *Cache) Clear() {
	cache.video.Clear()
	cache.audio.Clear()
}
