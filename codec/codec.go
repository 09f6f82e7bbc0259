// Package codec turns encoded packets into pictures and PCM.
//
// Decoders are created through a Backend, chosen by name when a stream
// starts. The scheduler treats decoders as opaque: it feeds packets and
// gets frames back, nil meaning the decoder needs more input.
package codec

import (
	"errors"
	"fmt"

	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/gencontainer/rwmap"
)

var (
	ErrNoDecoder      = errors.New("codec: no decoder for format")
	ErrUnknownBackend = errors.New("codec: unknown backend")
)

// AudioFormat is the layout decoded audio is converted to.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// CanonicalAudio is what audio sinks expect: 44.1 kHz stereo s16le.
var CanonicalAudio = AudioFormat{SampleRate: 44100, Channels: 2}

type VideoDecoder interface {
	// Decode returns a nil frame without error when more input is needed.
	Decode(pkt *av.Packet) (*av.VideoFrame, error)
	Close() error
}

type AudioDecoder interface {
	// Decode returns a nil frame without error when more input is needed.
	Decode(pkt *av.Packet) (*av.AudioFrame, error)
	Close() error
}

// Backend opens decoder contexts for the codecs it supports.
type Backend interface {
	Name() string
	NewVideoDecoder(info av.VideoInfo) (VideoDecoder, error)
	NewAudioDecoder(info av.AudioInfo, out AudioFormat) (AudioDecoder, error)
}

var backends rwmap.RWMap[string, Backend]

// Register makes b available under its name, replacing any previous
// backend of that name.
func Register(b Backend) {
	backends.Store(b.Name(), b)
}

func Lookup(name string) (Backend, error) {
	b, ok := backends.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
	return b, nil
}

// Backends lists the registered backend names.
func Backends() []string {
	var names []string
	backends.Range(func(name string, _ Backend) bool {
		names = append(names, name)
		return true
	})
	return names
}

func init() {
	Register(Soft{})
}
