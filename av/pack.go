package av

import "errors"

var ErrClosed = errors.New("stream closed")

// Header can be converted to AudioPacketHeader or VideoPacketHeader
type Packet struct {
	IsAudio    bool
	IsVideo    bool
	IsMetadata bool
	TimeStamp  uint32 // dts
	StreamID   uint32
	Header     PacketHeader
	Data       []byte
}

func (p *Packet) Type() int {
	if p.IsVideo {
		return TAG_VIDEO
	} else if p.IsMetadata {
		return TAG_SCRIPTDATAAMF0
	} else {
		return TAG_AUDIO
	}
}

func (p *Packet) Clone() *Packet {
	var tp = *p
	tp.Data = make([]byte, len(p.Data))
	copy(tp.Data, p.Data)
	return &tp
}

// IsKeyFrame reports whether p is a video key frame. Audio and metadata
// packets are never key frames.
func (p *Packet) IsKeyFrame() bool {
	if !p.IsVideo {
		return false
	}
	vh, ok := p.Header.(VideoPacketHeader)
	return ok && vh.IsKeyFrame()
}

type PacketHeader interface {
}

type AudioPacketHeader interface {
	PacketHeader
	SoundFormat() uint8
	SoundRate() uint8
	SoundSize() uint8
	SoundType() uint8
	AACPacketType() uint8
}

type VideoPacketHeader interface {
	PacketHeader
	IsKeyFrame() bool
	IsSeq() bool
	CodecID() uint8
	CompositionTime() int32
}

// VideoInfo describes a video stream as announced by its first tag.
type VideoInfo struct {
	CodecID uint8
	Width   int
	Height  int
}

// AudioInfo describes an audio stream as announced by its first tag.
type AudioInfo struct {
	SoundFormat uint8
	SampleRate  int
	// SampleSize is in bytes per sample and channel.
	SampleSize int
	Channels   int
}
