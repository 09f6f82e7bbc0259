package flv

import (
	"fmt"

	"github.com/zijiren233/flvplay/av"
)

const (
	headerLen = 11
	// prevTagSizeLen is the length of the PreviousTagSize field following each tag.
	prevTagSizeLen = 4
)

type FlvTagHeader struct {
	TagType   uint8
	DataSize  uint32
	Timestamp uint32
	StreamID  uint32
}

func u24BE(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// parseTagHeader decodes the 11 byte tag header at the start of b.
func parseTagHeader(b []byte) FlvTagHeader {
	return FlvTagHeader{
		TagType:   b[0] & 0x1f,
		DataSize:  u24BE(b[1:4]),
		Timestamp: uint32(b[7])<<24 | u24BE(b[4:7]),
		StreamID:  u24BE(b[8:11]),
	}
}

// mediaTag holds the header fields of an audio or video tag body. Field
// values use the SOUND_*, FRAME_*, CODEC_* and AVC_* constants of package av.
type mediaTag struct {
	// audio: format UB[4], rate UB[2], size UB[1], type UB[1]
	soundFormat   uint8
	soundRate     uint8
	soundSize     uint8
	soundType     uint8
	aacPacketType uint8

	// video: frame type UB[4], codec UB[4], then AVC packet type and
	// composition time SI24 for AVC only
	frameType       uint8
	codecID         uint8
	avcPacketType   uint8
	compositionTime int32
}

type FlvTagBody struct {
	mediat mediaTag
}

func (tag *FlvTagBody) SoundFormat() uint8 {
	return tag.mediat.soundFormat
}

func (tag *FlvTagBody) SoundRate() uint8 {
	return tag.mediat.soundRate
}

func (tag *FlvTagBody) SoundSize() uint8 {
	return tag.mediat.soundSize
}

func (tag *FlvTagBody) SoundType() uint8 {
	return tag.mediat.soundType
}

func (tag *FlvTagBody) AACPacketType() uint8 {
	return tag.mediat.aacPacketType
}

func (tag *FlvTagBody) IsKeyFrame() bool {
	return tag.mediat.frameType == av.FRAME_KEY
}

func (tag *FlvTagBody) IsSeq() bool {
	return tag.mediat.frameType == av.FRAME_KEY &&
		tag.mediat.codecID == av.CODEC_AVC &&
		tag.mediat.avcPacketType == av.AVC_SEQHDR
}

func (tag *FlvTagBody) CodecID() uint8 {
	return tag.mediat.codecID
}

func (tag *FlvTagBody) CompositionTime() int32 {
	return tag.mediat.compositionTime
}

// ParseMediaTagHeader, parse video, audio, tag header
func (tag *FlvTagBody) ParseMediaTagHeader(b []byte, isVideo bool) (n int, err error) {
	switch isVideo {
	case false:
		n, err = tag.parseAudioHeader(b)
	case true:
		n, err = tag.parseVideoHeader(b)
	}
	return
}

var ErrInvalidAudioData = fmt.Errorf("invalid audio data")
var ErrInvalidVideoData = fmt.Errorf("invalid video data")

func (tag *FlvTagBody) parseAudioHeader(b []byte) (n int, err error) {
	if len(b) < 1 {
		return 0, ErrInvalidAudioData
	}
	flags := b[0]
	tag.mediat.soundFormat = flags >> 4
	tag.mediat.soundRate = (flags >> 2) & 0x3
	tag.mediat.soundSize = (flags >> 1) & 0x1
	tag.mediat.soundType = flags & 0x1
	n++
	switch tag.mediat.soundFormat {
	case av.SOUND_AAC:
		if len(b) < 2 {
			return 1, ErrInvalidAudioData
		}
		tag.mediat.aacPacketType = b[1]
		n++
	}
	return
}

func (tag *FlvTagBody) parseVideoHeader(b []byte) (n int, err error) {
	if len(b) < 1 {
		return 0, ErrInvalidVideoData
	}
	flags := b[0]
	tag.mediat.frameType = flags >> 4
	tag.mediat.codecID = flags & 0x0f
	n++
	if tag.mediat.frameType == av.FRAME_INTER || tag.mediat.frameType == av.FRAME_KEY {
		switch tag.mediat.codecID {
		case av.CODEC_AVC:
			if len(b) < 5 {
				return 1, ErrInvalidVideoData
			}
			tag.mediat.avcPacketType = b[1]
			n++
			for _, v := range b[2:5] {
				tag.mediat.compositionTime = tag.mediat.compositionTime<<8 + int32(v)
				n++
			}
			// sign extend the 24 bit composition time
			tag.mediat.compositionTime = tag.mediat.compositionTime << 8 >> 8
		case av.CODEC_ON2VP6, av.CODEC_ON2VP6ALPHA:
			// one byte of horizontal/vertical adjustment
			if len(b) < 2 {
				return 1, ErrInvalidVideoData
			}
			n++
		}
	}
	return
}

// DemuxHeader parses the media tag header of p, stores it in p.Header and
// strips it from p.Data so that only the codec payload remains.
func DemuxHeader(p *av.Packet) error {
	if !p.IsAudio && !p.IsVideo {
		return nil
	}
	tag := new(FlvTagBody)
	n, err := tag.ParseMediaTagHeader(p.Data, p.IsVideo)
	if err != nil {
		return err
	}
	p.Header = tag
	p.Data = p.Data[n:]
	return nil
}
