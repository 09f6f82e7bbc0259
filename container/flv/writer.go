package flv

import (
	"errors"
	"io"
	"sync"

	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/stream"
)

const (
	flagsAudio = 0x04
	flagsVideo = 0x01
)

var (
	FlvHeader          = []byte{0x46, 0x4c, 0x56, 0x01, 0x05, 0x00, 0x00, 0x00, 0x09}
	FlvFirstPreTagSize = []byte{0x00, 0x00, 0x00, 0x00}
	FlvFirstHeader     = append(FlvHeader, FlvFirstPreTagSize...)
)

// Writer serializes packets into an FLV byte stream. Packet data must hold
// the complete tag body, media header byte(s) included.
type Writer struct {
	w      *stream.Writer
	inited bool
	flags  uint8

	mu     sync.Mutex
	closed bool
}

type WriterConf func(*Writer)

// WithStreams sets the audio/video presence flags written in the file header.
func WithStreams(hasAudio, hasVideo bool) WriterConf {
	return func(w *Writer) {
		w.flags = 0
		if hasAudio {
			w.flags |= flagsAudio
		}
		if hasVideo {
			w.flags |= flagsVideo
		}
	}
}

func NewWriter(w io.Writer, conf ...WriterConf) *Writer {
	writer := &Writer{
		flags: flagsAudio | flagsVideo,
	}
	for _, fc := range conf {
		fc(writer)
	}
	writer.w = stream.NewWriter(w, stream.BigEndian)
	return writer
}

var ErrWriterClosed = errors.New("flv writer closed")

func (w *Writer) Write(p *av.Packet) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if !w.inited {
		header := make([]byte, len(FlvFirstHeader))
		copy(header, FlvFirstHeader)
		header[4] = w.flags
		if err := w.w.Bytes(header).Error(); err != nil {
			return err
		}
		w.inited = true
	}

	var typeID uint8
	if p.IsVideo {
		typeID = av.TAG_VIDEO
	} else if p.IsMetadata {
		typeID = av.TAG_SCRIPTDATAAMF0
	} else if p.IsAudio {
		typeID = av.TAG_AUDIO
	} else {
		return errors.New("not allowed packet type")
	}

	dataLen := len(p.Data)
	preDataLen := dataLen + headerLen
	timestampExt := p.TimeStamp >> 24

	return w.w.
		U8(typeID).
		U24(uint32(dataLen)).
		U24(p.TimeStamp & 0xffffff).
		U8(uint8(timestampExt)).
		U24(0).
		Bytes(p.Data).
		U32(uint32(preDataLen)).Error()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	return nil
}

// VideoTagBody builds a video tag body for a non-AVC codec.
func VideoTagBody(frameType, codecID uint8, payload []byte) []byte {
	b := make([]byte, 1, 1+len(payload))
	b[0] = frameType<<4 | codecID&0x0f
	return append(b, payload...)
}

// AudioTagBody builds an audio tag body for a non-AAC sound format.
func AudioTagBody(format, rate, size, soundType uint8, payload []byte) []byte {
	b := make([]byte, 1, 1+len(payload))
	b[0] = format<<4 | (rate&0x3)<<2 | (size&0x1)<<1 | soundType&0x1
	return append(b, payload...)
}
