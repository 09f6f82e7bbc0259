package flv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/zijiren233/flvplay/av"
)

// Reader reads packets sequentially from a non seekable FLV stream.
type Reader struct {
	r            *bufio.Reader
	inited       bool
	flags        uint8
	tagHeaderBuf []byte
	bufSize      int
}

type ReaderConf func(*Reader)

func WithReaderBuffer(size int) ReaderConf {
	return func(r *Reader) {
		r.bufSize = size
	}
}

func NewReader(r io.Reader, conf ...ReaderConf) *Reader {
	reader := &Reader{
		tagHeaderBuf: make([]byte, headerLen),
		bufSize:      1024,
	}
	for _, rc := range conf {
		rc(reader)
	}
	reader.r = bufio.NewReaderSize(r, reader.bufSize)
	return reader
}

var ErrHeader = errors.New("read flv header error")
var ErrPreDataLen = errors.New("read flv pre data len error")

// checkFileHeader validates the 9 byte file header and returns its flags.
func checkFileHeader(b []byte) (uint8, error) {
	if !bytes.Equal(b[:4], FlvHeader[:4]) {
		return 0, ErrHeader
	}
	if binary.BigEndian.Uint32(b[5:9]) < uint32(len(FlvHeader)) {
		return 0, ErrHeader
	}
	return b[4], nil
}

func (fr *Reader) readHeader() error {
	if _, err := io.ReadFull(fr.r, fr.tagHeaderBuf[:9]); err != nil {
		return err
	}
	flags, err := checkFileHeader(fr.tagHeaderBuf[:9])
	if err != nil {
		return err
	}
	skip := int(binary.BigEndian.Uint32(fr.tagHeaderBuf[5:9])) - len(FlvHeader)
	if _, err := fr.r.Discard(skip); err != nil {
		return err
	}
	if _, err := io.ReadFull(fr.r, fr.tagHeaderBuf[:4]); err != nil {
		return err
	}
	fr.flags = flags
	fr.inited = true
	return nil
}

// HasAudio reports the audio flag of the file header. Valid after the first Read.
func (fr *Reader) HasAudio() bool {
	return fr.flags&flagsAudio != 0
}

// HasVideo reports the video flag of the file header. Valid after the first Read.
func (fr *Reader) HasVideo() bool {
	return fr.flags&flagsVideo != 0
}

func (fr *Reader) Read() (p *av.Packet, err error) {
	if !fr.inited {
		if err := fr.readHeader(); err != nil {
			return nil, err
		}
	}

	if _, err := io.ReadFull(fr.r, fr.tagHeaderBuf); err != nil {
		return nil, err
	}
	h := parseTagHeader(fr.tagHeaderBuf)
	p = new(av.Packet)
	p.IsVideo = h.TagType == av.TAG_VIDEO
	p.IsAudio = h.TagType == av.TAG_AUDIO
	p.IsMetadata = h.TagType == av.TAG_SCRIPTDATAAMF0
	p.TimeStamp = h.Timestamp
	p.StreamID = h.StreamID
	p.Data = make([]byte, h.DataSize)
	if _, err := io.ReadFull(fr.r, p.Data); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(fr.r, fr.tagHeaderBuf[:4]); err != nil {
		return nil, err
	}
	preDataLen := binary.BigEndian.Uint32(fr.tagHeaderBuf[:4])
	if preDataLen != h.DataSize+headerLen {
		return nil, ErrPreDataLen
	}

	if err := DemuxHeader(p); err != nil {
		return nil, err
	}
	return p, nil
}
