package flv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/flvplay/cache"
	"github.com/zijiren233/flvplay/loader"
	"github.com/zijiren233/flvplay/protocol/amf"
)

const (
	DefaultParseChunk = 10
	// MinReadAhead is the shortest span, in milliseconds, the parser buffers
	// before it stops reading ahead.
	MinReadAhead = 2000
	// DefaultVideoInterval is used until two video frames or a frame rate
	// announcement give a better estimate.
	DefaultVideoInterval = 40

	maxSeekScanTags = 4096
	fileHeaderLen   = 9
)

var (
	ErrNotSeekable = errors.New("flv: stream header not parsed yet")
	ErrNoCuePoints = errors.New("flv: no seekable position found")
)

// Metadata is a script tag found in the stream, usually onMetaData.
type Metadata struct {
	TimeStamp uint32
	Name      string
	Values    amf.Object
}

// Parser reads tags from a Source that may still be loading. It never
// blocks: when the next tag is not fully loaded the parse call returns and
// the tag is retried later.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	src loader.Source
	log *logrus.Entry

	headerDone      bool
	flags           uint8
	pos             int64
	lastParsedPos   int64
	parsingComplete bool

	cache *cache.Cache

	index         cueIndex
	indexPos      int64
	lastIndexedTs uint32
	sawVideo      bool

	videoInfo   *av.VideoInfo
	audioInfo   *av.AudioInfo
	lastVideoTs uint32
	lastAudioTs uint32
	videoDelta  uint32
	audioDelta  uint32

	// newest queued timestamp per track and overall since the last seek
	videoEnd uint32
	audioEnd uint32
	frontier uint32

	frameRate float64
	duration  float64
	fileSize  int64
	metadata  []*Metadata

	bufferTime uint32
	chunkTags  int
	tagBuf     [headerLen]byte
}

type ParserConf func(*Parser)

// WithParseChunk bounds the number of tags parsed per ParseNextChunk call.
func WithParseChunk(n int) ParserConf {
	return func(p *Parser) {
		if n > 0 {
			p.chunkTags = n
		}
	}
}

func WithParserLogger(l *logrus.Entry) ParserConf {
	return func(p *Parser) {
		p.log = l
	}
}

// WithParserBufferTime sets the read ahead target in milliseconds.
func WithParserBufferTime(ms uint32) ParserConf {
	return func(p *Parser) {
		p.bufferTime = ms
	}
}

func NewParser(src loader.Source, conf ...ParserConf) *Parser {
	p := &Parser{
		src:       src,
		log:       logrus.WithField("component", "flv"),
		cache:     cache.NewCache(),
		chunkTags: DefaultParseChunk,
		fileSize:  -1,
	}
	for _, c := range conf {
		c(p)
	}
	return p
}

// readAt fills b from off. It reports false without error when the bytes
// are not loaded yet or the source ended first.
func (p *Parser) readAt(b []byte, off int64) (bool, error) {
	n, err := p.src.ReadAt(b, off)
	if n == len(b) {
		return true, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false, nil
	}
	return false, err
}

// starved handles a tag that could not be read entirely. Once the source is
// complete the missing bytes will never arrive.
func (p *Parser) starved() {
	if p.src.Complete() {
		p.parsingComplete = true
	}
}

func (p *Parser) parseHeader() (bool, error) {
	var b [fileHeaderLen]byte
	ok, err := p.readAt(b[:], 0)
	if err != nil {
		return false, err
	}
	if !ok {
		if p.src.Complete() {
			return false, ErrHeader
		}
		return false, nil
	}
	flags, err := checkFileHeader(b[:])
	if err != nil {
		return false, err
	}
	p.flags = flags
	p.pos = int64(binary.BigEndian.Uint32(b[5:9])) + prevTagSizeLen
	p.indexPos = p.pos
	p.lastParsedPos = p.pos
	p.headerDone = true
	p.log.WithFields(logrus.Fields{
		"audio": flags&flagsAudio != 0,
		"video": flags&flagsVideo != 0,
	}).Debug("flv header parsed")
	return true, nil
}

// ParseNextTag parses one tag into the frame queues. It reports whether a
// tag was consumed.
func (p *Parser) ParseNextTag() (bool, error) {
	if p.parsingComplete {
		return false, nil
	}
	if !p.headerDone {
		ok, err := p.parseHeader()
		if !ok || err != nil {
			return false, err
		}
	}

	ok, err := p.readAt(p.tagBuf[:], p.pos)
	if err != nil {
		return false, err
	}
	if !ok {
		p.starved()
		return false, nil
	}
	h := parseTagHeader(p.tagBuf[:])
	data := make([]byte, h.DataSize)
	if ok, err = p.readAt(data, p.pos+headerLen); err != nil {
		return false, err
	} else if !ok {
		p.starved()
		return false, nil
	}

	tagPos := p.pos
	p.pos += headerLen + int64(h.DataSize) + prevTagSizeLen
	p.lastParsedPos = max(p.lastParsedPos, p.pos)
	if tagPos >= p.indexPos {
		p.indexTag(h, data, tagPos)
		p.indexPos = p.pos
	}

	switch h.TagType {
	case av.TAG_AUDIO, av.TAG_VIDEO:
		p.pushMedia(h, data)
	case av.TAG_SCRIPTDATAAMF0:
		p.pushScript(h, data)
	default:
		p.log.WithField("type", h.TagType).Debug("skipping unknown tag")
	}
	return true, nil
}

func (p *Parser) pushMedia(h FlvTagHeader, data []byte) {
	pkt := &av.Packet{
		IsVideo:   h.TagType == av.TAG_VIDEO,
		IsAudio:   h.TagType == av.TAG_AUDIO,
		TimeStamp: h.Timestamp,
		StreamID:  h.StreamID,
		Data:      data,
	}
	if err := DemuxHeader(pkt); err != nil {
		p.log.WithError(err).WithField("ts", h.Timestamp).Warn("skipping malformed tag")
		return
	}
	if pkt.IsVideo {
		p.noteVideo(pkt)
	} else {
		p.noteAudio(pkt)
	}
	if err := p.cache.Write(pkt); err != nil {
		p.log.WithError(err).WithField("ts", pkt.TimeStamp).Warn("dropping frame")
		return
	}
	if pkt.IsVideo {
		p.videoEnd = pkt.TimeStamp
	} else {
		p.audioEnd = pkt.TimeStamp
	}
	p.frontier = max(p.frontier, pkt.TimeStamp)
}

func (p *Parser) noteVideo(pkt *av.Packet) {
	vh := pkt.Header.(av.VideoPacketHeader)
	if p.videoInfo == nil {
		p.videoInfo = &av.VideoInfo{CodecID: vh.CodecID()}
		p.lastVideoTs = pkt.TimeStamp
		return
	}
	if vh.IsSeq() {
		return
	}
	if pkt.TimeStamp > p.lastVideoTs {
		p.videoDelta = pkt.TimeStamp - p.lastVideoTs
	}
	p.lastVideoTs = pkt.TimeStamp
}

func (p *Parser) noteAudio(pkt *av.Packet) {
	ah := pkt.Header.(av.AudioPacketHeader)
	if p.audioInfo == nil {
		p.audioInfo = &av.AudioInfo{
			SoundFormat: ah.SoundFormat(),
			SampleRate:  av.SoundRateHz(ah.SoundRate()),
			SampleSize:  int(ah.SoundSize()) + 1,
			Channels:    int(ah.SoundType()) + 1,
		}
		p.lastAudioTs = pkt.TimeStamp
		return
	}
	if pkt.TimeStamp > p.lastAudioTs {
		p.audioDelta = pkt.TimeStamp - p.lastAudioTs
	}
	p.lastAudioTs = pkt.TimeStamp
}

func (p *Parser) pushScript(h FlvTagHeader, data []byte) {
	sd, err := amf.DecodeScriptData(data)
	if err != nil {
		p.log.WithError(err).Warn("skipping malformed script tag")
		return
	}
	values, _ := sd.Object()
	if sd.Name == "onMetaData" && values != nil {
		if v, ok := values.Number("framerate"); ok && v > 0 {
			p.frameRate = v
		}
		if v, ok := values.Number("duration"); ok && v > 0 {
			p.duration = v
		}
		if v, ok := values.Number("filesize"); ok && v > 0 {
			p.fileSize = int64(v)
		}
	}
	p.metadata = append(p.metadata, &Metadata{
		TimeStamp: h.Timestamp,
		Name:      sd.Name,
		Values:    values,
	})
}

// indexTag records seekable positions: every video key frame, and for
// streams without video one point every audioCueSpacing milliseconds.
func (p *Parser) indexTag(h FlvTagHeader, body []byte, pos int64) {
	p.lastIndexedTs = h.Timestamp
	switch h.TagType {
	case av.TAG_VIDEO:
		p.sawVideo = true
		if len(body) > 0 && body[0]>>4 == av.FRAME_KEY {
			p.index.add(h.Timestamp, pos)
		}
	case av.TAG_AUDIO:
		if p.sawVideo {
			return
		}
		if last, ok := p.index.last(); !ok || h.Timestamp >= last.ts+audioCueSpacing {
			p.index.add(h.Timestamp, pos)
		}
	}
}

// scanIndex indexes tags beyond the parse position until target is covered,
// without queueing any frame.
func (p *Parser) scanIndex(target uint32) error {
	var first [1]byte
	for n := 0; n < maxSeekScanTags; n++ {
		if p.index.len() > 0 && p.lastIndexedTs >= target {
			return nil
		}
		ok, err := p.readAt(p.tagBuf[:], p.indexPos)
		if err != nil || !ok {
			return err
		}
		h := parseTagHeader(p.tagBuf[:])
		var body []byte
		if h.DataSize > 0 {
			if ok, err = p.readAt(first[:], p.indexPos+headerLen); err != nil || !ok {
				return err
			}
			body = first[:]
		}
		p.indexTag(h, body, p.indexPos)
		p.indexPos += headerLen + int64(h.DataSize) + prevTagSizeLen
	}
	return nil
}

// Seek moves parsing to the latest seekable position not after target and
// returns its timestamp. Queued frames are dropped.
func (p *Parser) Seek(target uint32) (uint32, error) {
	if !p.headerDone {
		return 0, ErrNotSeekable
	}
	if err := p.scanIndex(target); err != nil {
		return 0, fmt.Errorf("flv: index scan: %w", err)
	}
	cue, ok := p.index.floor(target)
	if !ok {
		return 0, ErrNoCuePoints
	}
	p.pos = cue.pos
	p.parsingComplete = false
	p.cache.Clear()
	p.videoEnd, p.audioEnd, p.frontier = cue.ts, cue.ts, cue.ts
	p.log.WithFields(logrus.Fields{
		"target": target,
		"found":  cue.ts,
	}).Debug("seek")
	return cue.ts, nil
}

// bufferFull reports whether enough frames are queued to stop reading
// ahead: every buffered track spans the read ahead target, or a queue hit
// its capacity.
func (p *Parser) bufferFull() bool {
	video, audio := p.buffered()
	if !video && !audio {
		return false
	}
	return p.cache.Full() || p.cache.Span(video, audio) >= max(p.bufferTime, MinReadAhead)
}

// buffered reports which tracks count towards the buffer. A track counts
// once its codec is known, until it lags the rest of the stream by more
// than MinReadAhead.
func (p *Parser) buffered() (video, audio bool) {
	video = p.videoInfo != nil && !p.trackEnded(p.videoEnd)
	audio = p.audioInfo != nil && !p.trackEnded(p.audioEnd)
	return video, audio
}

func (p *Parser) trackEnded(end uint32) bool {
	return p.parsingComplete || p.frontier-end > MinReadAhead
}

// ParseNextChunk parses up to the configured number of tags, stopping early
// once the read ahead is full or the source has no more bytes yet. It
// reports whether any tag was parsed.
func (p *Parser) ParseNextChunk() (bool, error) {
	progressed := false
	for i := 0; i < p.chunkTags; i++ {
		if p.bufferFull() {
			break
		}
		ok, err := p.ParseNextTag()
		if err != nil {
			return progressed, err
		}
		if !ok {
			break
		}
		progressed = true
	}
	return progressed, nil
}

func (p *Parser) PeekNextVideoFrame() (uint32, bool) {
	if pkt := p.cache.Video().Peek(); pkt != nil {
		return pkt.TimeStamp, true
	}
	return 0, false
}

func (p *Parser) NextVideoFrame() *av.Packet {
	return p.cache.Video().Pop()
}

func (p *Parser) PeekNextAudioFrame() (uint32, bool) {
	if pkt := p.cache.Audio().Peek(); pkt != nil {
		return pkt.TimeStamp, true
	}
	return 0, false
}

func (p *Parser) NextAudioFrame() *av.Packet {
	return p.cache.Audio().Pop()
}

// NextMetadata pops the oldest script tag not handed out yet, provided its
// timestamp is not after upTo.
func (p *Parser) NextMetadata(upTo uint32) *Metadata {
	if len(p.metadata) == 0 || p.metadata[0].TimeStamp > upTo {
		return nil
	}
	m := p.metadata[0]
	p.metadata[0] = nil
	p.metadata = p.metadata[1:]
	return m
}

// BufferedDuration returns the timestamp up to which every buffered track
// has frames queued, 0 when one of them has none. Once parsing completed
// it covers whatever is left in the queues.
func (p *Parser) BufferedDuration() uint32 {
	if p.parsingComplete {
		return max(p.cache.BufferedUntil(true, false), p.cache.BufferedUntil(false, true))
	}
	return p.cache.BufferedUntil(p.buffered())
}

// VideoEnded reports whether no video is expected any more: parsing
// completed or the video track fell silent for longer than MinReadAhead
// while other tags kept coming.
func (p *Parser) VideoEnded() bool {
	return p.videoInfo == nil || p.trackEnded(p.videoEnd)
}

// AudioEnded is VideoEnded for the audio track.
func (p *Parser) AudioEnded() bool {
	return p.audioInfo == nil || p.trackEnded(p.audioEnd)
}

// BufferFull reports whether the parser stopped reading ahead because
// enough frames are queued.
func (p *Parser) BufferFull() bool {
	return p.bufferFull()
}

func (p *Parser) SetBufferTime(ms uint32) {
	p.bufferTime = ms
}

func (p *Parser) ParsingCompleted() bool {
	return p.parsingComplete
}

// HeaderParsed reports whether the file header was read and validated.
func (p *Parser) HeaderParsed() bool {
	return p.headerDone
}

// HasAudio and HasVideo return the presence flags of the file header.
func (p *Parser) HasAudio() bool {
	return p.flags&flagsAudio != 0
}

func (p *Parser) HasVideo() bool {
	return p.flags&flagsVideo != 0
}

// BytesLoaded returns the offset up to which the stream was parsed.
func (p *Parser) BytesLoaded() int64 {
	return p.lastParsedPos
}

// BytesTotal returns the stream size, falling back to the size announced in
// metadata and then to the bytes loaded so far.
func (p *Parser) BytesTotal() int64 {
	if t := p.src.Total(); t >= 0 {
		return t
	}
	if p.fileSize > 0 {
		return p.fileSize
	}
	return p.src.Loaded()
}

func (p *Parser) VideoInfo() *av.VideoInfo {
	return p.videoInfo
}

func (p *Parser) AudioInfo() *av.AudioInfo {
	return p.audioInfo
}

// VideoFrameInterval estimates the display duration of one video frame in
// milliseconds.
func (p *Parser) VideoFrameInterval() uint32 {
	switch {
	case p.videoDelta > 0:
		return p.videoDelta
	case p.frameRate > 0:
		return uint32(1000/p.frameRate + 0.5)
	}
	return DefaultVideoInterval
}

// AudioFrameInterval is the observed distance between audio frames, 0
// before two frames were seen.
func (p *Parser) AudioFrameInterval() uint32 {
	return p.audioDelta
}

// Duration returns the stream duration announced by onMetaData in
// milliseconds, 0 when unknown.
func (p *Parser) Duration() uint32 {
	return uint32(p.duration * 1000)
}

func (p *Parser) Close() error {
	p.cache.Clear()
	return p.src.Close()
}
