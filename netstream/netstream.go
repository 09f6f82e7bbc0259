// Package netstream drives playback of one FLV stream: it parses ahead,
// decodes what the play head reached and reports status events.
//
// The owner calls Advance once per render tick. Audio is pulled from a
// separate goroutine through the attached sound.Handler.
package netstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/flvplay/cache"
	"github.com/zijiren233/flvplay/clock"
	"github.com/zijiren233/flvplay/codec"
	"github.com/zijiren233/flvplay/container/flv"
	"github.com/zijiren233/flvplay/loader"
	"github.com/zijiren233/flvplay/sound"
)

const DefaultBufferTime = 100 * time.Millisecond

var (
	ErrNotPlaying = errors.New("netstream: no stream playing")
	ErrNoStreams  = errors.New("netstream: no audio or video in stream")
)

type DecodingState int

const (
	StateNone DecodingState = iota
	StateBuffering
	StateDecoding
	StateStopped
)

func (s DecodingState) String() string {
	switch s {
	case StateBuffering:
		return "buffering"
	case StateDecoding:
		return "decoding"
	case StateStopped:
		return "stopped"
	}
	return "none"
}

type PauseMode int

const (
	PauseToggle PauseMode = iota
	PausePause
	PauseUnpause
)

type NetStream struct {
	// mu guards the session: parser, decoders, play head and state.
	mu sync.Mutex

	url        string
	src        loader.Source
	parser     *flv.Parser
	probing    bool
	state      DecodingState
	playHead   *PlayHead
	clock      *clock.InterruptableClock
	bufferTime uint32

	videoDecoder codec.VideoDecoder
	audioDecoder codec.AudioDecoder
	videoTs      codec.Timestamps
	audioTs      codec.Timestamps
	videoDone    bool
	audioDone    bool
	audioOverrun bool
	flushed      bool
	metadata     map[string]any
	pendingMeta  []*flv.Metadata

	audioQueue *cache.AudioQueue
	frameCache *cache.FrameCache
	statuses   *statusQueue
	streamer   *audioStreamer
	volume     atomic.Int32

	sourceClock clock.VirtualClock
	backend     codec.Backend
	opener      loader.Opener
	sound       sound.Handler
	audioFormat codec.AudioFormat
	parseChunk  int
	onStatus    func(StatusCode)
	onMetadata  func(*flv.Metadata)
	log         *logrus.Entry
}

type NetStreamConf func(*NetStream)

func WithBufferTime(d time.Duration) NetStreamConf {
	return func(ns *NetStream) {
		ns.bufferTime = uint32(max(d, 0).Milliseconds())
	}
}

func WithAudioQueueCap(n int) NetStreamConf {
	return func(ns *NetStream) {
		ns.audioQueue = cache.NewAudioQueue(n)
	}
}

// WithSoundHandler sets where decoded audio is attached. Without one,
// decoded audio is dropped.
func WithSoundHandler(h sound.Handler) NetStreamConf {
	return func(ns *NetStream) {
		ns.sound = h
	}
}

// WithAudioFormat sets the PCM layout the sound handler expects.
func WithAudioFormat(f codec.AudioFormat) NetStreamConf {
	return func(ns *NetStream) {
		ns.audioFormat = f
	}
}

// WithStatusHandler sets the callback receiving status events. It is
// invoked from Advance with no lock held.
func WithStatusHandler(f func(StatusCode)) NetStreamConf {
	return func(ns *NetStream) {
		ns.onStatus = f
	}
}

// WithMetadataHandler sets the callback receiving script tags once the
// play head reaches them.
func WithMetadataHandler(f func(*flv.Metadata)) NetStreamConf {
	return func(ns *NetStream) {
		ns.onMetadata = f
	}
}

// WithClock sets the time source playback follows.
func WithClock(c clock.VirtualClock) NetStreamConf {
	return func(ns *NetStream) {
		ns.sourceClock = c
	}
}

func WithBackend(b codec.Backend) NetStreamConf {
	return func(ns *NetStream) {
		ns.backend = b
	}
}

func WithOpener(o loader.Opener) NetStreamConf {
	return func(ns *NetStream) {
		ns.opener = o
	}
}

func WithLogger(l *logrus.Entry) NetStreamConf {
	return func(ns *NetStream) {
		ns.log = l
	}
}

// WithParseChunk bounds the tags parsed per Advance.
func WithParseChunk(n int) NetStreamConf {
	return func(ns *NetStream) {
		ns.parseChunk = n
	}
}

func New(conf ...NetStreamConf) *NetStream {
	ns := &NetStream{
		bufferTime:  uint32(DefaultBufferTime.Milliseconds()),
		audioQueue:  cache.NewAudioQueue(cache.DefaultAudioQueueCap),
		frameCache:  cache.NewFrameCache(),
		statuses:    newStatusQueue(),
		backend:     codec.Soft{},
		opener:      loader.DefaultOpener,
		audioFormat: codec.CanonicalAudio,
		parseChunk:  flv.DefaultParseChunk,
		log:         logrus.WithField("component", "netstream"),
	}
	ns.volume.Store(100)
	for _, c := range conf {
		c(ns)
	}
	if ns.sourceClock == nil {
		ns.sourceClock = clock.NewSystemClock()
	}
	ns.clock = clock.NewInterruptableClock(ns.sourceClock)
	ns.playHead = NewPlayHead(ns.clock)
	return ns
}

func (ns *NetStream) setStatus(s StatusCode) {
	if ns.statuses.push(s) {
		ns.log.WithField("status", s).Debug("status queued")
	}
}

func (ns *NetStream) setDecodingState(s DecodingState) {
	if ns.state != s {
		ns.log.WithFields(logrus.Fields{"from": ns.state, "to": s}).Debug("decoding state")
		ns.state = s
	}
}

// syncClock runs the playback clock only while playing and decoding with
// room left in the audio queue.
func (ns *NetStream) syncClock() {
	if ns.playHead.State() == PlayStatePlaying && ns.state == StateDecoding && !ns.audioOverrun {
		ns.clock.Resume()
	} else {
		ns.clock.Pause()
	}
}

// Play opens url and starts buffering it. A stream already playing is
// closed first. An "mp3:" prefix is ignored.
func (ns *NetStream) Play(ctx context.Context, url string) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.parser != nil {
		ns.closeSession()
	}
	url = strings.TrimPrefix(url, "mp3:")
	log := ns.log.WithField("url", url)

	src, err := ns.opener.Open(ctx, url)
	if err != nil {
		log.WithError(err).Warn("open stream")
		ns.setStatus(StreamNotFound)
		return fmt.Errorf("open %s: %w", url, err)
	}

	ns.url = url
	ns.src = src
	ns.parser = flv.NewParser(src,
		flv.WithParseChunk(ns.parseChunk),
		flv.WithParserBufferTime(ns.bufferTime),
		flv.WithParserLogger(ns.log.WithField("component", "flv")),
	)
	ns.clock = clock.NewInterruptableClock(ns.sourceClock)
	ns.playHead = NewPlayHead(ns.clock)
	ns.playHead.SetState(PlayStatePlaying)
	ns.setDecodingState(StateBuffering)
	ns.probing = true
	ns.syncClock()

	if err := ns.probe(); err != nil {
		return err
	}
	log.Info("play")
	return nil
}

// probe reads the start of the stream until the media it carries is
// known, then opens the decoders. Data arriving slowly leaves the probe
// pending for later Advance calls.
func (ns *NetStream) probe() error {
	p := ns.parser
	for i := 0; i < 16; i++ {
		progressed, err := p.ParseNextChunk()
		if err != nil {
			return ns.failSetup(err)
		}
		if ns.probeDone() {
			break
		}
		if !progressed {
			return nil
		}
	}
	if !ns.probeDone() {
		return nil
	}
	ns.probing = false

	vi, ai := p.VideoInfo(), p.AudioInfo()
	if vi == nil && ai == nil {
		return ns.failSetup(ErrNoStreams)
	}
	if vi != nil {
		dec, err := ns.backend.NewVideoDecoder(*vi)
		if err != nil {
			return ns.failSetup(err)
		}
		ns.videoDecoder = dec
	}
	if ai != nil {
		dec, err := ns.backend.NewAudioDecoder(*ai, ns.audioFormat)
		if err != nil {
			return ns.failSetup(err)
		}
		ns.audioDecoder = dec
		ns.streamer = &audioStreamer{queue: ns.audioQueue}
		if ns.playHead.State() == PlayStatePlaying {
			ns.attachAudio()
		}
	}
	ns.playHead.Init(ns.videoDecoder != nil, ns.audioDecoder != nil)
	ns.setStatus(PlayStart)
	ns.log.WithFields(logrus.Fields{
		"video": vi,
		"audio": ai,
	}).Debug("stream probed")
	return nil
}

func (ns *NetStream) probeDone() bool {
	p := ns.parser
	if !p.HeaderParsed() {
		return false
	}
	known := (p.VideoInfo() != nil || !p.HasVideo()) && (p.AudioInfo() != nil || !p.HasAudio())
	return known || p.ParsingCompleted() || p.BufferFull()
}

// failSetup reports a stream that cannot be played and drops the session
// so Play can be retried.
func (ns *NetStream) failSetup(err error) error {
	ns.log.WithError(err).WithField("url", ns.url).Warn("stream not playable")
	ns.setStatus(StreamNotFound)
	ns.closeSession()
	return fmt.Errorf("play %s: %w", ns.url, err)
}

func (ns *NetStream) attachAudio() {
	if ns.sound != nil && ns.streamer != nil {
		ns.sound.Attach(ns.streamer)
	}
}

func (ns *NetStream) detachAudio() {
	if ns.sound != nil && ns.streamer != nil {
		ns.sound.Detach(ns.streamer)
	}
}

// closeSession releases everything Play set up. Called with mu held.
func (ns *NetStream) closeSession() {
	ns.detachAudio()
	if ns.streamer != nil {
		ns.streamer.closed.Store(true)
		ns.streamer = nil
	}
	if ns.videoDecoder != nil {
		ns.videoDecoder.Close()
		ns.videoDecoder = nil
	}
	if ns.audioDecoder != nil {
		ns.audioDecoder.Close()
		ns.audioDecoder = nil
	}
	if ns.parser != nil {
		if err := ns.parser.Close(); err != nil {
			ns.log.WithError(err).Debug("close source")
		}
		ns.parser = nil
		ns.src = nil
	}
	ns.audioQueue.Clear()
	ns.frameCache.Reset()
	ns.probing = false
	ns.videoDone, ns.audioDone = false, false
	ns.audioOverrun = false
	ns.flushed = false
	ns.metadata = nil
	ns.pendingMeta = nil
	ns.videoTs.Reset(0)
	ns.audioTs.Reset(0)
	ns.setDecodingState(StateNone)
	ns.clock.Pause()
}

// Close stops playback and drops the stream. Pending status events are
// discarded.
func (ns *NetStream) Close() {
	ns.mu.Lock()
	if ns.parser != nil {
		ns.log.WithField("url", ns.url).Info("close")
	}
	ns.closeSession()
	ns.mu.Unlock()
	ns.statuses.drain()
}

// Pause switches between playing and paused. Pausing twice is the same as
// pausing once.
func (ns *NetStream) Pause(mode PauseMode) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	next := PlayStatePaused
	switch mode {
	case PauseUnpause:
		next = PlayStatePlaying
	case PauseToggle:
		if ns.playHead.State() == PlayStatePaused {
			next = PlayStatePlaying
		}
	}
	if prev := ns.playHead.SetState(next); prev == next {
		return
	}
	if next == PlayStatePaused {
		ns.detachAudio()
	} else {
		ns.attachAudio()
	}
	ns.syncClock()
	ns.log.WithField("state", next).Debug("pause")
}

// Time returns the play head position in milliseconds.
func (ns *NetStream) Time() uint64 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.parser == nil {
		return 0
	}
	return ns.playHead.Position()
}

func (ns *NetStream) BytesLoaded() int64 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.parser == nil {
		return 0
	}
	return ns.parser.BytesLoaded()
}

func (ns *NetStream) BytesTotal() int64 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.parser == nil {
		return 0
	}
	return ns.parser.BytesTotal()
}

// SetBufferTime sets how much must be buffered, in seconds, before
// playback starts or resumes.
func (ns *NetStream) SetBufferTime(seconds float64) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.bufferTime = uint32(max(seconds, 0) * 1000)
	if ns.parser != nil {
		ns.parser.SetBufferTime(ns.bufferTime)
	}
}

func (ns *NetStream) BufferTime() float64 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return float64(ns.bufferTime) / 1000
}

// bufferLength is how far, in milliseconds, frames are buffered beyond the
// play head. Called with mu held.
func (ns *NetStream) bufferLength() uint32 {
	until := uint64(ns.parser.BufferedDuration())
	pos := ns.playHead.Position()
	if until <= pos {
		return 0
	}
	return uint32(until - pos)
}

func (ns *NetStream) BufferLength() uint32 {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.parser == nil {
		return 0
	}
	return ns.bufferLength()
}

func (ns *NetStream) DecodingState() DecodingState {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.state
}

func (ns *NetStream) PlaybackState() PlaybackState {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.playHead.State()
}

// VideoFrame returns the most recently published picture, nil if none.
func (ns *NetStream) VideoFrame() *av.VideoFrame {
	return ns.frameCache.Frame()
}

// NewFrameReady reports whether a picture was published since the last
// call.
func (ns *NetStream) NewFrameReady() bool {
	return ns.frameCache.NewFrameReady()
}

// VideoWidth returns the width of the current picture, falling back to the
// width announced in metadata.
func (ns *NetStream) VideoWidth() int {
	if f := ns.frameCache.Frame(); f != nil {
		return f.Image.Bounds().Dx()
	}
	return ns.metadataInt("width")
}

func (ns *NetStream) VideoHeight() int {
	if f := ns.frameCache.Frame(); f != nil {
		return f.Image.Bounds().Dy()
	}
	return ns.metadataInt("height")
}

func (ns *NetStream) metadataInt(key string) int {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	v, _ := ns.metadata[key].(float64)
	return int(v)
}

// Metadata returns the values of the last onMetaData reached.
func (ns *NetStream) Metadata() map[string]any {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.metadata
}

// SetVolume sets the audio volume as a percentage, applied to audio
// decoded from now on.
func (ns *NetStream) SetVolume(v int) {
	ns.volume.Store(int32(max(min(v, 100), 0)))
}

func (ns *NetStream) Volume() int {
	return int(ns.volume.Load())
}

// URL returns the url being played, empty when closed.
// Probing reports whether Play is still waiting for enough of the stream to
// know its codecs. Seek fails until it returns false.
func (ns *NetStream) Probing() bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.parser != nil && ns.probing
}

func (ns *NetStream) URL() string {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.parser == nil {
		return ""
	}
	return ns.url
}

// audioStreamer feeds the sound handler from the audio queue.
type audioStreamer struct {
	queue  *cache.AudioQueue
	closed atomic.Bool
}

func (s *audioStreamer) Fill(buf []byte) bool {
	if s.closed.Load() {
		clear(buf)
		return false
	}
	n := s.queue.PullInto(buf)
	clear(buf[n:])
	return true
}
