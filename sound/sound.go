// Package sound pulls decoded PCM from attached streams and mixes it into
// an output.
package sound

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/flvplay/codec"
	"github.com/zijiren233/gencontainer/dllist"
)

// Streamer is a pull source of s16le PCM in the mixer's format. Fill writes
// into buf, zero padding what it cannot fill, and returns false to be
// detached.
type Streamer interface {
	Fill(buf []byte) bool
}

type StreamerFunc func(buf []byte) bool

func (f StreamerFunc) Fill(buf []byte) bool {
	return f(buf)
}

// Handler is what a stream attaches its audio to. Streamers are matched by
// equality, so they must be comparable (pointers usually).
type Handler interface {
	Attach(s Streamer)
	Detach(s Streamer)
}

const DefaultPeriod = 20 * time.Millisecond

// Mixer sums every attached Streamer into one output, one period per tick.
type Mixer struct {
	mu        sync.Mutex
	streamers *dllist.Dllist[Streamer]

	out    io.Writer
	format codec.AudioFormat
	period time.Duration
	log    *logrus.Entry
}

type MixerConf func(*Mixer)

func WithFormat(f codec.AudioFormat) MixerConf {
	return func(m *Mixer) {
		m.format = f
	}
}

func WithPeriod(d time.Duration) MixerConf {
	return func(m *Mixer) {
		if d > 0 {
			m.period = d
		}
	}
}

func WithMixerLogger(l *logrus.Entry) MixerConf {
	return func(m *Mixer) {
		m.log = l
	}
}

func NewMixer(out io.Writer, conf ...MixerConf) *Mixer {
	m := &Mixer{
		streamers: dllist.New[Streamer](),
		out:       out,
		format:    codec.CanonicalAudio,
		period:    DefaultPeriod,
		log:       logrus.WithField("component", "sound"),
	}
	for _, c := range conf {
		c(m)
	}
	return m
}

func (m *Mixer) Attach(s Streamer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for e := m.streamers.Front(); e != nil; e = e.Next() {
		if e.Value == s {
			return
		}
	}
	m.streamers.PushBack(s)
	m.log.WithField("streams", m.streamers.Len()).Debug("stream attached")
}

func (m *Mixer) Detach(s Streamer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for e := m.streamers.Front(); e != nil; e = e.Next() {
		if e.Value == s {
			m.streamers.Remove(e)
			m.log.WithField("streams", m.streamers.Len()).Debug("stream detached")
			return
		}
	}
}

// Attached returns the number of attached streams.
func (m *Mixer) Attached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamers.Len()
}

func (m *Mixer) Format() codec.AudioFormat {
	return m.format
}

// PeriodBytes is the size of one period of output.
func (m *Mixer) PeriodBytes() int {
	frames := int(int64(m.format.SampleRate) * int64(m.period) / int64(time.Second))
	return frames * m.format.Channels * 2
}

// Mix overwrites buf with the sum of all attached streams. Streams whose
// Fill returns false are detached. Fill is called without the mixer lock
// held so a stream may detach itself from inside Fill.
func (m *Mixer) Mix(buf []byte) {
	clear(buf)

	m.mu.Lock()
	streamers := make([]Streamer, 0, m.streamers.Len())
	for e := m.streamers.Front(); e != nil; e = e.Next() {
		streamers = append(streamers, e.Value)
	}
	m.mu.Unlock()

	tmp := make([]byte, len(buf))
	for _, s := range streamers {
		clear(tmp)
		ok := s.Fill(tmp)
		for i := 0; i+1 < len(buf); i += 2 {
			v := int(int16(binary.LittleEndian.Uint16(buf[i:]))) + int(int16(binary.LittleEndian.Uint16(tmp[i:])))
			v = max(min(v, 32767), -32768)
			binary.LittleEndian.PutUint16(buf[i:], uint16(int16(v)))
		}
		if !ok {
			m.Detach(s)
		}
	}
}

// Run writes one mixed period to the output per period until ctx is done
// or the output fails.
func (m *Mixer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	buf := make([]byte, m.PeriodBytes())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Mix(buf)
			if _, err := m.out.Write(buf); err != nil {
				return err
			}
		}
	}
}
