package sound

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/zijiren233/flvplay/codec"
)

func constant(v int16, keep bool) StreamerFunc {
	return func(buf []byte) bool {
		for i := 0; i+1 < len(buf); i += 2 {
			binary.LittleEndian.PutUint16(buf[i:], uint16(v))
		}
		return keep
	}
}

func sample(buf []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[i*2:]))
}

func TestMixerSumsAndClips(t *testing.T) {
	m := NewMixer(nil)
	a, b := constant(20000, true), constant(20000, true)
	m.Attach(&a)
	m.Attach(&b)
	m.Attach(&a)
	if m.Attached() != 2 {
		t.Fatalf("attached: %d", m.Attached())
	}

	buf := make([]byte, 8)
	m.Mix(buf)
	if sample(buf, 0) != 32767 {
		t.Errorf("sum should clip: %d", sample(buf, 0))
	}

	m.Detach(&b)
	m.Mix(buf)
	if sample(buf, 3) != 20000 {
		t.Errorf("single stream: %d", sample(buf, 3))
	}
}

func TestMixerDetachesFinishedStream(t *testing.T) {
	m := NewMixer(nil)
	done := constant(-5, false)
	m.Attach(&done)

	buf := make([]byte, 4)
	m.Mix(buf)
	if sample(buf, 1) != -5 {
		t.Errorf("last fill should still be mixed: %d", sample(buf, 1))
	}
	if m.Attached() != 0 {
		t.Errorf("finished stream still attached")
	}
}

func TestMixerRun(t *testing.T) {
	out := new(bytes.Buffer)
	m := NewMixer(out, WithPeriod(5*time.Millisecond), WithFormat(codec.AudioFormat{SampleRate: 8000, Channels: 1}))
	if m.PeriodBytes() != 80 {
		t.Fatalf("period bytes: %d", m.PeriodBytes())
	}
	s := constant(7, true)
	m.Attach(&s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 || out.Len()%80 != 0 {
		t.Errorf("output size: %d", out.Len())
	}
}
