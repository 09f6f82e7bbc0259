package flv

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/zijiren233/flvplay/av"
)

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithStreams(true, true))
	packets := []*av.Packet{
		{IsVideo: true, TimeStamp: 0, Data: VideoTagBody(av.FRAME_KEY, av.CODEC_JPEG, []byte{1, 2, 3})},
		{IsAudio: true, TimeStamp: 20, Data: AudioTagBody(av.SOUND_PCM_LE, av.SOUND_22Khz, av.SOUND_16BIT, av.SOUND_MONO, []byte{4, 5})},
		// needs the extended timestamp byte
		{IsVideo: true, TimeStamp: 0x01000040, Data: VideoTagBody(av.FRAME_INTER, av.CODEC_JPEG, []byte{6})},
	}
	for _, p := range packets {
		if err := w.Write(p); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(packets[0]); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("write after close: %v", err)
	}

	r := NewReader(&buf)
	var got []*av.Packet
	for i, want := range packets {
		p, err := r.Read()
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if p.IsVideo != want.IsVideo || p.IsAudio != want.IsAudio || p.TimeStamp != want.TimeStamp {
			t.Errorf("packet %d: %+v", i, p)
		}
		if !bytes.Equal(p.Data, want.Data[1:]) {
			t.Errorf("packet %d payload: %v", i, p.Data)
		}
		got = append(got, p)
	}
	if !r.HasAudio() || !r.HasVideo() {
		t.Errorf("header flags lost")
	}
	if _, err := r.Read(); err != io.EOF {
		t.Errorf("expected EOF, got %v", err)
	}

	ah := got[1].Header.(av.AudioPacketHeader)
	if ah.SoundFormat() != av.SOUND_PCM_LE || ah.SoundRate() != av.SOUND_22Khz || ah.SoundType() != av.SOUND_MONO {
		t.Errorf("audio header: %d %d %d", ah.SoundFormat(), ah.SoundRate(), ah.SoundType())
	}
}

func TestReaderErrors(t *testing.T) {
	if _, err := NewReader(bytes.NewReader([]byte("NOTFLV\x00\x00\x09\x00\x00\x00\x00"))).Read(); !errors.Is(err, ErrHeader) {
		t.Errorf("bad magic: %v", err)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(&av.Packet{IsVideo: true, Data: VideoTagBody(av.FRAME_KEY, av.CODEC_JPEG, []byte{1})}); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	b[len(b)-1]++
	if _, err := NewReader(bytes.NewReader(b)).Read(); !errors.Is(err, ErrPreDataLen) {
		t.Errorf("corrupt previous tag size: %v", err)
	}
}
