package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"reflect"
	"testing"
	"testing/quick"

	"github.com/zijiren233/flvplay/av"
)

var rates = []int{5512, 8000, 11025, 22050, 44100, 48000}

func TestResampledSizeExactRatio(t *testing.T) {
	f := func(frames uint16, ri, ro, ci, co uint8) bool {
		inRate, outRate := rates[int(ri)%len(rates)], rates[int(ro)%len(rates)]
		inCh, outCh := int(ci%2)+1, int(co%2)+1

		got := ResampledSize(int(frames)*inCh, inRate, inCh, outRate, outCh)
		if got%outCh != 0 {
			return false
		}
		outFrames := int64(got / outCh)
		// outFrames is the smallest count covering the input duration
		return outFrames*int64(inRate) >= int64(frames)*int64(outRate) &&
			(outFrames == 0 || (outFrames-1)*int64(inRate) < int64(frames)*int64(outRate))
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestResampleLength(t *testing.T) {
	f := func(in []int16, ri, ro, ci, co uint8) bool {
		inRate, outRate := rates[int(ri)%len(rates)], rates[int(ro)%len(rates)]
		inCh, outCh := int(ci%2)+1, int(co%2)+1
		in = in[:len(in)/inCh*inCh]

		out := Resample(in, inRate, inCh, outRate, outCh)
		return len(out) == ResampledSize(len(in), inRate, inCh, outRate, outCh)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestResampleIdentity(t *testing.T) {
	f := func(in []int16) bool {
		in = in[:len(in)/2*2]
		out := Resample(in, 44100, 2, 44100, 2)
		return len(in) == 0 && out == nil || reflect.DeepEqual(in, out)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestResampleChannels(t *testing.T) {
	mono := []int16{100, -200, 300}
	if got := Resample(mono, 22050, 1, 44100, 2); !reflect.DeepEqual(got, []int16{
		100, 100, 100, 100, -200, -200, -200, -200, 300, 300, 300, 300,
	}) {
		t.Errorf("mono to stereo upsample: %v", got)
	}

	stereo := []int16{100, 300, -100, -300}
	if got := Resample(stereo, 8000, 2, 8000, 1); !reflect.DeepEqual(got, []int16{200, -200}) {
		t.Errorf("stereo to mono: %v", got)
	}

	if got := Resample(stereo, 0, 2, 8000, 1); got != nil {
		t.Errorf("zero rate should produce nothing: %v", got)
	}
}

func TestApplyVolume(t *testing.T) {
	pcm := make([]byte, 6)
	for i, v := range []int16{1000, -1000, 32767} {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	ApplyVolume(pcm, 50)
	for i, want := range []int16{500, -500, 16383} {
		if got := int16(binary.LittleEndian.Uint16(pcm[i*2:])); got != want {
			t.Errorf("sample %d: got %d, want %d", i, got, want)
		}
	}
	ApplyVolume(pcm, -5)
	for i := range pcm {
		if pcm[i] != 0 {
			t.Fatalf("negative volume should mute")
		}
	}
}

func TestG711(t *testing.T) {
	for _, tc := range []struct {
		in   byte
		alaw bool
		want int16
	}{
		{0xd5, true, 8},
		{0x55, true, -8},
		{0xaa, true, 32256},
		{0x2a, true, -32256},
		{0xff, false, 0},
		{0x7f, false, 0},
		{0x80, false, 32124},
		{0x00, false, -32124},
	} {
		var got int16
		if tc.alaw {
			got = alawToLinear(tc.in)
		} else {
			got = ulawToLinear(tc.in)
		}
		if got != tc.want {
			t.Errorf("0x%02x (alaw %v): got %d, want %d", tc.in, tc.alaw, got, tc.want)
		}
	}
}

func TestTimestamps(t *testing.T) {
	var ts Timestamps
	if got := ts.Next(0, 0, 40); got != 0 {
		t.Errorf("first frame: %d", got)
	}
	if got := ts.Next(0, 0, 40); got != 40 {
		t.Errorf("missing stamp: %d", got)
	}
	if got := ts.Next(0, 1, 40); got != 100 {
		t.Errorf("repeated frame: %d", got)
	}
	if got := ts.Next(500, 0, 40); got != 500 {
		t.Errorf("stamped frame: %d", got)
	}

	ts.Reset(4800)
	if got := ts.Next(0, 0, 40); got != 4840 {
		t.Errorf("after reset: %d", got)
	}
	ts.Reset(0)
	if got := ts.Next(0, 0, 40); got != 0 {
		t.Errorf("after reset to zero: %d", got)
	}
}

func TestSoftVideo(t *testing.T) {
	dec, err := Soft{}.NewVideoDecoder(av.VideoInfo{CodecID: av.CODEC_JPEG})
	if err != nil {
		t.Fatal(err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetRGBA(0, 0, color.RGBA{A: 255})
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatal(err)
	}

	f, err := dec.Decode(&av.Packet{IsVideo: true, TimeStamp: 80, Data: buf.Bytes()})
	if err != nil {
		t.Fatal(err)
	}
	if f.TimeStamp != 80 || f.Image.Bounds().Dx() != 16 || f.Image.Bounds().Dy() != 8 {
		t.Errorf("frame: ts %d bounds %v", f.TimeStamp, f.Image.Bounds())
	}

	if f, err = dec.Decode(&av.Packet{IsVideo: true}); f != nil || err != nil {
		t.Errorf("empty packet should need more input: %v %v", f, err)
	}
	if _, err = dec.Decode(&av.Packet{IsVideo: true, Data: []byte{1, 2, 3}}); err == nil {
		t.Errorf("garbage should not decode")
	}

	dec.Close()
	if _, err = dec.Decode(&av.Packet{IsVideo: true, Data: buf.Bytes()}); !errors.Is(err, av.ErrClosed) {
		t.Errorf("decode after close: %v", err)
	}

	if _, err := (Soft{}).NewVideoDecoder(av.VideoInfo{CodecID: av.CODEC_AVC}); !errors.Is(err, ErrNoDecoder) {
		t.Errorf("expected ErrNoDecoder, got %v", err)
	}
}

func TestSoftAudio(t *testing.T) {
	info := av.AudioInfo{SoundFormat: av.SOUND_PCM_LE, SampleRate: 22050, SampleSize: 2, Channels: 1}
	dec, err := Soft{}.NewAudioDecoder(info, CanonicalAudio)
	if err != nil {
		t.Fatal(err)
	}

	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm, uint16(1234))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(0xffff))
	f, err := dec.Decode(&av.Packet{IsAudio: true, TimeStamp: 20, Data: pcm})
	if err != nil {
		t.Fatal(err)
	}
	if f.SampleRate != 44100 || f.Channels != 2 || f.TimeStamp != 20 {
		t.Errorf("frame format: %+v", f)
	}
	// 2 mono frames at 22050 become 4 stereo frames at 44100
	if len(f.PCM) != 16 {
		t.Fatalf("pcm length: %d", len(f.PCM))
	}
	if v := int16(binary.LittleEndian.Uint16(f.PCM[12:])); v != -1 {
		t.Errorf("last sample: %d", v)
	}

	if f, err = dec.Decode(&av.Packet{IsAudio: true, Data: []byte{1}}); f != nil || err != nil {
		t.Errorf("partial sample should produce nothing: %v %v", f, err)
	}

	if _, err := (Soft{}).NewAudioDecoder(av.AudioInfo{SoundFormat: av.SOUND_MP3}, CanonicalAudio); !errors.Is(err, ErrNoDecoder) {
		t.Errorf("expected ErrNoDecoder, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	b, err := Lookup("soft")
	if err != nil || b.Name() != "soft" {
		t.Fatalf("soft backend: %v %v", b, err)
	}
	if _, err := Lookup("ffmpeg"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
	found := false
	for _, name := range Backends() {
		found = found || name == "soft"
	}
	if !found {
		t.Errorf("soft not listed in %v", Backends())
	}
}
