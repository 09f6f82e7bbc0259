package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/zijiren233/flvplay/av"
	"golang.org/x/image/draw"
)

// Soft is the pure Go backend: JPEG video, linear PCM and G.711 audio.
type Soft struct{}

func (Soft) Name() string {
	return "soft"
}

func (Soft) NewVideoDecoder(info av.VideoInfo) (VideoDecoder, error) {
	switch info.CodecID {
	case av.CODEC_JPEG:
		return &jpegDecoder{}, nil
	}
	return nil, fmt.Errorf("%w: video codec %d", ErrNoDecoder, info.CodecID)
}

func (Soft) NewAudioDecoder(info av.AudioInfo, out AudioFormat) (AudioDecoder, error) {
	switch info.SoundFormat {
	case av.SOUND_PCM, av.SOUND_PCM_LE, av.SOUND_ALAW, av.SOUND_MULAW:
		return &pcmDecoder{info: info, out: out}, nil
	}
	return nil, fmt.Errorf("%w: sound format %d", ErrNoDecoder, info.SoundFormat)
}

type jpegDecoder struct {
	closed bool
}

func (d *jpegDecoder) Decode(pkt *av.Packet) (*av.VideoFrame, error) {
	if d.closed {
		return nil, av.ErrClosed
	}
	if len(pkt.Data) == 0 {
		return nil, nil
	}
	src, err := jpeg.Decode(bytes.NewReader(pkt.Data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg frame at %d: %w", pkt.TimeStamp, err)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &av.VideoFrame{Image: dst, TimeStamp: pkt.TimeStamp}, nil
}

func (d *jpegDecoder) Close() error {
	d.closed = true
	return nil
}

type pcmDecoder struct {
	info   av.AudioInfo
	out    AudioFormat
	closed bool
}

func (d *pcmDecoder) Decode(pkt *av.Packet) (*av.AudioFrame, error) {
	if d.closed {
		return nil, av.ErrClosed
	}
	info := d.info
	if ah, ok := pkt.Header.(av.AudioPacketHeader); ok {
		info.SoundFormat = ah.SoundFormat()
		info.SampleRate = av.SoundRateHz(ah.SoundRate())
		info.SampleSize = int(ah.SoundSize()) + 1
		info.Channels = int(ah.SoundType()) + 1
	}

	var samples []int16
	switch info.SoundFormat {
	case av.SOUND_PCM, av.SOUND_PCM_LE:
		if info.SampleSize == 1 {
			samples = make([]int16, len(pkt.Data))
			for i, v := range pkt.Data {
				samples[i] = int16(int(v)-128) << 8
			}
		} else {
			samples = make([]int16, len(pkt.Data)/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(pkt.Data[i*2:]))
			}
		}
	case av.SOUND_ALAW:
		samples = make([]int16, len(pkt.Data))
		for i, v := range pkt.Data {
			samples[i] = alawToLinear(v)
		}
	case av.SOUND_MULAW:
		samples = make([]int16, len(pkt.Data))
		for i, v := range pkt.Data {
			samples[i] = ulawToLinear(v)
		}
	default:
		return nil, fmt.Errorf("%w: sound format changed to %d", ErrNoDecoder, info.SoundFormat)
	}

	// G.711 in FLV is always 8 kHz, whatever the rate field says.
	if info.SoundFormat == av.SOUND_ALAW || info.SoundFormat == av.SOUND_MULAW {
		info.SampleRate = 8000
	}

	if info.Channels < 1 {
		info.Channels = 1
	}
	// drop a trailing partial frame
	samples = samples[:len(samples)/info.Channels*info.Channels]
	if len(samples) == 0 {
		return nil, nil
	}
	if info.SampleRate != d.out.SampleRate || info.Channels != d.out.Channels {
		samples = Resample(samples, info.SampleRate, info.Channels, d.out.SampleRate, d.out.Channels)
	}

	pcm := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return &av.AudioFrame{
		PCM:        pcm,
		TimeStamp:  pkt.TimeStamp,
		SampleRate: d.out.SampleRate,
		Channels:   d.out.Channels,
	}, nil
}

func (d *pcmDecoder) Close() error {
	d.closed = true
	return nil
}

func alawToLinear(a byte) int16 {
	a ^= 0x55
	t := int16(a&0x0f) << 4
	switch seg := (a & 0x70) >> 4; seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return t
	}
	return -t
}

func ulawToLinear(u byte) int16 {
	u = ^u
	t := int16(u&0x0f)<<3 + 0x84
	t <<= (u & 0x70) >> 4
	if u&0x80 != 0 {
		return 0x84 - t
	}
	return t - 0x84
}
