package flv

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"

	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/flvplay/protocol/amf"
)

// SynthConf describes a generated test stream. Video frames are JPEG
// pictures, audio frames 16 bit little endian PCM carrying a sine tone.
type SynthConf struct {
	// Duration of the stream in milliseconds.
	Duration uint32
	// VideoInterval is the distance between video frames, 0 for no video.
	VideoInterval uint32
	// KeyInterval is the distance between key frames. Every frame is a key
	// frame when 0.
	KeyInterval uint32
	Width       int
	Height      int
	// AudioInterval is the distance between audio frames, 0 for no audio.
	AudioInterval uint32
	SoundRate     uint8
	Stereo        bool
	Tone          float64
	// Metadata writes an onMetaData tag first.
	Metadata bool
	// VideoDuration and AudioDuration end a track before Duration when
	// non zero.
	VideoDuration uint32
	AudioDuration uint32
}

func trackEnd(total, track uint32) uint32 {
	if track > 0 && track < total {
		return track
	}
	return total
}

func DefaultSynthConf() SynthConf {
	return SynthConf{
		Duration:      10000,
		VideoInterval: 40,
		KeyInterval:   1000,
		Width:         64,
		Height:        48,
		AudioInterval: 20,
		SoundRate:     av.SOUND_44Khz,
		Stereo:        true,
		Tone:          440,
		Metadata:      true,
	}
}

// Synthesize writes the stream described by c to w.
func Synthesize(w io.Writer, c SynthConf) error {
	fw := NewWriter(w, WithStreams(c.AudioInterval > 0, c.VideoInterval > 0))
	defer fw.Close()

	if c.Metadata {
		meta := amf.Object{
			"duration": float64(c.Duration) / 1000,
		}
		if c.VideoInterval > 0 {
			meta["framerate"] = 1000 / float64(c.VideoInterval)
			meta["width"] = float64(c.Width)
			meta["height"] = float64(c.Height)
			meta["videocodecid"] = float64(av.CODEC_JPEG)
		}
		if c.AudioInterval > 0 {
			meta["audiosamplerate"] = float64(av.SoundRateHz(c.SoundRate))
			meta["audiocodecid"] = float64(av.SOUND_PCM_LE)
			meta["stereo"] = c.Stereo
		}
		b, err := amf.EncodeScriptData("onMetaData", meta)
		if err != nil {
			return err
		}
		if err := fw.Write(&av.Packet{IsMetadata: true, Data: b}); err != nil {
			return err
		}
	}

	var (
		vts, ats uint32
		frame    int
		sample   int
		vend     = trackEnd(c.Duration, c.VideoDuration)
		aend     = trackEnd(c.Duration, c.AudioDuration)
	)
	for {
		doVideo := c.VideoInterval > 0 && vts < vend
		doAudio := c.AudioInterval > 0 && ats < aend
		if !doVideo && !doAudio {
			return nil
		}
		if doVideo && (!doAudio || vts <= ats) {
			body, err := synthVideoTag(c, vts, frame)
			if err != nil {
				return err
			}
			if err := fw.Write(&av.Packet{IsVideo: true, TimeStamp: vts, Data: body}); err != nil {
				return err
			}
			frame++
			vts += c.VideoInterval
			continue
		}
		var body []byte
		body, sample = synthAudioTag(c, sample)
		if err := fw.Write(&av.Packet{IsAudio: true, TimeStamp: ats, Data: body}); err != nil {
			return err
		}
		ats += c.AudioInterval
	}
}

func SynthesizeBytes(c SynthConf) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := Synthesize(buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func synthVideoTag(c SynthConf, ts uint32, frame int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, max(c.Width, 1), max(c.Height, 1)))
	shade := uint8(frame * 16)
	bar := frame % max(c.Width, 1)
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			col := color.RGBA{R: shade, G: uint8(y * 4), B: 128, A: 255}
			if x == bar {
				col = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, col)
		}
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	frameType := uint8(av.FRAME_INTER)
	if c.KeyInterval == 0 || ts%c.KeyInterval == 0 {
		frameType = av.FRAME_KEY
	}
	return VideoTagBody(frameType, av.CODEC_JPEG, buf.Bytes()), nil
}

func synthAudioTag(c SynthConf, sample int) ([]byte, int) {
	rate := av.SoundRateHz(c.SoundRate)
	channels := 1
	soundType := uint8(av.SOUND_MONO)
	if c.Stereo {
		channels = 2
		soundType = av.SOUND_STEREO
	}
	n := rate * int(c.AudioInterval) / 1000
	pcm := make([]byte, n*channels*2)
	for i := 0; i < n; i++ {
		v := int16(math.Sin(2*math.Pi*c.Tone*float64(sample+i)/float64(rate)) * 8000)
		for ch := 0; ch < channels; ch++ {
			binary.LittleEndian.PutUint16(pcm[(i*channels+ch)*2:], uint16(v))
		}
	}
	return AudioTagBody(av.SOUND_PCM_LE, c.SoundRate, av.SOUND_16BIT, soundType, pcm), sample + n
}
