package codec

import "encoding/binary"

// ResampledSize returns the number of interleaved samples Resample produces
// for inSamples interleaved input samples. Frames are scaled by the exact
// rate ratio, rounding up.
func ResampledSize(inSamples, inRate, inChannels, outRate, outChannels int) int {
	if inSamples <= 0 || inRate <= 0 || inChannels <= 0 || outRate <= 0 || outChannels <= 0 {
		return 0
	}
	frames := int64(inSamples / inChannels)
	outFrames := (frames*int64(outRate) + int64(inRate) - 1) / int64(inRate)
	return int(outFrames) * outChannels
}

// Resample converts interleaved samples between rates with nearest
// neighbour selection and between channel counts by duplicating or
// averaging channels.
func Resample(in []int16, inRate, inChannels, outRate, outChannels int) []int16 {
	n := ResampledSize(len(in), inRate, inChannels, outRate, outChannels)
	if n == 0 {
		return nil
	}
	frames := int64(len(in) / inChannels)
	out := make([]int16, n)
	for i := 0; i < n/outChannels; i++ {
		src := min(int64(i)*int64(inRate)/int64(outRate), frames-1)
		frame := in[src*int64(inChannels) : (src+1)*int64(inChannels)]
		dst := out[i*outChannels : (i+1)*outChannels]
		mixChannels(dst, frame)
	}
	return out
}

func mixChannels(dst, src []int16) {
	switch {
	case len(dst) == len(src):
		copy(dst, src)
	case len(dst) == 1:
		var sum int
		for _, v := range src {
			sum += int(v)
		}
		dst[0] = int16(sum / len(src))
	default:
		for ch := range dst {
			dst[ch] = src[ch%len(src)]
		}
	}
}

// ApplyVolume scales s16le pcm in place. volume is a percentage, 100 leaves
// the samples untouched.
func ApplyVolume(pcm []byte, volume int) {
	if volume == 100 {
		return
	}
	volume = max(volume, 0)
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(pcm[i:]))) * volume / 100
		v = max(min(v, 32767), -32768)
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}
