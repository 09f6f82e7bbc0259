package av

import "image"

// VideoFrame is a decoded picture ready for display.
type VideoFrame struct {
	Image     *image.RGBA
	TimeStamp uint32
	// Repeat is the number of extra half frame durations the decoder asked
	// this picture to be held for.
	Repeat int
}

// AudioFrame holds decoded signed 16 bit little endian interleaved PCM.
type AudioFrame struct {
	PCM        []byte
	TimeStamp  uint32
	SampleRate int
	Channels   int
}
