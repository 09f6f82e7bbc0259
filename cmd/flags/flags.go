package flags

import "time"

var (
	Debug      bool
	ConfigPath string
	LogLevel   string

	// play
	Output     string
	BufferTime time.Duration
	Seek       time.Duration
	Duration   time.Duration

	// serve
	Listen string

	// gen
	GenOutput        string
	GenDuration      time.Duration
	GenFrameRate     float64
	GenKeyInterval   time.Duration
	GenSize          string
	GenNoAudio       bool
	GenNoVideo       bool
	GenMono          bool
	GenAudioDuration time.Duration

	// probe
	Summary bool
)
