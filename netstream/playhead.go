package netstream

import "github.com/zijiren233/flvplay/clock"

type PlaybackState int

const (
	PlayStatePlaying PlaybackState = iota
	PlayStatePaused
)

func (s PlaybackState) String() string {
	if s == PlayStatePaused {
		return "paused"
	}
	return "playing"
}

const (
	consumerVideo uint8 = 1 << iota
	consumerAudio
)

// PlayHead is the authoritative playback position of a stream. The
// position follows its clock, but only moves on once every available
// consumer has consumed the current one, which keeps audio and video in
// step.
type PlayHead struct {
	clock    clock.VirtualClock
	position uint64
	// offset is the clock reading at position 0
	offset int64
	state  PlaybackState

	availableConsumers uint8
	positionConsumers  uint8
}

func NewPlayHead(c clock.VirtualClock) *PlayHead {
	return &PlayHead{
		clock:  c,
		offset: int64(c.Elapsed()),
		state:  PlayStatePaused,
	}
}

// Init declares which media types gate position advances.
func (ph *PlayHead) Init(hasVideo, hasAudio bool) {
	ph.availableConsumers = 0
	if hasVideo {
		ph.availableConsumers |= consumerVideo
	}
	if hasAudio {
		ph.availableConsumers |= consumerAudio
	}
}

func (ph *PlayHead) State() PlaybackState {
	return ph.state
}

// SetState switches the playback state and returns the previous one.
func (ph *PlayHead) SetState(s PlaybackState) PlaybackState {
	prev := ph.state
	ph.state = s
	return prev
}

// Position returns the current position in milliseconds.
func (ph *PlayHead) Position() uint64 {
	return ph.position
}

// SeekTo moves to pos and forgets what was consumed.
func (ph *PlayHead) SeekTo(pos uint64) {
	ph.position = pos
	ph.offset = int64(ph.clock.Elapsed()) - int64(pos)
	ph.positionConsumers = 0
}

func (ph *PlayHead) SetVideoConsumed() {
	ph.positionConsumers |= consumerVideo
}

func (ph *PlayHead) SetAudioConsumed() {
	ph.positionConsumers |= consumerAudio
}

func (ph *PlayHead) IsVideoConsumed() bool {
	return ph.positionConsumers&consumerVideo != 0
}

func (ph *PlayHead) IsAudioConsumed() bool {
	return ph.positionConsumers&consumerAudio != 0
}

// AdvanceIfConsumed moves the position to the clock once all available
// consumers are done with the current one.
func (ph *PlayHead) AdvanceIfConsumed() bool {
	if ph.positionConsumers&ph.availableConsumers != ph.availableConsumers {
		return false
	}
	now := int64(ph.clock.Elapsed()) - ph.offset
	if now > int64(ph.position) {
		ph.position = uint64(now)
	}
	ph.positionConsumers = 0
	return true
}
