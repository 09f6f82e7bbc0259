package codec

// Timestamps assigns presentation timestamps to decoded frames of one
// stream. A frame whose packet carries no timestamp is placed one interval
// after the previous frame, stretched by half an interval per repeat the
// decoder requested.
type Timestamps struct {
	last    uint32
	started bool
}

// Next returns the timestamp for a frame decoded from a packet stamped pts.
func (t *Timestamps) Next(pts uint32, repeat int, interval uint32) uint32 {
	ts := pts
	if pts == 0 && t.started {
		ts = t.last + interval + uint32(repeat)*interval/2
	}
	t.last = ts
	t.started = true
	return ts
}

// Last returns the most recent timestamp handed out.
func (t *Timestamps) Last() uint32 {
	return t.last
}

// Reset restarts the sequence at pos. At position 0 the next zero stamp is
// taken as is.
func (t *Timestamps) Reset(pos uint32) {
	t.last = pos
	t.started = pos != 0
}
