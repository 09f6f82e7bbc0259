package cache

import (
	"fmt"

	"github.com/zijiren233/flvplay/av"
)

var (
	maxQueueCap        = 4096
	ErrPacketQueueFull = fmt.Errorf("packet queue full")
)

// PacketQueue holds encoded frames of one media type in timestamp order.
type PacketQueue struct {
	packets []*av.Packet
}

func NewPacketQueue() *PacketQueue {
	return &PacketQueue{
		packets: make([]*av.Packet, 0, 64),
	}
}

func (q *PacketQueue) reset() {
	for i := range q.packets {
		q.packets[i] = nil
	}
	q.packets = q.packets[:0]
}

// Write appends p. A timestamp lower than the queue tail means the input
// jumped back (seek or odd encoding), so the queue is flushed first.
func (q *PacketQueue) Write(p *av.Packet) error {
	if n := len(q.packets); n > 0 && q.packets[n-1].TimeStamp > p.TimeStamp {
		q.reset()
	}
	if len(q.packets) >= maxQueueCap {
		return ErrPacketQueueFull
	}
	q.packets = append(q.packets, p)
	return nil
}

// Peek returns the oldest packet without removing it.
func (q *PacketQueue) Peek() *av.Packet {
	if len(q.packets) == 0 {
		return nil
	}
	return q.packets[0]
}

// Pop removes and returns the oldest packet.
func (q *PacketQueue) Pop() *av.Packet {
	if len(q.packets) == 0 {
		return nil
	}
	p := q.packets[0]
	q.packets[0] = nil
	q.packets = q.packets[1:]
	return p
}

// Last returns the newest packet.
func (q *PacketQueue) Last() *av.Packet {
	if len(q.packets) == 0 {
		return nil
	}
	return q.packets[len(q.packets)-1]
}

// Duration is the timestamp span between the oldest and newest packet.
func (q *PacketQueue) Duration() uint32 {
	if len(q.packets) == 0 {
		return 0
	}
	return q.Last().TimeStamp - q.packets[0].TimeStamp
}

func (q *PacketQueue) lastTs() uint32 {
	return q.Last().TimeStamp
}

// Full reports whether Write would refuse another packet.
func (q *PacketQueue) Full() bool {
	return len(q.packets) >= maxQueueCap
}

func (q *PacketQueue) Len() int {
	return len(q.packets)
}

func (q *PacketQueue) Clear() {
	q.reset()
}
