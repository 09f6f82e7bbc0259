package netstream

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/flvplay/av"
	"github.com/zijiren233/flvplay/cache"
	"github.com/zijiren233/flvplay/codec"
	"github.com/zijiren233/flvplay/container/flv"
)

// Advance runs one scheduling step. It dispatches pending status events,
// parses a bounded chunk of input, moves between buffering and decoding,
// and decodes the frames the play head reached. It never blocks on input
// and never fails: problems become status events or log entries.
func (ns *NetStream) Advance() {
	ns.processStatusNotifications()

	for _, m := range ns.advance() {
		if ns.onMetadata != nil {
			ns.onMetadata(m)
		}
	}
}

func (ns *NetStream) processStatusNotifications() {
	for _, s := range ns.statuses.drain() {
		if ns.onStatus != nil {
			ns.onStatus(s)
		}
	}
}

func (ns *NetStream) advance() []*flv.Metadata {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.parser == nil {
		return nil
	}
	if ns.probing {
		if err := ns.probe(); err != nil || ns.probing {
			return nil
		}
	}
	if ns.state == StateStopped {
		return nil
	}

	if _, err := ns.parser.ParseNextChunk(); err != nil {
		ns.log.WithError(err).Warn("parse")
	}
	parsingComplete := ns.parser.ParsingCompleted()
	bufferLen := ns.bufferLength()

	if parsingComplete && !ns.flushed {
		ns.flushed = true
		if bufferLen > 0 {
			ns.setStatus(BufferFlush)
		}
	}

	if ns.state == StateDecoding && bufferLen == 0 && !parsingComplete {
		ns.setStatus(BufferEmpty)
		ns.setDecodingState(StateBuffering)
		ns.syncClock()
	}

	if ns.state == StateBuffering {
		// the parser stops reading once its own read ahead is full, so a
		// shorter buffer than asked for is all there will be
		ready := bufferLen >= ns.bufferTime || (bufferLen > 0 && ns.parser.BufferFull())
		if !ready && !parsingComplete {
			// show the first picture as soon as possible
			if ns.frameCache.Frame() == nil && ns.playHead.State() != PlayStatePaused {
				ns.refreshVideoFrame(true)
			}
			return ns.takeMetadata()
		}
		ns.setStatus(BufferFull)
		ns.setDecodingState(StateDecoding)
		ns.syncClock()
	}

	ns.refreshVideoFrame(false)
	ns.refreshAudio()
	ns.checkStopped()
	ns.syncClock()
	ns.playHead.AdvanceIfConsumed()

	return ns.takeMetadata()
}

// takeMetadata collects the script tags the play head reached, to be
// dispatched once mu is released.
func (ns *NetStream) takeMetadata() []*flv.Metadata {
	pos := uint32(ns.playHead.Position())
	var out []*flv.Metadata
	for m := ns.parser.NextMetadata(pos); m != nil; m = ns.parser.NextMetadata(pos) {
		if m.Name == "onMetaData" && m.Values != nil {
			ns.metadata = m.Values
		}
		out = append(out, m)
	}
	if ns.onMetadata == nil {
		return nil
	}
	return out
}

// checkStopped stops decoding once every stream ran out of frames for
// good. playStop is reported once.
func (ns *NetStream) checkStopped() {
	if ns.state == StateStopped {
		return
	}
	if (ns.videoDecoder == nil || ns.videoDone) && (ns.audioDecoder == nil || ns.audioDone) {
		ns.setDecodingState(StateStopped)
		ns.setStatus(PlayStop)
		ns.log.WithField("position", ns.playHead.Position()).Info("playback stopped")
	}
}

// refreshVideoFrame publishes the freshest picture not after the play
// head. The current position counts as consumed for video even when no
// newer picture was due.
func (ns *NetStream) refreshVideoFrame(alsoIfPaused bool) {
	if ns.videoDecoder == nil {
		return
	}
	if !alsoIfPaused && ns.playHead.State() == PlayStatePaused {
		return
	}
	if ns.playHead.IsVideoConsumed() {
		return
	}
	if f := ns.decodeVideoUpTo(ns.playHead.Position()); f != nil {
		ns.frameCache.Write(f)
	}
	ns.playHead.SetVideoConsumed()
}

// decodeVideoUpTo decodes every queued frame not after pos and returns the
// last picture produced.
func (ns *NetStream) decodeVideoUpTo(pos uint64) *av.VideoFrame {
	var frame *av.VideoFrame
	for !ns.videoDone {
		ts, ok := ns.parser.PeekNextVideoFrame()
		if !ok {
			if ns.parser.ParsingCompleted() {
				ns.videoDone = true
			}
			break
		}
		if uint64(ts) > pos {
			break
		}
		pkt := ns.parser.NextVideoFrame()
		if pkt == nil {
			ns.log.WithField("ts", ts).Error("video frame announced but not delivered")
			ns.videoDone = true
			break
		}
		f, err := ns.videoDecoder.Decode(pkt)
		if err != nil {
			ns.log.WithError(err).WithField("ts", pkt.TimeStamp).Warn("decode video")
			continue
		}
		if f == nil {
			continue
		}
		f.TimeStamp = ns.videoTs.Next(pkt.TimeStamp, f.Repeat, ns.parser.VideoFrameInterval())
		frame = f
	}
	return frame
}

// refreshAudio decodes audio up to the play head into the audio queue.
// A full queue leaves the position unconsumed and holds the clock until
// the sound handler catches up.
func (ns *NetStream) refreshAudio() {
	if ns.audioDecoder == nil || ns.playHead.State() == PlayStatePaused || ns.playHead.IsAudioConsumed() {
		return
	}
	pos := ns.playHead.Position()
	consumed := false
	for {
		if ns.audioQueue.Full() {
			if !ns.audioOverrun {
				ns.log.WithFields(logrus.Fields{
					"position": pos,
					"queued":   ns.audioQueue.Len(),
				}).Debug("audio queue overrun")
			}
			ns.audioOverrun = true
			return
		}
		ts, ok := ns.parser.PeekNextAudioFrame()
		if !ok {
			if ns.parser.ParsingCompleted() {
				ns.audioDone = true
				consumed = true
			} else if ns.parser.AudioEnded() {
				// the audio track stopped early, let video carry the clock
				consumed = true
			}
			break
		}
		if uint64(ts) > pos {
			consumed = true
			break
		}
		pkt := ns.parser.NextAudioFrame()
		if pkt == nil {
			ns.log.WithField("ts", ts).Error("audio frame announced but not delivered")
			ns.audioDone = true
			consumed = true
			break
		}
		if err := ns.pushDecodedAudio(pkt); err != nil {
			ns.log.WithError(err).WithField("ts", pkt.TimeStamp).Warn("decode audio")
		}
	}
	if consumed {
		ns.audioOverrun = false
		ns.playHead.SetAudioConsumed()
	}
}

func (ns *NetStream) pushDecodedAudio(pkt *av.Packet) error {
	f, err := ns.audioDecoder.Decode(pkt)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	ns.audioTs.Next(pkt.TimeStamp, 0, ns.parser.AudioFrameInterval())
	// nobody would pull it
	if len(f.PCM) == 0 || ns.sound == nil {
		return nil
	}
	codec.ApplyVolume(f.PCM, ns.Volume())
	if !ns.audioQueue.Push(cache.NewAudioSample(f.PCM)) {
		return fmt.Errorf("audio queue full at %d", pkt.TimeStamp)
	}
	return nil
}
