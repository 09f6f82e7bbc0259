package netstream

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Seek moves playback to the latest key frame not after ms and reports
// seekNotify, or invalidTime when the stream cannot be positioned there.
// Buffered audio is discarded and the picture at the new position is shown
// even while paused.
func (ns *NetStream) Seek(ms uint32) error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if ns.parser == nil || ns.probing {
		ns.setStatus(InvalidTime)
		return fmt.Errorf("seek %d: %w", ms, ErrNotPlaying)
	}

	// nothing may change before the parser confirmed the new position
	achieved, err := ns.parser.Seek(ms)
	if err != nil {
		ns.log.WithError(err).WithField("target", ms).Warn("seek")
		ns.setStatus(InvalidTime)
		return fmt.Errorf("seek %d: %w", ms, err)
	}

	ns.setDecodingState(StateBuffering)
	ns.videoTs.Reset(achieved)
	ns.audioTs.Reset(achieved)
	ns.videoDone, ns.audioDone = false, false
	ns.audioOverrun = false
	ns.flushed = false
	ns.audioQueue.Clear()
	ns.playHead.SeekTo(uint64(achieved))
	ns.syncClock()
	ns.setStatus(SeekNotify)

	ns.showSeekFrame()

	ns.log.WithFields(logrus.Fields{
		"target":   ms,
		"achieved": achieved,
	}).Info("seek")
	return nil
}

// showSeekFrame publishes the picture at the new position right away. The
// position stays unconsumed so the next Advance decodes it normally.
func (ns *NetStream) showSeekFrame() {
	if ns.videoDecoder == nil {
		return
	}
	if _, err := ns.parser.ParseNextChunk(); err != nil {
		ns.log.WithError(err).Warn("parse after seek")
	}
	if f := ns.decodeVideoUpTo(ns.playHead.Position()); f != nil {
		ns.frameCache.Write(f)
	}
}
