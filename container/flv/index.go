package flv

import "sort"

// audioCueSpacing is the minimum distance between two cue points of an
// audio only stream, in milliseconds.
const audioCueSpacing = 5000

type cuePoint struct {
	ts  uint32
	pos int64
}

// cueIndex maps timestamps to tag offsets for seeking. Points are kept
// sorted by timestamp.
type cueIndex struct {
	points []cuePoint
}

func (idx *cueIndex) add(ts uint32, pos int64) {
	i := sort.Search(len(idx.points), func(i int) bool {
		return idx.points[i].ts >= ts
	})
	if i < len(idx.points) && idx.points[i].ts == ts {
		return
	}
	idx.points = append(idx.points, cuePoint{})
	copy(idx.points[i+1:], idx.points[i:])
	idx.points[i] = cuePoint{ts: ts, pos: pos}
}

// floor returns the latest point not after ts, or the first point when ts
// precedes all of them.
func (idx *cueIndex) floor(ts uint32) (cuePoint, bool) {
	if len(idx.points) == 0 {
		return cuePoint{}, false
	}
	i := sort.Search(len(idx.points), func(i int) bool {
		return idx.points[i].ts > ts
	})
	if i == 0 {
		return idx.points[0], true
	}
	return idx.points[i-1], true
}

func (idx *cueIndex) last() (cuePoint, bool) {
	if len(idx.points) == 0 {
		return cuePoint{}, false
	}
	return idx.points[len(idx.points)-1], true
}

func (idx *cueIndex) len() int {
	return len(idx.points)
}
