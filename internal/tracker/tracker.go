// Package tracker provides the default in-process multi-object tracker:
// a greedy IoU matcher that keeps integer track ids stable across
// frames while an object stays visible. It makes no attempt to survive
// long occlusions; the counting engine is built to tolerate the
// resulting id churn.
package tracker

import (
	"math"

	"occupancy-service/internal/domain/occupancy"
)

// minIoU is the smallest overlap still considered the same object.
const minIoU = 0.3

type entry struct {
	track           occupancy.Track
	hits            int
	sinceLastUpdate int
}

// IoUTracker matches detections to existing tracks by bounding-box
// overlap. Stateful across calls within one camera; each camera worker
// owns its own instance, so no locking.
type IoUTracker struct {
	maxAge  int
	minHits int
	nextID  int
	entries map[int]*entry
}

// NewIoUTracker builds a tracker. maxAge is how many frames a track
// survives without a matching detection; minHits is how many matches a
// track needs before it is reported as confirmed.
func NewIoUTracker(maxAge, minHits int) *IoUTracker {
	if maxAge <= 0 {
		maxAge = 30
	}
	if minHits <= 0 {
		minHits = 1
	}
	return &IoUTracker{
		maxAge:  maxAge,
		minHits: minHits,
		entries: make(map[int]*entry),
	}
}

// Update matches the frame's detections against live tracks and returns
// the confirmed tracks with their current boxes.
func (t *IoUTracker) Update(detections []occupancy.Detection) []occupancy.Track {
	for _, e := range t.entries {
		e.sinceLastUpdate++
	}

	matched := make(map[int]bool, len(t.entries))
	claimed := make(map[int]bool, len(detections))

	// Greedy pass: each detection claims the best unmatched track.
	for di, det := range detections {
		bestIoU := minIoU
		bestID := -1
		for id, e := range t.entries {
			if matched[id] {
				continue
			}
			if v := iou(det.BBox, e.track.BBox); v > bestIoU {
				bestIoU = v
				bestID = id
			}
		}
		if bestID >= 0 {
			e := t.entries[bestID]
			e.track.BBox = det.BBox
			e.hits++
			e.sinceLastUpdate = 0
			matched[bestID] = true
			claimed[di] = true
		}
	}

	// Unmatched detections start new tracks.
	for di, det := range detections {
		if claimed[di] {
			continue
		}
		t.nextID++
		t.entries[t.nextID] = &entry{
			track: occupancy.Track{ID: t.nextID, BBox: det.BBox},
			hits:  1,
		}
	}

	// Drop tracks unseen for too long.
	for id, e := range t.entries {
		if e.sinceLastUpdate > t.maxAge {
			delete(t.entries, id)
		}
	}

	out := make([]occupancy.Track, 0, len(t.entries))
	for _, e := range t.entries {
		if e.hits >= t.minHits && e.sinceLastUpdate == 0 {
			out = append(out, e.track)
		}
	}
	return out
}

// ActiveTracks reports the number of live track entries.
func (t *IoUTracker) ActiveTracks() int {
	return len(t.entries)
}

func iou(a, b occupancy.BoundingBox) float64 {
	ix := math.Max(0, math.Min(a.X2, b.X2)-math.Max(a.X1, b.X1))
	iy := math.Max(0, math.Min(a.Y2, b.Y2)-math.Max(a.Y1, b.Y1))
	inter := ix * iy
	if inter <= 0 {
		return 0
	}
	areaA := (a.X2 - a.X1) * (a.Y2 - a.Y1)
	areaB := (b.X2 - b.X1) * (b.Y2 - b.Y1)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
