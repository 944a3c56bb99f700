package occupancy

import (
	"time"
)

// Direction is the side-to-side sense of a counted crossing.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Opposite returns the inverse direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}

// WorkerState reports where a camera worker is in its lifecycle.
type WorkerState string

const (
	WorkerStarting WorkerState = "starting"
	WorkerRunning  WorkerState = "running"
	WorkerStopping WorkerState = "stopping"
	WorkerStopped  WorkerState = "stopped"
	WorkerFailed   WorkerState = "failed"
)

// Camera is immutable after configuration load.
type Camera struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SourceURL    string `json:"source_url"`
	EntranceLine Line   `json:"entrance_line"`
	// LeftToRight is the direction counted when a track moves from the
	// left side of the entrance line to the right side. The reverse
	// movement counts as the opposite direction. Fixed at config load,
	// never inferred from line orientation.
	LeftToRight Direction `json:"left_to_right"`
}

// BoundingBox is an axis-aligned box in pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the box centroid.
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// Detection is one detector hit on a single frame.
type Detection struct {
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
}

// Track is a tracker-assigned identity with its current box. Track IDs
// are unique only within one camera and only while the tracker keeps
// the identity alive; they are reused after a gap.
type Track struct {
	ID   int         `json:"id"`
	BBox BoundingBox `json:"bbox"`
}

// TrackPosition is one per-frame observation of a track, with the
// anchor point already normalized into [0,1]x[0,1].
type TrackPosition struct {
	CameraID  string
	TrackID   int
	Point     Point
	BBox      BoundingBox
	Timestamp time.Time
}

// CrossingEvent records one direction transition of one track. Never
// mutated after creation.
type CrossingEvent struct {
	ID        string    `json:"id"`
	CameraID  string    `json:"camera_id"`
	TrackID   int       `json:"track_id"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

// Counts is a consistent point-in-time counter snapshot for one camera.
// Current is derived from the same snapshot as Entered and Exited.
type Counts struct {
	Entered uint64 `json:"entered"`
	Exited  uint64 `json:"exited"`
	Current uint64 `json:"current_occupancy"`
}

// Frame is one encoded image with its capture metadata. Data is JPEG.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
	// Seq is assigned by the frame buffer on publish, monotonically
	// increasing per camera.
	Seq uint64
}

// CameraDaySummary aggregates one camera's activity for a calendar day.
type CameraDaySummary struct {
	TotalInToday  int64         `json:"total_in_today"`
	TotalOutToday int64         `json:"total_out_today"`
	VisitsPerHour map[int]int64 `json:"visits_per_hour"`
	// CurrentOccupancy comes from the live counters, not the archive.
	CurrentOccupancy uint64 `json:"current_occupancy"`
}

// SummaryReport is the cross-camera daily rollup.
type SummaryReport struct {
	TotalInToday  int64                       `json:"total_in_today"`
	TotalOutToday int64                       `json:"total_out_today"`
	BusiestCamera string                      `json:"busiest_camera,omitempty"`
	Cameras       map[string]CameraDaySummary `json:"cameras"`
}

// Attributes are the anonymous customer attributes the profiler stub
// reports. All fields are "unknown" until real models are integrated.
type Attributes struct {
	AgeGroup    string `json:"age_group"`
	Gender      string `json:"gender"`
	TopColor    string `json:"top_color"`
	BottomColor string `json:"bottom_color"`
}
