// Package profile is a stub for anonymous customer-attribute profiling.
// Attribute models are out of scope; the stub keeps the pipeline seam
// in place so events can carry attributes once models are integrated.
package profile

import (
	"occupancy-service/internal/domain/occupancy"
)

// Profiler reports attributes for a track that just crossed the line.
type Profiler struct{}

// NewProfiler returns the stub profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// Profile returns unknown attributes for every track.
func (p *Profiler) Profile(trackID int, frame occupancy.Frame, bbox occupancy.BoundingBox) occupancy.Attributes {
	return occupancy.Attributes{
		AgeGroup:    "unknown",
		Gender:      "unknown",
		TopColor:    "unknown",
		BottomColor: "unknown",
	}
}
