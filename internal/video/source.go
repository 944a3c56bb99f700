// Package video acquires frames from camera sources. The Source
// interface is the seam the camera worker consumes; RTSPSource is the
// production implementation on top of OpenCV.
package video

import (
	"context"
	"errors"

	"occupancy-service/internal/domain/occupancy"
)

// ErrSourceUnavailable marks a source that cannot be opened or read.
// The worker retries with backoff before giving up on it.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Source yields frames from one camera.
type Source interface {
	// Open prepares the source. Safe to call again after a failure.
	Open(ctx context.Context) error
	// Next blocks for the next frame. Returns ErrSourceUnavailable
	// (possibly wrapped) when the stream has broken and needs reopening.
	Next(ctx context.Context) (occupancy.Frame, error)
	// Close releases the source; idempotent.
	Close() error
}
