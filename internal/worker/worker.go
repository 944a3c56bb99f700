// Package worker runs one camera's processing loop: acquire a frame,
// detect, track, feed positions to the crossing engine, record emitted
// events, annotate, and publish to the frame buffer.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"occupancy-service/internal/counting"
	"occupancy-service/internal/domain/occupancy"
	"occupancy-service/internal/store"
	"occupancy-service/internal/video"
)

// Detector finds people in one frame. Stateless per call.
type Detector interface {
	Detect(ctx context.Context, frame occupancy.Frame) ([]occupancy.Detection, error)
}

// Tracker assigns stable ids to detections across frames. Stateful
// within one camera.
type Tracker interface {
	Update(detections []occupancy.Detection) []occupancy.Track
}

// Profiler reports attributes for a track that crossed the line.
type Profiler interface {
	Profile(trackID int, frame occupancy.Frame, bbox occupancy.BoundingBox) occupancy.Attributes
}

// Annotator draws tracks and counters onto a frame before publishing.
type Annotator interface {
	Annotate(frame occupancy.Frame, tracks []occupancy.Track, counts occupancy.Counts) occupancy.Frame
}

// EventSink receives recorded crossing events off the hot path, e.g.
// for archival. Implementations must not block.
type EventSink interface {
	Archive(event occupancy.CrossingEvent, attrs occupancy.Attributes)
}

// Config tunes the worker's retry behaviour.
type Config struct {
	// OpenAttempts is how many times opening the source is tried before
	// the worker fails.
	OpenAttempts int
	// RetryBackoff is the initial wait between open attempts; it
	// doubles per attempt up to MaxBackoff.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

func (c *Config) applyDefaults() {
	if c.OpenAttempts <= 0 {
		c.OpenAttempts = 5
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Worker owns one camera's loop. Failures are isolated to this camera:
// nothing here ever terminates the process or touches another camera.
type Worker struct {
	camera    occupancy.Camera
	source    video.Source
	detector  Detector
	tracker   Tracker
	engine    *counting.Engine
	events    *store.EventStore
	frames    *store.FrameBuffer
	annotator Annotator
	profiler  Profiler
	sink      EventSink
	cfg       Config
	log       zerolog.Logger

	mu     sync.Mutex
	state  occupancy.WorkerState
	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a worker for one camera. profiler, annotator and sink may
// be nil.
func New(
	camera occupancy.Camera,
	source video.Source,
	detector Detector,
	tracker Tracker,
	engine *counting.Engine,
	events *store.EventStore,
	frames *store.FrameBuffer,
	annotator Annotator,
	profiler Profiler,
	sink EventSink,
	cfg Config,
	log zerolog.Logger,
) *Worker {
	cfg.applyDefaults()
	return &Worker{
		camera:    camera,
		source:    source,
		detector:  detector,
		tracker:   tracker,
		engine:    engine,
		events:    events,
		frames:    frames,
		annotator: annotator,
		profiler:  profiler,
		sink:      sink,
		cfg:       cfg,
		state:     occupancy.WorkerStopped,
		log:       log.With().Str("camera_id", camera.ID).Logger(),
	}
}

// Camera returns the immutable camera this worker serves.
func (w *Worker) Camera() occupancy.Camera {
	return w.camera
}

// State reports the current lifecycle state.
func (w *Worker) State() occupancy.WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s occupancy.WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Start launches the worker loop. Returns false when the worker is
// already starting or running.
func (w *Worker) Start(ctx context.Context) bool {
	w.mu.Lock()
	if w.state == occupancy.WorkerStarting || w.state == occupancy.WorkerRunning ||
		w.state == occupancy.WorkerStopping {
		w.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.state = occupancy.WorkerStarting
	done := w.done
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.run(runCtx)
	}()
	return true
}

// Stop requests a cooperative stop and waits for the loop to exit. Safe
// to call in any state; idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return
	}
	if w.state == occupancy.WorkerStarting || w.state == occupancy.WorkerRunning {
		w.state = occupancy.WorkerStopping
	}
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	cancel()
	if done != nil {
		<-done
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.source.Close()

	if !w.open(ctx) {
		return
	}

	w.setState(occupancy.WorkerRunning)
	w.log.Info().Msg("camera worker running")

	for {
		// Stop is cooperative: checked at loop boundaries, never
		// forced mid-frame.
		if ctx.Err() != nil {
			w.finish()
			return
		}

		frame, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.finish()
				return
			}
			w.log.Warn().Err(err).Msg("frame read failed, reopening source")
			if !w.open(ctx) {
				return
			}
			continue
		}

		w.process(ctx, frame)
	}
}

// open tries to open the source with exponential backoff. On
// exhaustion the worker transitions to failed; returns false when the
// loop should exit (failed or stopped).
func (w *Worker) open(ctx context.Context) bool {
	backoff := w.cfg.RetryBackoff
	for attempt := 1; attempt <= w.cfg.OpenAttempts; attempt++ {
		if ctx.Err() != nil {
			w.finish()
			return false
		}
		err := w.source.Open(ctx)
		if err == nil {
			return true
		}
		w.log.Warn().Err(err).Int("attempt", attempt).Msg("failed to open video source")

		if attempt == w.cfg.OpenAttempts {
			break
		}
		select {
		case <-ctx.Done():
			w.finish()
			return false
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > w.cfg.MaxBackoff {
			backoff = w.cfg.MaxBackoff
		}
	}

	w.setState(occupancy.WorkerFailed)
	w.log.Error().Int("attempts", w.cfg.OpenAttempts).Msg("video source unavailable, worker failed")
	return false
}

// finish marks the cooperative-stop exit.
func (w *Worker) finish() {
	w.setState(occupancy.WorkerStopped)
	w.log.Info().Msg("camera worker stopped")
}

func (w *Worker) process(ctx context.Context, frame occupancy.Frame) {
	detections, err := w.detector.Detect(ctx, frame)
	if err != nil {
		// A detector hiccup costs one frame, never the worker.
		w.log.Warn().Err(err).Msg("detection failed, skipping frame")
		return
	}

	tracks := w.tracker.Update(detections)

	for _, track := range tracks {
		pos := normalize(track.BBox.Center(), frame)
		dir, crossed := w.engine.Observe(track.ID, pos, frame.Timestamp)
		if !crossed {
			continue
		}
		ev := w.events.Record(dir, track.ID, frame.Timestamp)

		var attrs occupancy.Attributes
		if w.profiler != nil {
			attrs = w.profiler.Profile(track.ID, frame, track.BBox)
		}
		if w.sink != nil {
			w.sink.Archive(ev, attrs)
		}
	}

	out := frame
	if w.annotator != nil {
		out = w.annotator.Annotate(frame, tracks, w.events.SnapshotCounts())
	}
	w.frames.Publish(out)
}

// normalize maps a pixel-space point into the entrance line's [0,1]
// coordinate space.
func normalize(p occupancy.Point, frame occupancy.Frame) occupancy.Point {
	if frame.Width <= 0 || frame.Height <= 0 {
		return occupancy.Point{X: -1, Y: -1}
	}
	return occupancy.Point{
		X: p.X / float64(frame.Width),
		Y: p.Y / float64(frame.Height),
	}
}
