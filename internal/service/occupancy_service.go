package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"occupancy-service/internal/domain/occupancy"
	"occupancy-service/internal/repository"
	"occupancy-service/internal/store"
	"occupancy-service/internal/worker"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnknownCamera = errors.New("unknown camera")
)

// CameraRuntime bundles everything owned by one registered camera: its
// immutable config, the event/counter store, the frame buffer, and the
// worker driving them.
type CameraRuntime struct {
	Camera occupancy.Camera
	Events *store.EventStore
	Frames *store.FrameBuffer
	Worker *worker.Worker
}

// Archive provides persisted history: daily rollups and filtered event
// queries. Nil when archival is disabled; summaries then fall back to
// the in-memory logs, best-effort beyond their capacity, and history
// queries are rejected.
type Archive interface {
	SummarizeDay(ctx context.Context, day time.Time) (map[string]occupancy.CameraDaySummary, error)
	FindEvents(ctx context.Context, cameraID *string, from, to *time.Time, limit, offset int) ([]repository.ArchivedEvent, error)
}

// OccupancyService is the query surface over the camera registry. It
// only reads pipeline state; all mutation stays with the per-camera
// workers.
type OccupancyService struct {
	mu       sync.RWMutex
	runtimes map[string]*CameraRuntime
	order    []string

	// baseCtx bounds the lifetime of every camera worker. Workers are
	// started from it, never from a request context, so a worker
	// restarted over HTTP outlives the request that started it.
	baseCtx context.Context
	archive Archive
	log     zerolog.Logger
}

// NewOccupancyService builds an empty registry. ctx is the process
// lifetime context workers run under. archive may be nil.
func NewOccupancyService(ctx context.Context, archive Archive, log zerolog.Logger) *OccupancyService {
	return &OccupancyService{
		runtimes: make(map[string]*CameraRuntime),
		baseCtx:  ctx,
		archive:  archive,
		log:      log,
	}
}

// Register adds a camera runtime. Called once per camera at startup,
// before serving begins.
func (s *OccupancyService) Register(rt *CameraRuntime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runtimes[rt.Camera.ID]; !exists {
		s.order = append(s.order, rt.Camera.ID)
	}
	s.runtimes[rt.Camera.ID] = rt
	s.log.Info().Str("camera_id", rt.Camera.ID).Str("name", rt.Camera.Name).Msg("camera registered")
}

func (s *OccupancyService) runtime(cameraID string) (*CameraRuntime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.runtimes[cameraID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCamera, cameraID)
	}
	return rt, nil
}

// Cameras lists registered cameras in registration order.
func (s *OccupancyService) Cameras() []occupancy.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]occupancy.Camera, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.runtimes[id].Camera)
	}
	return out
}

// Health reports each camera worker's lifecycle state.
func (s *OccupancyService) Health() map[string]occupancy.WorkerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]occupancy.WorkerState, len(s.runtimes))
	for id, rt := range s.runtimes {
		out[id] = rt.Worker.State()
	}
	return out
}

// Counts returns the camera's consistent counter snapshot. An unknown
// camera is an error, never a silent zero.
func (s *OccupancyService) Counts(cameraID string) (occupancy.Counts, error) {
	rt, err := s.runtime(cameraID)
	if err != nil {
		return occupancy.Counts{}, err
	}
	return rt.Events.SnapshotCounts(), nil
}

// Events returns recent crossing events, most recent first. limit
// defaults to 50 and is capped at 100.
func (s *OccupancyService) Events(cameraID string, limit int) ([]occupancy.CrossingEvent, error) {
	rt, err := s.runtime(cameraID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return rt.Events.RecentEvents(limit), nil
}

// SubscribeFrames opens a live annotated-frame subscription for the
// camera. The caller must invoke cancel when done.
func (s *OccupancyService) SubscribeFrames(cameraID string) (<-chan occupancy.Frame, func(), error) {
	rt, err := s.runtime(cameraID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := rt.Frames.Subscribe()
	return ch, cancel, nil
}

// StartCamera restarts a stopped or failed camera worker. The worker
// runs under the service's base context, not the caller's.
func (s *OccupancyService) StartCamera(cameraID string) error {
	rt, err := s.runtime(cameraID)
	if err != nil {
		return err
	}
	if !rt.Worker.Start(s.baseCtx) {
		return fmt.Errorf("%w: camera %s is already running", ErrInvalidInput, cameraID)
	}
	s.log.Info().Str("camera_id", cameraID).Msg("camera worker started")
	return nil
}

// StopCamera stops a camera worker and waits for it to exit.
func (s *OccupancyService) StopCamera(cameraID string) error {
	rt, err := s.runtime(cameraID)
	if err != nil {
		return err
	}
	rt.Worker.Stop()
	s.log.Info().Str("camera_id", cameraID).Msg("camera worker stopped")
	return nil
}

// Summary aggregates today's activity across cameras. History comes
// from the archive when available, from the bounded in-memory logs
// otherwise; occupancy always comes from the live counters.
func (s *OccupancyService) Summary(ctx context.Context) (occupancy.SummaryReport, error) {
	var perCamera map[string]occupancy.CameraDaySummary
	if s.archive != nil {
		archived, err := s.archive.SummarizeDay(ctx, time.Now())
		if err != nil {
			return occupancy.SummaryReport{}, fmt.Errorf("summarize day: %w", err)
		}
		perCamera = archived
	} else {
		perCamera = s.summarizeInMemory()
	}

	report := occupancy.SummaryReport{Cameras: perCamera}

	s.mu.RLock()
	for _, id := range s.order {
		cs, ok := perCamera[id]
		if !ok {
			cs = occupancy.CameraDaySummary{VisitsPerHour: map[int]int64{}}
		}
		cs.CurrentOccupancy = s.runtimes[id].Events.SnapshotCounts().Current
		perCamera[id] = cs
	}
	s.mu.RUnlock()

	var busiest string
	var busiestIn int64 = -1
	for id, cs := range perCamera {
		report.TotalInToday += cs.TotalInToday
		report.TotalOutToday += cs.TotalOutToday
		if cs.TotalInToday > busiestIn {
			busiest, busiestIn = id, cs.TotalInToday
		}
	}
	report.BusiestCamera = busiest
	return report, nil
}

// ArchivedEvents queries persisted crossing-event history. Requires
// the archive; without it only the per-camera in-memory logs exist.
func (s *OccupancyService) ArchivedEvents(ctx context.Context, cameraID *string, from, to *time.Time, limit, offset int) ([]repository.ArchivedEvent, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("%w: event archive is disabled", ErrInvalidInput)
	}
	if cameraID != nil {
		if _, err := s.runtime(*cameraID); err != nil {
			return nil, err
		}
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, fmt.Errorf("%w: to must not precede from", ErrInvalidInput)
	}
	return s.archive.FindEvents(ctx, cameraID, from, to, limit, offset)
}

func (s *OccupancyService) summarizeInMemory() map[string]occupancy.CameraDaySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	year, month, day := now.Date()
	out := make(map[string]occupancy.CameraDaySummary, len(s.runtimes))
	for id, rt := range s.runtimes {
		cs := occupancy.CameraDaySummary{VisitsPerHour: map[int]int64{}}
		for _, ev := range rt.Events.RecentEvents(0) {
			y, m, d := ev.Timestamp.Date()
			if y != year || m != month || d != day {
				continue
			}
			if ev.Direction == occupancy.DirectionIn {
				cs.TotalInToday++
				cs.VisitsPerHour[ev.Timestamp.Hour()]++
			} else {
				cs.TotalOutToday++
			}
		}
		out[id] = cs
	}
	return out
}
