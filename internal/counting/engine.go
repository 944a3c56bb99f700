package counting

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"occupancy-service/internal/domain/occupancy"
)

// coordSlack is how far outside [0,1] a coordinate may fall and still be
// clamped instead of rejected. Trackers interpolate boxes slightly past
// the frame edge; anything further out is treated as malformed.
const coordSlack = 0.05

// trackState is the per-track crossing record. Created on first
// observation, evicted after the idle timeout.
type trackState struct {
	lastSide     occupancy.Side
	lastCrossing time.Time
	counted      bool
	lastSeen     time.Time
}

// Config tunes one engine instance.
type Config struct {
	// Cooldown is the minimum interval between two counted crossings of
	// the same track. Candidate crossings inside it are suppressed.
	Cooldown time.Duration
	// IdleTimeout evicts track state not observed for this long, so
	// tracker id churn cannot grow the map without bound.
	IdleTimeout time.Duration
}

// Engine turns a stream of per-frame track positions for one camera
// into directional crossing events. It is not safe for concurrent use:
// each camera worker owns exactly one engine and is its only caller.
type Engine struct {
	cameraID    string
	line        occupancy.Line
	leftToRight occupancy.Direction
	cfg         Config
	tracks      map[int]*trackState
	lastSweep   time.Time
	log         zerolog.Logger
}

// NewEngine builds an engine for the camera's entrance line and
// direction mapping.
func NewEngine(camera occupancy.Camera, cfg Config, log zerolog.Logger) *Engine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	return &Engine{
		cameraID:    camera.ID,
		line:        camera.EntranceLine,
		leftToRight: camera.LeftToRight,
		cfg:         cfg,
		tracks:      make(map[int]*trackState),
		log:         log.With().Str("camera_id", camera.ID).Logger(),
	}
}

// Observe feeds one normalized track position into the state machine.
// It returns the crossing direction and true when this observation
// completes a counted crossing, and false otherwise: on the first
// observation of a track, on same-side or on-line observations, on
// malformed positions, and on crossings suppressed by the cooldown.
func (e *Engine) Observe(trackID int, p occupancy.Point, ts time.Time) (occupancy.Direction, bool) {
	e.sweep(ts)

	p, ok := e.sanitize(trackID, p)
	if !ok {
		return "", false
	}

	st, exists := e.tracks[trackID]
	if !exists {
		st = &trackState{}
		e.tracks[trackID] = st
	}
	st.lastSeen = ts

	side := e.line.Side(p)
	if side == occupancy.SideOn {
		// On the line is "no change": wait for a definite side.
		return "", false
	}

	if st.lastSide == occupancy.SideUnknown {
		// Two observations are needed to detect a transition. A track
		// first seen already past the line records its side silently.
		st.lastSide = side
		return "", false
	}

	if side == st.lastSide {
		return "", false
	}

	// Definite side change: candidate crossing.
	dir := e.leftToRight
	if st.lastSide == occupancy.SideRight {
		dir = e.leftToRight.Opposite()
	}
	st.lastSide = side

	if st.counted && ts.Sub(st.lastCrossing) < e.cfg.Cooldown {
		e.log.Debug().Int("track_id", trackID).Str("direction", string(dir)).
			Msg("crossing suppressed by cooldown")
		return "", false
	}

	st.counted = true
	st.lastCrossing = ts
	e.log.Info().Int("track_id", trackID).Str("direction", string(dir)).
		Msg("track crossed entrance line")
	return dir, true
}

// TrackCount returns the number of live track records.
func (e *Engine) TrackCount() int {
	return len(e.tracks)
}

// sanitize clamps slightly out-of-range coordinates into [0,1] and
// rejects positions that are far out of range or not finite, so a
// misbehaving tracker can never corrupt crossing state.
func (e *Engine) sanitize(trackID int, p occupancy.Point) (occupancy.Point, bool) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) ||
		p.X < -coordSlack || p.X > 1+coordSlack || p.Y < -coordSlack || p.Y > 1+coordSlack {
		e.log.Warn().Int("track_id", trackID).
			Float64("x", p.X).Float64("y", p.Y).
			Msg("rejecting malformed track position")
		return p, false
	}
	p.X = math.Min(math.Max(p.X, 0), 1)
	p.Y = math.Min(math.Max(p.Y, 0), 1)
	return p, true
}

// sweep lazily evicts idle track state, at most once per idle timeout.
func (e *Engine) sweep(now time.Time) {
	if now.Sub(e.lastSweep) < e.cfg.IdleTimeout {
		return
	}
	e.lastSweep = now
	for id, st := range e.tracks {
		if now.Sub(st.lastSeen) > e.cfg.IdleTimeout {
			delete(e.tracks, id)
		}
	}
}
