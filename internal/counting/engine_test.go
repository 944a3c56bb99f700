package counting

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occupancy-service/internal/domain/occupancy"
)

var testCamera = occupancy.Camera{
	ID:   "cam-1",
	Name: "Main Entrance",
	EntranceLine: occupancy.Line{
		P1: occupancy.Point{X: 0.1, Y: 0.8},
		P2: occupancy.Point{X: 0.9, Y: 0.8},
	},
	LeftToRight: occupancy.DirectionIn,
}

func newTestEngine(cfg Config) *Engine {
	return NewEngine(testCamera, cfg, zerolog.Nop())
}

func TestObserveFirstObservationEmitsNothing(t *testing.T) {
	e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: time.Minute})

	// First observation only establishes the side, even when it is
	// already past the line.
	_, crossed := e.Observe(1, occupancy.Point{X: 0.5, Y: 0.9}, time.Now())
	assert.False(t, crossed)
}

func TestObserveEmitsOncePerCrossing(t *testing.T) {
	e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: time.Minute})
	t0 := time.Now()

	_, crossed := e.Observe(7, occupancy.Point{X: 0.5, Y: 0.7}, t0)
	require.False(t, crossed)

	dir, crossed := e.Observe(7, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(100*time.Millisecond))
	require.True(t, crossed)
	assert.Equal(t, occupancy.DirectionIn, dir)

	// Same side again: no event.
	_, crossed = e.Observe(7, occupancy.Point{X: 0.6, Y: 0.95}, t0.Add(200*time.Millisecond))
	assert.False(t, crossed)
}

// The scenario from the entrance-line contract: first observation
// establishes the side, the first transition emits, and a reversal
// inside the cooldown is suppressed.
func TestObserveScenarioCooldownSuppressesReversal(t *testing.T) {
	e := newTestEngine(Config{Cooldown: 2 * time.Second, IdleTimeout: time.Minute})
	t0 := time.Now()

	_, crossed := e.Observe(42, occupancy.Point{X: 0.5, Y: 0.9}, t0)
	require.False(t, crossed, "first observation establishes side, not an event")

	dir, crossed := e.Observe(42, occupancy.Point{X: 0.5, Y: 0.7}, t0.Add(200*time.Millisecond))
	require.True(t, crossed)
	assert.Equal(t, occupancy.DirectionOut, dir, "right to left is out when left to right is in")

	_, crossed = e.Observe(42, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(400*time.Millisecond))
	assert.False(t, crossed, "sub-cooldown reversal must be suppressed")
}

func TestObserveCountsAgainAfterCooldown(t *testing.T) {
	e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: time.Minute})
	t0 := time.Now()

	e.Observe(3, occupancy.Point{X: 0.5, Y: 0.9}, t0)
	_, crossed := e.Observe(3, occupancy.Point{X: 0.5, Y: 0.7}, t0.Add(100*time.Millisecond))
	require.True(t, crossed)

	// Back across after the cooldown has expired: counted again.
	dir, crossed := e.Observe(3, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(1500*time.Millisecond))
	require.True(t, crossed)
	assert.Equal(t, occupancy.DirectionIn, dir)
}

func TestObserveSuppressedCrossingDoesNotReplayLater(t *testing.T) {
	e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: time.Minute})
	t0 := time.Now()

	e.Observe(5, occupancy.Point{X: 0.5, Y: 0.9}, t0)
	_, crossed := e.Observe(5, occupancy.Point{X: 0.5, Y: 0.7}, t0.Add(100*time.Millisecond))
	require.True(t, crossed)
	// Reversal inside the cooldown: suppressed, but the recorded side
	// still advances.
	_, crossed = e.Observe(5, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(200*time.Millisecond))
	require.False(t, crossed)

	// The track then stays put past the cooldown. No phantom event may
	// appear for the suppressed reversal.
	_, crossed = e.Observe(5, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(2*time.Second))
	assert.False(t, crossed)
}

func TestObserveOnLineIsNoChange(t *testing.T) {
	e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: time.Minute})
	t0 := time.Now()

	e.Observe(9, occupancy.Point{X: 0.5, Y: 0.7}, t0)
	// Jitter onto the line itself never flips the recorded side.
	_, crossed := e.Observe(9, occupancy.Point{X: 0.5, Y: 0.8}, t0.Add(50*time.Millisecond))
	require.False(t, crossed)
	_, crossed = e.Observe(9, occupancy.Point{X: 0.5, Y: 0.7}, t0.Add(100*time.Millisecond))
	require.False(t, crossed, "returning from the line to the same side is not a crossing")

	dir, crossed := e.Observe(9, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(150*time.Millisecond))
	require.True(t, crossed)
	assert.Equal(t, occupancy.DirectionIn, dir)
}

func TestObserveReplayIsIdempotent(t *testing.T) {
	type obs struct {
		id int
		p  occupancy.Point
		dt time.Duration
	}
	seq := []obs{
		{1, occupancy.Point{X: 0.5, Y: 0.9}, 0},
		{1, occupancy.Point{X: 0.5, Y: 0.7}, 100 * time.Millisecond},
		{2, occupancy.Point{X: 0.3, Y: 0.7}, 150 * time.Millisecond},
		{1, occupancy.Point{X: 0.5, Y: 0.9}, 300 * time.Millisecond},
		{2, occupancy.Point{X: 0.3, Y: 0.9}, 400 * time.Millisecond},
		{1, occupancy.Point{X: 0.5, Y: 0.7}, 3 * time.Second},
	}

	run := func() []occupancy.Direction {
		e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: time.Minute})
		t0 := time.Unix(1700000000, 0)
		var out []occupancy.Direction
		for _, o := range seq {
			if dir, ok := e.Observe(o.id, o.p, t0.Add(o.dt)); ok {
				out = append(out, dir)
			}
		}
		return out
	}

	first := run()
	require.NotEmpty(t, first)
	assert.Equal(t, first, run(), "replaying the same positions must emit the same directions")
}

func TestObserveMalformedPositions(t *testing.T) {
	e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: time.Minute})
	t0 := time.Now()

	e.Observe(4, occupancy.Point{X: 0.5, Y: 0.7}, t0)

	// Far out of range and non-finite positions are rejected outright.
	_, crossed := e.Observe(4, occupancy.Point{X: 3.5, Y: 0.9}, t0.Add(50*time.Millisecond))
	assert.False(t, crossed)
	_, crossed = e.Observe(4, occupancy.Point{X: math.NaN(), Y: 0.9}, t0.Add(60*time.Millisecond))
	assert.False(t, crossed)

	// Rejected observations must not have corrupted the recorded side:
	// a real crossing afterwards still counts.
	dir, crossed := e.Observe(4, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(100*time.Millisecond))
	require.True(t, crossed)
	assert.Equal(t, occupancy.DirectionIn, dir)

	// Slightly past the edge is clamped, not rejected.
	_, crossed = e.Observe(8, occupancy.Point{X: 1.02, Y: 0.7}, t0)
	assert.False(t, crossed)
	dir, crossed = e.Observe(8, occupancy.Point{X: 1.02, Y: 0.9}, t0.Add(100*time.Millisecond))
	require.True(t, crossed)
	assert.Equal(t, occupancy.DirectionIn, dir)
}

func TestIdleEviction(t *testing.T) {
	e := newTestEngine(Config{Cooldown: time.Second, IdleTimeout: 10 * time.Second})
	t0 := time.Now()

	e.Observe(1, occupancy.Point{X: 0.5, Y: 0.7}, t0)
	e.Observe(2, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(time.Second))
	require.Equal(t, 2, e.TrackCount())

	// Track 2 keeps reporting; track 1 goes idle past the timeout and
	// is swept on a later observation.
	e.Observe(2, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(11*time.Second))
	e.Observe(2, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(22*time.Second))
	assert.Equal(t, 1, e.TrackCount())
}

func TestDirectionMappingIsConfigurable(t *testing.T) {
	cam := testCamera
	cam.LeftToRight = occupancy.DirectionOut
	e := NewEngine(cam, Config{Cooldown: time.Second, IdleTimeout: time.Minute}, zerolog.Nop())
	t0 := time.Now()

	e.Observe(1, occupancy.Point{X: 0.5, Y: 0.7}, t0)
	dir, crossed := e.Observe(1, occupancy.Point{X: 0.5, Y: 0.9}, t0.Add(100*time.Millisecond))
	require.True(t, crossed)
	assert.Equal(t, occupancy.DirectionOut, dir)
}
