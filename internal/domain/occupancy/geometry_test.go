package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSide(t *testing.T) {
	line := Line{P1: Point{X: 0.1, Y: 0.8}, P2: Point{X: 0.9, Y: 0.8}}

	tests := []struct {
		name  string
		point Point
		want  Side
	}{
		{"below horizontal line", Point{X: 0.5, Y: 0.9}, SideRight},
		{"above horizontal line", Point{X: 0.5, Y: 0.7}, SideLeft},
		{"exactly on line", Point{X: 0.5, Y: 0.8}, SideOn},
		{"within epsilon band", Point{X: 0.5, Y: 0.8 + 1e-7}, SideOn},
		{"just outside epsilon band", Point{X: 0.5, Y: 0.801}, SideRight},
		{"beyond segment extent still classified", Point{X: 2.0, Y: 0.9}, SideRight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, line.Side(tt.point))
		})
	}
}

func TestLineSideVertical(t *testing.T) {
	// The line points down the image (y grows downward), so an observer
	// walking P1->P2 has the smaller-x half of the frame on their right.
	line := Line{P1: Point{X: 0.5, Y: 0.0}, P2: Point{X: 0.5, Y: 1.0}}

	assert.Equal(t, SideRight, line.Side(Point{X: 0.2, Y: 0.5}))
	assert.Equal(t, SideLeft, line.Side(Point{X: 0.8, Y: 0.5}))
	assert.Equal(t, SideOn, line.Side(Point{X: 0.5, Y: 0.9}))
}

func TestLineSideReversedEndpoints(t *testing.T) {
	// Swapping P1 and P2 flips left and right; the direction mapping in
	// config is what keeps IN/OUT stable, not the geometry.
	fwd := Line{P1: Point{X: 0.1, Y: 0.8}, P2: Point{X: 0.9, Y: 0.8}}
	rev := Line{P1: fwd.P2, P2: fwd.P1}
	p := Point{X: 0.5, Y: 0.9}

	assert.Equal(t, SideRight, fwd.Side(p))
	assert.Equal(t, SideLeft, rev.Side(p))
}

func TestBoundingBoxCenter(t *testing.T) {
	b := BoundingBox{X1: 10, Y1: 20, X2: 30, Y2: 60}
	c := b.Center()
	assert.Equal(t, 20.0, c.X)
	assert.Equal(t, 40.0, c.Y)
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionOut, DirectionIn.Opposite())
	assert.Equal(t, DirectionIn, DirectionOut.Opposite())
}
