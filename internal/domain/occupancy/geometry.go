package occupancy

// Point is a position in normalized [0,1]x[0,1] coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line is an entrance line between two normalized points.
type Line struct {
	P1 Point `json:"p1"`
	P2 Point `json:"p2"`
}

// Side of the entrance line a point falls on.
type Side int8

const (
	SideUnknown Side = iota
	SideLeft
	SideRight
	SideOn
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SideOn:
		return "on"
	default:
		return "unknown"
	}
}

// sideEpsilon is the half-width of the band around the line mapped to
// SideOn. Points inside it never trigger a transition, so jitter on the
// boundary cannot fabricate crossings. Normalized coordinates, so this
// is a fraction of the frame.
const sideEpsilon = 1e-4

// Side classifies p against the line using the sign of the 2D cross
// product of (P2-P1) and (p-P1). Coordinates are image-style (origin
// top-left, y down), so the positive-cross side is the right of an
// observer walking P1->P2. Which physical side of the doorway that is
// depends on the line definition, which is why the IN/OUT mapping is a
// separate config choice.
func (l Line) Side(p Point) Side {
	cross := (l.P2.X-l.P1.X)*(p.Y-l.P1.Y) - (l.P2.Y-l.P1.Y)*(p.X-l.P1.X)
	switch {
	case cross > sideEpsilon:
		return SideRight
	case cross < -sideEpsilon:
		return SideLeft
	default:
		return SideOn
	}
}
