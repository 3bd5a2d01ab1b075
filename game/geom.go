package game

// Vec is a point or displacement in world units.
type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	W float64 `yaml:"w"`
	H float64 `yaml:"h"`
}

// RectCentered builds a rect of size w x h centred on (cx, cy).
func RectCentered(cx, cy, w, h float64) Rect {
	return Rect{X: cx - w/2, Y: cy - h/2, W: w, H: h}
}

// Overlaps reports whether the two rects share interior area.
// Rects that only touch along an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W &&
		r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

func (r Rect) Center() Vec {
	return Vec{X: r.X + r.W/2, Y: r.Y + r.H/2}
}
