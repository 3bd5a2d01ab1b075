package game

import (
	_ "embed"
	"fmt"
	"math/rand/v2"

	"gopkg.in/yaml.v3"
)

const OuterWallThickness = 16.0

//go:embed maps.yaml
var mapsYAML []byte

type mapDef struct {
	ID          int     `yaml:"id"`
	Name        string  `yaml:"name"`
	SpawnAngle  float64 `yaml:"spawn_angle"`
	Spawns      []Vec   `yaml:"spawns"`
	Walls       []Rect  `yaml:"walls"`
	Checkpoints []Rect  `yaml:"checkpoints"`
}

type mapCatalog struct {
	Maps []mapDef `yaml:"maps"`
}

// Track is one immutable course. Callers must not mutate the slices.
type Track struct {
	ID          int
	Name        string
	Walls       []Rect
	Checkpoints []Rect // lap order
	Spawns      [2]Vec
	SpawnAngle  float64
	Bounds      Rect
}

var tracks = mustParseTracks(mapsYAML)

func mustParseTracks(b []byte) []*Track {
	ts, err := parseTracks(b)
	if err != nil {
		panic(err)
	}
	return ts
}

func parseTracks(b []byte) ([]*Track, error) {
	var cat mapCatalog
	if err := yaml.Unmarshal(b, &cat); err != nil {
		return nil, fmt.Errorf("parse maps: %w", err)
	}
	if len(cat.Maps) == 0 {
		return nil, fmt.Errorf("parse maps: no maps defined")
	}
	out := make([]*Track, len(cat.Maps))
	for i, d := range cat.Maps {
		if d.ID != i {
			return nil, fmt.Errorf("parse maps: map at index %d has id %d", i, d.ID)
		}
		if len(d.Spawns) != 2 {
			return nil, fmt.Errorf("parse maps: map %d needs 2 spawns, has %d", d.ID, len(d.Spawns))
		}
		if len(d.Checkpoints) == 0 {
			return nil, fmt.Errorf("parse maps: map %d has no checkpoints", d.ID)
		}
		out[i] = &Track{
			ID:          d.ID,
			Name:        d.Name,
			Walls:       append(outerWalls(), d.Walls...),
			Checkpoints: d.Checkpoints,
			Spawns:      [2]Vec{d.Spawns[0], d.Spawns[1]},
			SpawnAngle:  d.SpawnAngle,
			Bounds:      Rect{W: WorldWidth, H: WorldHeight},
		}
	}
	return out, nil
}

func outerWalls() []Rect {
	const t = OuterWallThickness
	return []Rect{
		{X: 0, Y: 0, W: WorldWidth, H: t},
		{X: 0, Y: WorldHeight - t, W: WorldWidth, H: t},
		{X: 0, Y: 0, W: t, H: WorldHeight},
		{X: WorldWidth - t, Y: 0, W: t, H: WorldHeight},
	}
}

// ClampMapID maps anything outside the catalog to map 0.
func ClampMapID(id int) int {
	if id < 0 || id >= len(tracks) {
		return 0
	}
	return id
}

// LoadTrack returns the course for id, clamped with ClampMapID.
func LoadTrack(id int) *Track {
	return tracks[ClampMapID(id)]
}

// CollidesWithWalls reports whether r overlaps any wall.
func (t *Track) CollidesWithWalls(r Rect) bool {
	for _, w := range t.Walls {
		if r.Overlaps(w) {
			return true
		}
	}
	return false
}

// CheckpointHit tests only checkpoint index, so a later checkpoint can never
// be taken out of order.
func (t *Track) CheckpointHit(c *Car, index int) bool {
	if index < 0 || index >= len(t.Checkpoints) {
		return false
	}
	return c.AABB().Overlaps(t.Checkpoints[index])
}

// RandomSafePoint samples top-left corners for an objW x objH box inside
// bounds until one clears every wall. ok is false after maxAttempts misses.
func (t *Track) RandomSafePoint(rng *rand.Rand, bounds Rect, objW, objH float64, maxAttempts int) (p Vec, ok bool) {
	spanX := bounds.W - objW
	spanY := bounds.H - objH
	if spanX < 0 || spanY < 0 {
		return Vec{}, false
	}
	for i := 0; i < maxAttempts; i++ {
		p = Vec{
			X: bounds.X + rng.Float64()*spanX,
			Y: bounds.Y + rng.Float64()*spanY,
		}
		if !t.CollidesWithWalls(Rect{X: p.X, Y: p.Y, W: objW, H: objH}) {
			return p, true
		}
	}
	return Vec{}, false
}
