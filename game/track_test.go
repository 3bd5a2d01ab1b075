package game

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestCatalogSpawnsAreClear(t *testing.T) {
	if len(tracks) != MapCount {
		t.Fatalf("catalog has %d maps, want %d", len(tracks), MapCount)
	}
	for _, tr := range tracks {
		for i, sp := range tr.Spawns {
			box := RectCentered(sp.X, sp.Y, CarWidth, CarHeight)
			if tr.CollidesWithWalls(box) {
				t.Fatalf("map %d spawn %d at %+v is inside a wall", tr.ID, i, sp)
			}
			for j, cp := range tr.Checkpoints {
				if box.Overlaps(cp) {
					t.Fatalf("map %d spawn %d already touches checkpoint %d", tr.ID, i, j)
				}
			}
		}
	}
}

func TestLoadTrackClampsInvalidID(t *testing.T) {
	for _, id := range []int{-1, MapCount, 99} {
		if got := LoadTrack(id).ID; got != 0 {
			t.Fatalf("LoadTrack(%d).ID = %d, want 0", id, got)
		}
	}
	if got := LoadTrack(3).ID; got != 3 {
		t.Fatalf("LoadTrack(3).ID = %d, want 3", got)
	}
}

func TestParseTracksRejectsBadCatalog(t *testing.T) {
	cases := map[string]string{
		"not yaml":     "maps: [",
		"empty":        "maps: []",
		"one spawn":    "maps:\n  - id: 0\n    spawns: [{x: 1, y: 1}]\n    checkpoints: [{x: 0, y: 0, w: 1, h: 1}]\n",
		"out of order": "maps:\n  - id: 1\n    spawns: [{x: 1, y: 1}, {x: 2, y: 2}]\n    checkpoints: [{x: 0, y: 0, w: 1, h: 1}]\n",
	}
	for name, src := range cases {
		if _, err := parseTracks([]byte(src)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestRectOverlapIgnoresTouchingEdges(t *testing.T) {
	a := Rect{X: 0, Y: 0, W: 10, H: 10}
	if a.Overlaps(Rect{X: 10, Y: 0, W: 5, H: 5}) {
		t.Fatalf("edge-touching rects reported as overlapping")
	}
	if !a.Overlaps(Rect{X: 9, Y: 9, W: 5, H: 5}) {
		t.Fatalf("overlapping rects reported as clear")
	}
}

func TestCheckpointHitOnlyTestsRequestedIndex(t *testing.T) {
	tr := &Track{Checkpoints: []Rect{
		{X: 0, Y: 0, W: 10, H: 10},
		{X: 100, Y: 100, W: 10, H: 10},
	}}
	c := NewCar(CarSpec{X: 105, Y: 105})
	if tr.CheckpointHit(c, 0) {
		t.Fatalf("hit checkpoint 0 while sitting on checkpoint 1")
	}
	if !tr.CheckpointHit(c, 1) {
		t.Fatalf("missed checkpoint 1")
	}
	if tr.CheckpointHit(c, 2) {
		t.Fatalf("out of range index reported a hit")
	}
}

func TestSlideKeepsUnblockedAxis(t *testing.T) {
	// vertical wall just right of the car
	tr := &Track{Walls: []Rect{{X: 200, Y: 0, W: 50, H: 400}}}
	c := NewCar(CarSpec{X: 188, Y: 100, Angle: math.Pi / 4, Tuning: TuningVersus})
	c.Speed = 200
	from := Vec{X: c.X, Y: c.Y}
	c.Advance(0.1, Controls{})
	proposed := Vec{X: c.X, Y: c.Y}
	if proposed.X == from.X || proposed.Y == from.Y {
		t.Fatalf("test setup: move not diagonal: %+v -> %+v", from, proposed)
	}

	tr.Slide(c, from)
	if c.X != from.X {
		t.Fatalf("blocked X = %v, want old %v", c.X, from.X)
	}
	if c.Y != proposed.Y {
		t.Fatalf("free Y = %v, want proposed %v", c.Y, proposed.Y)
	}
}

func TestSlideRevertsYOnlyWhenFloorBlocks(t *testing.T) {
	tr := &Track{Walls: []Rect{{X: 0, Y: 110, W: 400, H: 50}}}
	c := NewCar(CarSpec{X: 100, Y: 100})
	from := Vec{X: 100, Y: 100}
	c.X, c.Y = 120, 110

	tr.Slide(c, from)
	if c.X != 120 || c.Y != 100 {
		t.Fatalf("position = (%v, %v), want (120, 100)", c.X, c.Y)
	}
}

func TestRandomSafePoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tr := LoadTrack(0)
	for i := 0; i < 20; i++ {
		p, ok := tr.RandomSafePoint(rng, tr.Bounds, ItemSize, ItemSize, SafePointMaxAttempts)
		if !ok {
			continue
		}
		if tr.CollidesWithWalls(Rect{X: p.X, Y: p.Y, W: ItemSize, H: ItemSize}) {
			t.Fatalf("safe point %+v collides with a wall", p)
		}
	}

	blocked := &Track{Walls: []Rect{{X: -10, Y: -10, W: 1000, H: 1000}}}
	if _, ok := blocked.RandomSafePoint(rng, Rect{W: 900, H: 600}, ItemSize, ItemSize, SafePointMaxAttempts); ok {
		t.Fatalf("found a safe point on a fully walled track")
	}
}
