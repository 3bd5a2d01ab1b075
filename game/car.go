package game

import "math"

// Controls is one tick of driving input. Throttle and Brake are independent
// buttons, not an axis.
type Controls struct {
	Throttle bool
	Brake    bool
	Left     bool
	Right    bool
}

// Color is an RGB triple passed through to the renderer.
type Color struct {
	R, G, B uint8
}

// Livery is how a car is painted. The simulation never reads it.
type Livery struct {
	Body Color
	Nose Color
}

var (
	LiveryP1 = Livery{Body: Color{230, 230, 230}, Nose: Color{255, 80, 80}}
	LiveryP2 = Livery{Body: Color{120, 160, 255}, Nose: Color{255, 255, 80}}
)

// CarSpec fully describes a car at construction.
type CarSpec struct {
	X, Y   float64
	Angle  float64
	Tuning Tuning
	W, H   float64
	Livery Livery
}

type Car struct {
	X, Y   float64
	Angle  float64 // radians, 0 faces +X
	Speed  float64 // signed, negative is reverse
	Tuning Tuning
	W, H   float64
	Livery Livery

	HasItem     bool
	BoostTimer  float64 // seconds left, 0 when inactive
	EmoteID     int     // 0 when none
	EmoteExpiry float64 // host-clock seconds
}

func NewCar(spec CarSpec) *Car {
	w, h := spec.W, spec.H
	if w <= 0 {
		w = CarWidth
	}
	if h <= 0 {
		h = CarHeight
	}
	return &Car{
		X:      spec.X,
		Y:      spec.Y,
		Angle:  spec.Angle,
		Tuning: spec.Tuning,
		W:      w,
		H:      h,
		Livery: spec.Livery,
	}
}

// AABB is the car's collision box. Heading does not rotate it.
func (c *Car) AABB() Rect {
	return RectCentered(c.X, c.Y, c.W, c.H)
}

// Boosting reports whether a boost is active.
func (c *Car) Boosting() bool {
	return c.BoostTimer > 0
}

// Advance integrates one tick of kinematics. It never touches the track;
// wall response is applied by the match afterwards.
func (c *Car) Advance(dt float64, in Controls) {
	if dt < 0 {
		dt = 0
	}
	accel := c.Tuning.Accel
	maxSpeed := c.Tuning.MaxSpeed
	if c.Boosting() {
		accel *= BoostMult
		maxSpeed *= BoostMult
	}

	switch {
	case in.Throttle:
		c.Speed += accel * dt
	case in.Brake:
		c.Speed -= c.Tuning.Brake * dt
	case c.Speed > 0:
		c.Speed = math.Max(0, c.Speed-c.Tuning.Friction*dt)
	case c.Speed < 0:
		c.Speed = math.Min(0, c.Speed+c.Tuning.Friction*dt)
	}

	if c.BoostTimer > 0 {
		c.BoostTimer = math.Max(0, c.BoostTimer-dt)
	}

	c.Speed = clamp(c.Speed, -maxSpeed*ReverseSpeedFraction, maxSpeed)

	if math.Abs(c.Speed) > MinTurnSpeed {
		if in.Left {
			c.Angle -= c.Tuning.TurnRate * dt
		}
		if in.Right {
			c.Angle += c.Tuning.TurnRate * dt
		}
	}

	c.X += math.Cos(c.Angle) * c.Speed * dt
	c.Y += math.Sin(c.Angle) * c.Speed * dt
}

// ActivateBoost spends the held item. Without an item it does nothing.
func (c *Car) ActivateBoost() bool {
	if !c.HasItem {
		return false
	}
	c.HasItem = false
	c.BoostTimer = BoostDuration
	return true
}

// SetEmote shows emote id until now+EmoteDuration. Ids outside 1..MaxEmoteID
// are ignored.
func (c *Car) SetEmote(id int, now float64) {
	if id < 1 || id > MaxEmoteID {
		return
	}
	c.EmoteID = id
	c.EmoteExpiry = now + EmoteDuration
}

func (c *Car) ExpireEmote(now float64) {
	if c.EmoteID != 0 && now >= c.EmoteExpiry {
		c.EmoteID = 0
	}
}

// Place puts the car on a grid slot at rest with all transient status cleared.
func (c *Car) Place(p Vec, angle float64) {
	c.X, c.Y = p.X, p.Y
	c.Angle = angle
	c.Speed = 0
	c.HasItem = false
	c.BoostTimer = 0
	c.EmoteID = 0
	c.EmoteExpiry = 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
