package game

const (
	WorldWidth           = 900.0
	WorldHeight          = 600.0
	CarWidth             = 20.0
	CarHeight            = 11.0
	ItemSize             = 16.0
	ReverseSpeedFraction = 0.4 // reverse top speed as a fraction of forward
	MinTurnSpeed         = 5.0 // |speed| below this cannot steer
	BoostMult            = 1.8 // accel and top speed while boosting
	BoostDuration        = 2.0
	EmoteDuration        = 1.0
	MaxEmoteID           = 5
	CountdownSeconds     = 3.0
	GoDisplaySeconds     = 0.6
	VoteDelaySeconds     = 5.0 // result screen before rematch votes count
	ItemSpawnInterval    = 5.0
	MaxItems             = 5
	SafePointMaxAttempts = 50
	MapCount             = 5
)

// Tuning holds the per-car handling constants.
type Tuning struct {
	Accel    float64 `yaml:"accel"`
	Brake    float64 `yaml:"brake"`
	Friction float64 `yaml:"friction"`
	TurnRate float64 `yaml:"turn_rate"`
	MaxSpeed float64 `yaml:"max_speed"`
}

// TuningVersus is used for networked and local two-player races.
var TuningVersus = Tuning{
	Accel:    200,
	Brake:    300,
	Friction: 160,
	TurnRate: 2.6,
	MaxSpeed: 300,
}

// TuningClassic is the faster single-car handling.
var TuningClassic = Tuning{
	Accel:    300,
	Brake:    450,
	Friction: 240,
	TurnRate: 2.6,
	MaxSpeed: 500,
}

// TuningPreset resolves a preset name. Unknown names fall back to versus.
func TuningPreset(name string) Tuning {
	switch name {
	case "classic":
		return TuningClassic
	default:
		return TuningVersus
	}
}
