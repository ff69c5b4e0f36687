package sim

import (
	"errors"
	"fmt"
	"time"
)

// Defaults match the reference tuning: bubbles launch at a fixed speed and
// every frame advances the physics by a burst of fine-grained sub-steps.
const (
	DefaultSpeed    = 100.0
	DefaultSubSteps = 100
	// DefaultSubStepDT is the integration step for a single sub-step. It is
	// a tunable constant, not derived: 100 sub-steps per frame at this dt
	// advance the world by one frame's worth of simulated time at 60 FPS.
	DefaultSubStepDT = 1.0 / 6000.0

	// DefaultPlacementRetries caps random placement draws when a minimum
	// separation is requested, before falling back to an unconstrained draw.
	DefaultPlacementRetries = 16
)

// ErrInvalidConfig is wrapped by all Config validation failures.
var ErrInvalidConfig = errors.New("invalid simulation config")

// JitterPolicy selects how the respawn delay jitter is drawn. The reference
// implementation draws the delay jitter as a degenerate uniform over
// [jitter, jitter] (a constant offset) while the visible-duration jitter is
// symmetric; the policy is an explicit knob so either behavior is available.
type JitterPolicy int

const (
	// JitterConstant adds the full jitter as a fixed offset (reference behavior).
	JitterConstant JitterPolicy = iota
	// JitterOneSided draws uniformly from [0, jitter].
	JitterOneSided
	// JitterSymmetric draws uniformly from [-jitter, +jitter].
	JitterSymmetric
)

func (p JitterPolicy) String() string {
	switch p {
	case JitterConstant:
		return "constant"
	case JitterOneSided:
		return "one-sided"
	case JitterSymmetric:
		return "symmetric"
	default:
		return fmt.Sprintf("JitterPolicy(%d)", int(p))
	}
}

// Config holds the tunables for a Simulation. The zero value is not usable;
// fill in Radius, AreaWidth and AreaHeight at minimum. Zero-valued Speed,
// SubSteps, SubStepDT and PlacementRetries take package defaults.
type Config struct {
	// Radius is the collider radius shared by every bubble.
	Radius float64
	// AreaWidth and AreaHeight define the arena, centered at the origin.
	AreaWidth  float64
	AreaHeight float64

	// InitialBubbles is the population spawned during construction.
	InitialBubbles int
	// WarmupSteps runs this many full steps before New returns so the
	// population disperses before the first caller-observed frame.
	WarmupSteps int

	// Speed is the launch speed; direction is uniform over [0, 2π).
	Speed float64

	// DurationMean is the visible duration of a bubble before timeout,
	// jittered symmetrically by DurationJitter.
	DurationMean   time.Duration
	DurationJitter time.Duration

	// DelayMean is the respawn delay after a bubble ends, jittered by
	// DelayJitter according to DelayJitterPolicy.
	DelayMean         time.Duration
	DelayJitter       time.Duration
	DelayJitterPolicy JitterPolicy

	// MinSeparation, when positive, rejects placement draws closer than
	// this to any tracked bubble, retrying up to PlacementRetries times
	// before accepting an unconstrained draw. Zero disables the check,
	// matching the reference (its too-close check never rejects).
	MinSeparation    float64
	PlacementRetries int

	// SubSteps and SubStepDT control the physics burst per Step call.
	SubSteps  int
	SubStepDT float64
}

// withDefaults returns a copy with zero-valued tunables filled in.
func (c Config) withDefaults() Config {
	if c.Speed == 0 {
		c.Speed = DefaultSpeed
	}
	if c.SubSteps == 0 {
		c.SubSteps = DefaultSubSteps
	}
	if c.SubStepDT == 0 {
		c.SubStepDT = DefaultSubStepDT
	}
	if c.MinSeparation > 0 && c.PlacementRetries == 0 {
		c.PlacementRetries = DefaultPlacementRetries
	}
	return c
}

// Validate checks the config after defaults are applied. Degenerate
// geometry and inverted jitter ranges are rejected here so they can never
// reach the physics engine as undefined behavior.
func (c Config) Validate() error {
	if c.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidConfig, c.Radius)
	}
	if c.AreaWidth <= 0 || c.AreaHeight <= 0 {
		return fmt.Errorf("%w: arena must have positive dimensions, got %vx%v",
			ErrInvalidConfig, c.AreaWidth, c.AreaHeight)
	}
	if 2*c.Radius >= c.AreaWidth || 2*c.Radius >= c.AreaHeight {
		return fmt.Errorf("%w: radius %v does not fit a %vx%v arena",
			ErrInvalidConfig, c.Radius, c.AreaWidth, c.AreaHeight)
	}
	if c.InitialBubbles < 0 {
		return fmt.Errorf("%w: initial bubble count must not be negative, got %d",
			ErrInvalidConfig, c.InitialBubbles)
	}
	if c.WarmupSteps < 0 {
		return fmt.Errorf("%w: warmup steps must not be negative, got %d",
			ErrInvalidConfig, c.WarmupSteps)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("%w: speed must be positive, got %v", ErrInvalidConfig, c.Speed)
	}
	if c.DurationMean < 0 || c.DelayMean < 0 {
		return fmt.Errorf("%w: duration and delay means must not be negative",
			ErrInvalidConfig)
	}
	if c.DurationJitter < 0 || c.DelayJitter < 0 {
		return fmt.Errorf("%w: jitters must not be negative", ErrInvalidConfig)
	}
	if c.DurationJitter > c.DurationMean {
		return fmt.Errorf("%w: duration jitter %v exceeds mean %v",
			ErrInvalidConfig, c.DurationJitter, c.DurationMean)
	}
	if c.DelayJitterPolicy == JitterSymmetric && c.DelayJitter > c.DelayMean {
		return fmt.Errorf("%w: symmetric delay jitter %v exceeds mean %v",
			ErrInvalidConfig, c.DelayJitter, c.DelayMean)
	}
	switch c.DelayJitterPolicy {
	case JitterConstant, JitterOneSided, JitterSymmetric:
	default:
		return fmt.Errorf("%w: unknown delay jitter policy %d",
			ErrInvalidConfig, int(c.DelayJitterPolicy))
	}
	if c.MinSeparation < 0 {
		return fmt.Errorf("%w: min separation must not be negative, got %v",
			ErrInvalidConfig, c.MinSeparation)
	}
	if c.PlacementRetries < 0 {
		return fmt.Errorf("%w: placement retries must not be negative, got %d",
			ErrInvalidConfig, c.PlacementRetries)
	}
	if c.SubSteps <= 0 {
		return fmt.Errorf("%w: sub-steps must be positive, got %d", ErrInvalidConfig, c.SubSteps)
	}
	if c.SubStepDT <= 0 {
		return fmt.Errorf("%w: sub-step dt must be positive, got %v", ErrInvalidConfig, c.SubStepDT)
	}
	return nil
}
