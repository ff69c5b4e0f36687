package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/setanarut/cm"
	"github.com/setanarut/v"

	"github.com/lixenwraith/bubblepop/clock"
)

// ErrHandleNotFound is returned when an operation names a handle that is
// not in the live (Active) set. Removing a bubble twice surfaces this error
// instead of corrupting engine state.
var ErrHandleNotFound = errors.New("bubble handle not found")

const bubbleMass = 1.0

// Simulation owns a physics space containing four elastic walls and a
// population of bubbles, plus the spawn/timeout/respawn policy that keeps
// the population cycling. It is single-threaded: the caller drives it by
// invoking Step once per rendered frame.
type Simulation struct {
	cfg Config
	clk clock.Clock
	rng *rand.Rand

	space *cm.Space

	entities map[Handle]*bubble
	order    []Handle
	nextID   Handle

	running bool
}

// New builds the arena walls, spawns the initial population and runs the
// configured number of warmup steps before returning. Warmup is a
// deterministic-length but randomized-content dispersal pass; it does not
// guarantee a non-overlapping layout, only the iteration count.
//
// A nil clk uses the monotonic system clock. A nil rng seeds from the
// current time; pass a seeded rng for reproducible placement.
func New(cfg Config, clk clock.Clock, rng *rand.Rand) (*Simulation, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.NewMonotonic()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Simulation{
		cfg:      cfg,
		clk:      clk,
		rng:      rng,
		space:    cm.NewSpace(),
		entities: make(map[Handle]*bubble),
	}
	// Zero gravity; bubbles keep their launch speed except through
	// collisions, which the elastic walls and colliders conserve.
	s.space.Gravity = v.Vec{}

	s.buildWalls()

	for i := 0; i < cfg.InitialBubbles; i++ {
		s.AddBubble()
	}
	for i := 0; i < cfg.WarmupSteps; i++ {
		s.Step()
	}
	return s, nil
}

// buildWalls inserts the four static wall segments forming a closed
// rectangle around the arena. Walls are never removed.
func (s *Simulation) buildWalls() {
	hw, hh := s.cfg.AreaWidth/2, s.cfg.AreaHeight/2
	corners := []v.Vec{
		{X: -hw, Y: -hh},
		{X: hw, Y: -hh},
		{X: hw, Y: hh},
		{X: -hw, Y: hh},
	}
	for i := range corners {
		a := corners[i]
		b := corners[(i+1)%len(corners)]
		wall := cm.NewSegmentShape(s.space.StaticBody, a, b, 0)
		wall.SetElasticity(1.0)
		wall.SetFriction(0.0)
		s.space.AddShape(wall)
	}
}

// Start marks the simulation as running. The flag only gates whether the
// caller should be invoking Step; Step itself is always safe to call.
func (s *Simulation) Start() { s.running = true }

// Stop clears the running flag.
func (s *Simulation) Stop() { s.running = false }

// Running reports whether Start has been called without a matching Stop.
func (s *Simulation) Running() bool { return s.running }

// AddBubble spawns one new Active bubble at a random position inside the
// arena with a fixed-speed, random-direction velocity, and returns its
// handle.
func (s *Simulation) AddBubble() Handle {
	pos := s.drawPosition()

	direction := s.rng.Float64() * 2 * math.Pi
	vel := v.Vec{
		X: s.cfg.Speed * math.Cos(direction),
		Y: s.cfg.Speed * math.Sin(direction),
	}

	body := cm.NewBody(bubbleMass, cm.MomentForCircle(bubbleMass, 0, s.cfg.Radius, v.Vec{}))
	shape := cm.NewCircleShape(body, s.cfg.Radius, v.Vec{})
	shape.SetElasticity(1.0)
	shape.SetFriction(0.0)
	body.SetPosition(pos)
	body.SetVelocityVector(vel)
	s.space.AddBodyWithShapes(body)

	s.nextID++
	id := s.nextID
	shape.UserData = id

	b := &bubble{
		id:        id,
		body:      body,
		shape:     shape,
		pos:       pos,
		spawnTime: s.clk.Now(),
		duration:  s.cfg.DurationMean + s.drawDurationJitter(),
		delay:     s.cfg.DelayMean + s.drawDelayJitter(),
		state:     StateActive,
	}
	s.entities[id] = b
	s.order = append(s.order, id)
	return id
}

// drawPosition draws a uniformly random position inside the arena bounds.
// When a minimum separation is configured, draws too close to any tracked
// bubble are rejected and redrawn up to the retry cap, then the last draw
// is accepted unconstrained.
func (s *Simulation) drawPosition() v.Vec {
	hw, hh := s.cfg.AreaWidth/2, s.cfg.AreaHeight/2
	var pos v.Vec
	for attempt := 0; ; attempt++ {
		pos = v.Vec{
			X: uniform(s.rng, -hw, hw),
			Y: uniform(s.rng, -hh, hh),
		}
		if s.cfg.MinSeparation <= 0 || attempt >= s.cfg.PlacementRetries {
			break
		}
		if !s.tooClose(pos) {
			break
		}
	}
	return pos
}

func (s *Simulation) tooClose(pos v.Vec) bool {
	minSq := s.cfg.MinSeparation * s.cfg.MinSeparation
	for _, id := range s.order {
		if pos.Sub(s.entities[id].pos).MagSq() < minSq {
			return true
		}
	}
	return false
}

func (s *Simulation) drawDurationJitter() time.Duration {
	j := float64(s.cfg.DurationJitter)
	return time.Duration(uniform(s.rng, -j, j))
}

func (s *Simulation) drawDelayJitter() time.Duration {
	j := float64(s.cfg.DelayJitter)
	switch s.cfg.DelayJitterPolicy {
	case JitterOneSided:
		return time.Duration(uniform(s.rng, 0, j))
	case JitterSymmetric:
		return time.Duration(uniform(s.rng, -j, j))
	default:
		// Reference behavior: the draw over [jitter, jitter] is constant.
		return s.cfg.DelayJitter
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// RemoveBubble removes the bubble's collider from the engine and drops the
// handle from the live set, transitioning it to PendingRemoval with its end
// time set to now. This is the pop/timeout removal; the entity record stays
// tracked until the respawn delay elapses. Unknown handles and handles that
// already left the Active set return ErrHandleNotFound.
func (s *Simulation) RemoveBubble(h Handle) error {
	b, ok := s.entities[h]
	if !ok || b.state != StateActive {
		return fmt.Errorf("%w: %d", ErrHandleNotFound, h)
	}
	s.space.RemoveShape(b.shape)
	b.state = StatePendingRemoval
	b.endTime = s.clk.Now()
	return nil
}

// CheckHit tests a position against every Active bubble in insertion order
// and pops the first match, returning its center for the caller's pop
// effect. At most one bubble is popped per call. The second return is false
// when no Active bubble contains the position.
func (s *Simulation) CheckHit(p v.Vec) (v.Vec, bool) {
	rSq := s.cfg.Radius * s.cfg.Radius
	for _, id := range s.order {
		b := s.entities[id]
		if b.state != StateActive {
			continue
		}
		center := b.body.Position()
		if p.Sub(center).MagSq() > rSq {
			continue
		}
		b.pos = center
		// Cannot fail: the bubble was just observed Active.
		_ = s.RemoveBubble(id)
		return center, true
	}
	return v.Vec{}, false
}

// Step advances the physics by the configured burst of sub-steps, then
// sweeps the population: Active bubbles past their visible duration lose
// their collider and enter PendingRemoval; PendingRemoval bubbles past
// their respawn delay are dropped and replaced by a fresh bubble. It
// returns a snapshot of every entity still tracked afterwards, in
// insertion order, for drawing.
func (s *Simulation) Step() []Snapshot {
	for i := 0; i < s.cfg.SubSteps; i++ {
		s.space.Step(s.cfg.SubStepDT)
	}

	now := s.clk.Now()

	// Two-phase sweep: mutate the entity list only after the scan so no
	// entry is skipped or visited twice.
	var expired []Handle
	for _, id := range s.order {
		b := s.entities[id]
		b.pos = b.body.Position()

		switch b.state {
		case StateActive:
			if now.Sub(b.spawnTime) > b.duration {
				s.space.RemoveShape(b.shape)
				b.state = StatePendingRemoval
				b.endTime = now
			}
		case StatePendingRemoval:
			if now.Sub(b.endTime) > b.delay {
				expired = append(expired, id)
			}
		}
	}

	for _, id := range expired {
		s.dropEntity(id)
		s.AddBubble()
	}

	snaps := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		b := s.entities[id]
		snaps = append(snaps, Snapshot{
			ID:       b.id,
			Position: b.pos,
			Radius:   s.cfg.Radius,
			State:    b.state,
		})
	}
	return snaps
}

// dropEntity removes the entity record and its rigid body from the engine.
// The collider was already removed when the bubble left the Active state.
func (s *Simulation) dropEntity(id Handle) {
	b := s.entities[id]
	s.space.RemoveBody(b.body)
	b.state = StateRemoved
	delete(s.entities, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// TrackedCount returns the number of tracked entities (Active plus
// PendingRemoval).
func (s *Simulation) TrackedCount() int { return len(s.order) }

// ActiveCount returns the number of Active bubbles.
func (s *Simulation) ActiveCount() int {
	n := 0
	for _, id := range s.order {
		if s.entities[id].state == StateActive {
			n++
		}
	}
	return n
}

// LiveColliderCount returns the number of bubble colliders currently in
// the engine. It equals ActiveCount between steps; the walls are static
// shapes and are not counted.
func (s *Simulation) LiveColliderCount() int {
	return s.space.DynamicShapeCount()
}
