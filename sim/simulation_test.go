package sim

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/setanarut/v"

	"github.com/lixenwraith/bubblepop/clock"
)

func testConfig() Config {
	return Config{
		Radius:         10,
		AreaWidth:      1000,
		AreaHeight:     800,
		InitialBubbles: 1,
		DurationMean:   time.Hour,
		DelayMean:      time.Hour,
	}
}

func newTestSim(t *testing.T, cfg Config, clk clock.Clock) *Simulation {
	t.Helper()
	s, err := New(cfg, clk, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestSpawnWithinBounds(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 50
	s := newTestSim(t, cfg, nil)

	for id, b := range s.entities {
		if math.Abs(b.pos.X) > cfg.AreaWidth/2 || math.Abs(b.pos.Y) > cfg.AreaHeight/2 {
			t.Errorf("bubble %d spawned at %v, outside %vx%v arena",
				id, b.pos, cfg.AreaWidth, cfg.AreaHeight)
		}
	}
}

func TestSpawnVelocityMagnitude(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 20
	s := newTestSim(t, cfg, nil)

	for id, b := range s.entities {
		mag := b.body.Velocity().Mag()
		if math.Abs(mag-DefaultSpeed) > 1e-9 {
			t.Errorf("bubble %d launched at speed %v, want %v", id, mag, DefaultSpeed)
		}
	}
}

func TestColliderCountMatchesActiveSet(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 5
	s := newTestSim(t, cfg, nil)

	if got, want := s.LiveColliderCount(), 5; got != want {
		t.Fatalf("Expected %d live colliders after spawn, got %d", want, got)
	}

	h := s.order[0]
	if err := s.RemoveBubble(h); err != nil {
		t.Fatalf("RemoveBubble failed: %v", err)
	}

	if got, want := s.ActiveCount(), 4; got != want {
		t.Errorf("Expected %d active bubbles after pop, got %d", want, got)
	}
	if got := s.LiveColliderCount(); got != s.ActiveCount() {
		t.Errorf("Live collider count %d diverged from active count %d", got, s.ActiveCount())
	}
	if got, want := s.TrackedCount(), 5; got != want {
		t.Errorf("Expected %d tracked entities (popped bubble still pending), got %d", want, got)
	}
}

func TestRemoveBubbleTwice(t *testing.T) {
	s := newTestSim(t, testConfig(), nil)

	h := s.order[0]
	if err := s.RemoveBubble(h); err != nil {
		t.Fatalf("first RemoveBubble failed: %v", err)
	}
	if err := s.RemoveBubble(h); !errors.Is(err, ErrHandleNotFound) {
		t.Errorf("Expected ErrHandleNotFound on second removal, got %v", err)
	}
}

func TestRemoveUnknownHandle(t *testing.T) {
	s := newTestSim(t, testConfig(), nil)

	if err := s.RemoveBubble(Handle(9999)); !errors.Is(err, ErrHandleNotFound) {
		t.Errorf("Expected ErrHandleNotFound for unknown handle, got %v", err)
	}
}

func TestHandlesNeverReused(t *testing.T) {
	s := newTestSim(t, testConfig(), nil)

	old := s.order[0]
	if err := s.RemoveBubble(old); err != nil {
		t.Fatalf("RemoveBubble failed: %v", err)
	}

	fresh := s.AddBubble()
	if fresh == old {
		t.Errorf("Expected a fresh handle, got reused handle %d", fresh)
	}
	if _, ok := s.entities[fresh]; !ok {
		t.Errorf("Fresh handle %d not in tracked set", fresh)
	}
	if s.entities[old].state != StatePendingRemoval {
		t.Errorf("Expected old handle to stay pending, got %v", s.entities[old].state)
	}
}

func TestTimeoutTransitionsToPendingRemoval(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := clock.NewMock(start)

	cfg := testConfig()
	cfg.DurationMean = 0
	s := newTestSim(t, cfg, mock)

	mock.Advance(time.Millisecond)
	snaps := s.Step()

	if len(snaps) != 1 {
		t.Fatalf("Expected 1 tracked entity, got %d", len(snaps))
	}
	if snaps[0].State != StatePendingRemoval {
		t.Errorf("Expected bubble to time out into pending-removal, got %v", snaps[0].State)
	}
	if got := s.LiveColliderCount(); got != 0 {
		t.Errorf("Expected collider removed at timeout, still have %d", got)
	}
}

func TestRespawnReplacesExpiredEntity(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := clock.NewMock(start)

	cfg := testConfig()
	cfg.DurationMean = 0
	cfg.DelayMean = 0
	s := newTestSim(t, cfg, mock)

	old := s.order[0]

	mock.Advance(time.Millisecond)
	s.Step() // Active -> PendingRemoval

	mock.Advance(time.Millisecond)
	snaps := s.Step() // record dropped, replacement spawned

	if got, want := s.TrackedCount(), 1; got != want {
		t.Fatalf("Expected tracked count to stay %d across respawn, got %d", want, got)
	}
	if len(snaps) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].ID == old {
		t.Errorf("Expected replacement to get a fresh handle, got %d again", old)
	}
	if snaps[0].State != StateActive {
		t.Errorf("Expected replacement to be active, got %v", snaps[0].State)
	}
	if _, ok := s.entities[old]; ok {
		t.Errorf("Expected expired entity %d to be dropped", old)
	}
	if got := s.LiveColliderCount(); got != 1 {
		t.Errorf("Expected exactly one live collider after respawn, got %d", got)
	}
}

func TestRespawnRestoresColliderInvariant(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock := clock.NewMock(start)

	cfg := testConfig()
	cfg.InitialBubbles = 3
	cfg.DurationMean = 0
	cfg.DelayMean = 0
	s := newTestSim(t, cfg, mock)

	mock.Advance(time.Millisecond)
	s.Step() // whole population times out

	if got := s.LiveColliderCount(); got != 0 {
		t.Fatalf("Expected 0 live colliders after timeout, got %d", got)
	}
	if got, want := s.TrackedCount(), 3; got != want {
		t.Errorf("Expected %d tracked entities while pending, got %d", want, got)
	}

	mock.Advance(time.Millisecond)
	s.Step() // every expired record replaced

	if got, want := s.TrackedCount(), 3; got != want {
		t.Errorf("Expected tracked count restored to %d after respawn, got %d", want, got)
	}
	if got, want := s.ActiveCount(), 3; got != want {
		t.Errorf("Expected %d active bubbles after respawn, got %d", want, got)
	}
	if got := s.LiveColliderCount(); got != s.ActiveCount() {
		t.Errorf("Live collider count %d diverged from active count %d", got, s.ActiveCount())
	}
}

func TestCheckHit(t *testing.T) {
	s := newTestSim(t, testConfig(), nil)

	b := s.entities[s.order[0]]
	center := b.body.Position()

	miss := center.Add(v.Vec{X: s.cfg.Radius * 3})
	if _, ok := s.CheckHit(miss); ok {
		t.Errorf("Expected miss at %v for bubble at %v", miss, center)
	}
	if b.state != StateActive {
		t.Errorf("Miss must leave the bubble active, got %v", b.state)
	}

	got, ok := s.CheckHit(center)
	if !ok {
		t.Fatalf("Expected hit at bubble center %v", center)
	}
	if math.Abs(got.X-center.X) > 1e-9 || math.Abs(got.Y-center.Y) > 1e-9 {
		t.Errorf("Expected hit to return center %v, got %v", center, got)
	}
	if b.state != StatePendingRemoval {
		t.Errorf("Expected popped bubble to be pending-removal, got %v", b.state)
	}

	if _, ok := s.CheckHit(center); ok {
		t.Errorf("Popped bubble must not be hit again")
	}
}

func TestCheckHitPopsFirstInInsertionOrder(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 0
	s := newTestSim(t, cfg, nil)

	// Stack two bubbles on the same spot; the older one must win the tie.
	first := s.AddBubble()
	second := s.AddBubble()
	target := v.Vec{X: 1, Y: 2}
	s.entities[first].body.SetPosition(target)
	s.entities[second].body.SetPosition(target)

	if _, ok := s.CheckHit(target); !ok {
		t.Fatalf("Expected hit on stacked bubbles")
	}
	if s.entities[first].state != StatePendingRemoval {
		t.Errorf("Expected first-inserted bubble to be popped")
	}
	if s.entities[second].state != StateActive {
		t.Errorf("Expected second bubble to survive, got %v", s.entities[second].state)
	}
}

func TestContainmentAcrossSteps(t *testing.T) {
	cfg := testConfig()
	cfg.Radius = 15
	cfg.AreaWidth = 300
	cfg.AreaHeight = 300
	cfg.InitialBubbles = 6
	s := newTestSim(t, cfg, nil)

	for step := 0; step < 200; step++ {
		for _, snap := range s.Step() {
			if math.Abs(snap.Position.X) > cfg.AreaWidth/2 || math.Abs(snap.Position.Y) > cfg.AreaHeight/2 {
				t.Fatalf("step %d: bubble %d escaped the arena at %v",
					step, snap.ID, snap.Position)
			}
		}
	}
}

func TestWarmupKeepsPopulation(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 3
	cfg.WarmupSteps = 10
	s := newTestSim(t, cfg, nil)

	if got, want := s.TrackedCount(), 3; got != want {
		t.Errorf("Expected %d tracked entities after warmup, got %d", want, got)
	}
	if got, want := s.ActiveCount(), 3; got != want {
		t.Errorf("Expected %d active entities after warmup, got %d", want, got)
	}
}

func TestDelayJitterPolicies(t *testing.T) {
	base := testConfig()
	base.InitialBubbles = 20
	base.DelayMean = 3 * time.Second
	base.DelayJitter = 2 * time.Second

	tests := []struct {
		name   string
		policy JitterPolicy
		lo, hi time.Duration
	}{
		{"constant", JitterConstant, 5 * time.Second, 5 * time.Second},
		{"one-sided", JitterOneSided, 3 * time.Second, 5 * time.Second},
		{"symmetric", JitterSymmetric, 1 * time.Second, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.DelayJitterPolicy = tt.policy
			s := newTestSim(t, cfg, nil)

			for id, b := range s.entities {
				if b.delay < tt.lo || b.delay > tt.hi {
					t.Errorf("bubble %d drew delay %v, want within [%v, %v]",
						id, b.delay, tt.lo, tt.hi)
				}
			}
		})
	}
}

func TestDurationJitterSymmetric(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 20
	cfg.DurationMean = 8 * time.Second
	cfg.DurationJitter = 2 * time.Second
	s := newTestSim(t, cfg, nil)

	lo, hi := 6*time.Second, 10*time.Second
	for id, b := range s.entities {
		if b.duration < lo || b.duration > hi {
			t.Errorf("bubble %d drew duration %v, want within [%v, %v]", id, b.duration, lo, hi)
		}
	}
}

func TestMinSeparationPlacement(t *testing.T) {
	cfg := testConfig()
	cfg.AreaWidth = 10000
	cfg.AreaHeight = 10000
	cfg.InitialBubbles = 3
	cfg.MinSeparation = 100
	s := newTestSim(t, cfg, nil)

	ids := s.order
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			d := s.entities[ids[i]].pos.Sub(s.entities[ids[j]].pos).Mag()
			if d < cfg.MinSeparation {
				t.Errorf("bubbles %d and %d placed %v apart, want >= %v",
					ids[i], ids[j], d, cfg.MinSeparation)
			}
		}
	}
}

func TestMinSeparationFallsBackAfterRetries(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 4
	// Larger than the arena diagonal: every constrained draw is rejected,
	// so placement must fall back instead of looping forever.
	cfg.MinSeparation = 5000
	cfg.PlacementRetries = 8
	s := newTestSim(t, cfg, nil)

	if got, want := s.TrackedCount(), 4; got != want {
		t.Errorf("Expected %d bubbles placed via fallback, got %d", want, got)
	}
}

func TestRunningFlag(t *testing.T) {
	s := newTestSim(t, testConfig(), nil)

	if s.Running() {
		t.Errorf("Expected new simulation to be stopped")
	}
	s.Start()
	if !s.Running() {
		t.Errorf("Expected simulation to be running after Start")
	}
	s.Stop()
	if s.Running() {
		t.Errorf("Expected simulation to be stopped after Stop")
	}
}

func TestSnapshotsInInsertionOrder(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBubbles = 4
	s := newTestSim(t, cfg, nil)

	snaps := s.Step()
	if len(snaps) != 4 {
		t.Fatalf("Expected 4 snapshots, got %d", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].ID <= snaps[i-1].ID {
			t.Errorf("Snapshots out of insertion order: %d before %d",
				snaps[i-1].ID, snaps[i].ID)
		}
	}
}
