package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
	"github.com/setanarut/v"

	"github.com/lixenwraith/bubblepop/sim"
	"github.com/lixenwraith/bubblepop/tracking"
)

const (
	tickMs       = 33
	popFlashMs   = 400
	trailSamples = 12
)

type popFlash struct {
	pos v.Vec
	at  time.Time
}

type Game struct {
	screen        tcell.Screen
	width, height int

	sim     *sim.Simulation
	tracker *tracking.Tracker

	// World coordinates span the terminal with a 2:1 cell aspect
	// correction: one row is two world units tall.
	worldW, worldH float64

	flashes []popFlash
	popped  int

	audioInit bool
}

type options struct {
	bubbles  int
	radius   float64
	speed    float64
	duration time.Duration
	jitter   time.Duration
	delay    time.Duration
	warmup   int
	seed     int64
	mute     bool
}

func parseFlags() options {
	var o options
	flag.IntVar(&o.bubbles, "bubbles", 5, "number of bubbles on screen")
	flag.Float64Var(&o.radius, "radius", 4, "bubble radius in columns")
	flag.Float64Var(&o.speed, "speed", 25, "bubble speed in columns per second")
	flag.DurationVar(&o.duration, "duration", 8*time.Second, "visible duration per bubble")
	flag.DurationVar(&o.jitter, "jitter", 2*time.Second, "symmetric jitter on the visible duration")
	flag.DurationVar(&o.delay, "delay", 3*time.Second, "respawn delay after a bubble ends")
	flag.IntVar(&o.warmup, "warmup", 30, "warmup steps before the first frame")
	flag.Int64Var(&o.seed, "seed", 0, "random seed (0 = time-based)")
	flag.BoolVar(&o.mute, "mute", false, "disable pop sound")
	flag.Parse()
	return o
}

func NewGame(o options) (*Game, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()

	g := &Game{
		screen:  screen,
		tracker: tracking.NewTracker(trailSamples, 256),
	}
	g.width, g.height = screen.Size()
	g.worldW = float64(g.width)
	g.worldH = float64(g.height * 2)

	radius := o.radius
	if max := math.Min(g.worldW, g.worldH)/2 - 1; radius >= max {
		radius = max
	}

	seed := o.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	g.sim, err = sim.New(sim.Config{
		Radius:         radius,
		AreaWidth:      g.worldW,
		AreaHeight:     g.worldH,
		InitialBubbles: o.bubbles,
		WarmupSteps:    o.warmup,
		Speed:          o.speed,
		DurationMean:   o.duration,
		DurationJitter: o.jitter,
		DelayMean:      o.delay,
	}, nil, rand.New(rand.NewSource(seed)))
	if err != nil {
		screen.Fini()
		return nil, err
	}

	if !o.mute {
		if err := g.initAudio(); err != nil {
			// Non-fatal, demo can run without sound
			log.Printf("Audio initialization failed: %v", err)
		}
	}

	g.sim.Start()
	return g, nil
}

func (g *Game) initAudio() error {
	sampleRate := beep.SampleRate(44100)
	err := speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	if err == nil {
		g.audioInit = true
	}
	return err
}

func (g *Game) playPopSound() {
	if !g.audioInit {
		return
	}

	sampleRate := beep.SampleRate(44100)
	duration := sampleRate.N(60 * time.Millisecond)
	sine, _ := generators.SineTone(sampleRate, 880)
	speaker.Play(beep.Take(duration, sine))
}

// screenToWorld maps a terminal cell to the center-origin world space.
func (g *Game) screenToWorld(x, y int) v.Vec {
	return v.Vec{
		X: float64(x) + 0.5 - g.worldW/2,
		Y: (float64(y)+0.5)*2 - g.worldH/2,
	}
}

// worldToScreen maps a world position to a terminal cell.
func (g *Game) worldToScreen(p v.Vec) (int, int) {
	return int(math.Floor(p.X + g.worldW/2)), int(math.Floor((p.Y + g.worldH/2) / 2))
}

func (g *Game) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case 'p':
				if g.sim.Running() {
					g.sim.Stop()
				} else {
					g.sim.Start()
				}
			}
		}

	case *tcell.EventMouse:
		x, y := ev.Position()
		p := g.screenToWorld(x, y)
		if ev.Buttons()&tcell.Button1 != 0 {
			if center, ok := g.sim.CheckHit(p); ok {
				g.flashes = append(g.flashes, popFlash{pos: center, at: time.Now()})
				g.popped++
				g.playPopSound()
			}
		}
		g.tracker.Push(tracking.Sample{Pos: p, Time: time.Now()})

	case *tcell.EventResize:
		g.width, g.height = g.screen.Size()
		// The arena keeps its construction-time size; the walls are static
		// and never rebuilt.
	}
	return true
}

func (g *Game) updateFlashes() {
	now := time.Now()
	kept := g.flashes[:0]
	for _, f := range g.flashes {
		if now.Sub(f.at).Milliseconds() < popFlashMs {
			kept = append(kept, f)
		}
	}
	g.flashes = kept
}

func (g *Game) drawBubble(snap sim.Snapshot) {
	style := tcell.StyleDefault.Foreground(tcell.ColorAqua)
	r := snap.Radius
	for dy := -r; dy <= r; dy += 2 {
		span := math.Sqrt(r*r - dy*dy)
		for dx := -span; dx <= span; dx++ {
			x, y := g.worldToScreen(snap.Position.Add(v.Vec{X: dx, Y: dy}))
			if x >= 0 && x < g.width && y >= 0 && y < g.height {
				g.screen.SetContent(x, y, 'o', nil, style)
			}
		}
	}
	cx, cy := g.worldToScreen(snap.Position)
	if cx >= 0 && cx < g.width && cy >= 0 && cy < g.height {
		g.screen.SetContent(cx, cy, 'O', nil, style.Bold(true))
	}
}

func (g *Game) draw(snaps []sim.Snapshot) {
	g.screen.Clear()

	for _, snap := range snaps {
		if snap.State != sim.StateActive {
			continue
		}
		g.drawBubble(snap)
	}

	// Pointer trail, oldest dimmest
	trail := g.tracker.Snapshot(trailSamples)
	for i, s := range trail {
		x, y := g.worldToScreen(s.Pos)
		if x < 0 || x >= g.width || y < 0 || y >= g.height {
			continue
		}
		shade := int32(80 + 140*i/trailSamples)
		color := tcell.NewRGBColor(shade, shade, shade)
		g.screen.SetContent(x, y, '·', nil, tcell.StyleDefault.Foreground(color))
	}

	now := time.Now()
	for _, f := range g.flashes {
		x, y := g.worldToScreen(f.pos)
		if x < 0 || x >= g.width || y < 0 || y >= g.height {
			continue
		}
		ch := '*'
		if now.Sub(f.at).Milliseconds() > popFlashMs/2 {
			ch = '+'
		}
		g.screen.SetContent(x, y, ch, nil, tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true))
	}

	status := fmt.Sprintf(" popped: %d | click bubbles | p: pause | q: quit ", g.popped)
	if !g.sim.Running() {
		status = " paused - p to resume "
	}
	statusStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for i, ch := range status {
		if i < g.width {
			g.screen.SetContent(i, 0, ch, nil, statusStyle)
		}
	}

	g.screen.Show()
}

func (g *Game) run() {
	ticker := time.NewTicker(tickMs * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- g.screen.PollEvent()
		}
	}()

	var snaps []sim.Snapshot
	for {
		select {
		case ev := <-eventChan:
			if !g.handleInput(ev) {
				return
			}

		case <-ticker.C:
			g.tracker.Drain()
			if g.sim.Running() {
				snaps = g.sim.Step()
			}
			g.updateFlashes()
			g.draw(snaps)
		}
	}
}

func (g *Game) cleanup() {
	if g.audioInit {
		speaker.Close()
	}
	g.screen.Fini()
}

func main() {
	o := parseFlags()

	game, err := NewGame(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer game.cleanup()

	game.run()
}
