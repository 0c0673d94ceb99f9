package env

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/cartridge/dinosweep/internal/game"
)

// Obstacle shapes the simulator spawns. Shapes with Y below HighObstacleY fly above a
// grounded runner and only hit it mid-jump.
var simObstacleShapes = []game.Obstacle{
	{Y: 105, Width: 17, Height: 35},
	{Y: 90, Width: 25, Height: 50},
	{Y: 100, Width: 46, Height: 40},
	{Y: 50, Width: 46, Height: 40},
}

// HighObstacleY separates flying obstacles from ground obstacles.
const HighObstacleY = 75.0

// SimConfig tunes the simulator.
type SimConfig struct {
	Seed         int64
	InitialSpeed float64
	Acceleration float64
	MaxSpeed     float64
	RunnerX      float64
	RunnerWidth  float64
	GroundY      float64
	JumpTicks    int
	JumpHeight   float64
	HorizonX     float64
	MinGap       float64
	MaxGap       float64
	// RestartLag is the number of polls after a restart jump that still report the
	// previous crash.
	RestartLag int
	// TickLimit ends a run with a crash after this many ticks; 0 means unlimited.
	TickLimit int
}

// DefaultSimConfig mirrors the proportions of the browser game.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Seed:         1,
		InitialSpeed: 6,
		Acceleration: 0.001,
		MaxSpeed:     13,
		RunnerX:      50,
		RunnerWidth:  44,
		GroundY:      93,
		JumpTicks:    24,
		JumpHeight:   70,
		HorizonX:     600,
		MinGap:       220,
		MaxGap:       480,
		RestartLag:   1,
		TickLimit:    20000,
	}
}

// Sim is a deterministic, in-process runner game. Each Poll advances the game by one
// tick while a run is in progress.
type Sim struct {
	mu  sync.Mutex
	cfg SimConfig
	rng *rand.Rand

	crashed    bool
	restarting bool
	lag        int
	closed     bool

	ticks     int
	distance  float64
	speed     float64
	jumpLeft  int
	y         float64
	obstacles []game.Obstacle
	nextGap   float64
}

// NewSim creates a simulator idling on its game-over screen; a Jump starts the first run.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		crashed: true,
		y:       cfg.GroundY,
	}
}

// Poll implements StateSource.
func (s *Sim) Poll(ctx context.Context) (game.FrameState, error) {
	if err := ctx.Err(); err != nil {
		return game.FrameState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return game.FrameState{}, fmt.Errorf("%w: simulator closed", game.ErrEnvironmentUnavailable)
	}

	switch {
	case s.crashed && s.restarting:
		if s.lag > 0 {
			s.lag--
		} else {
			s.reset()
		}
	case !s.crashed:
		s.tick()
	}
	return s.frame(), nil
}

// Submit implements ActionSink.
func (s *Sim) Submit(ctx context.Context, action game.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: simulator closed", game.ErrEnvironmentUnavailable)
	}

	switch action {
	case game.ActionPass, game.ActionDuck:
		return nil
	case game.ActionJump:
		if s.crashed {
			if !s.restarting {
				s.restarting = true
				s.lag = s.cfg.RestartLag
			}
			return nil
		}
		if s.jumpLeft == 0 {
			s.jumpLeft = s.cfg.JumpTicks
		}
		return nil
	default:
		return fmt.Errorf("%w: %v", game.ErrInvalidAction, action)
	}
}

// Close implements Session.
func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Sim) reset() {
	s.crashed = false
	s.restarting = false
	s.ticks = 0
	s.distance = 0
	s.speed = s.cfg.InitialSpeed
	s.jumpLeft = 0
	s.y = s.cfg.GroundY
	s.obstacles = s.obstacles[:0]
	s.nextGap = s.gap()
}

func (s *Sim) tick() {
	s.ticks++
	s.distance += s.speed * 0.025
	if s.speed < s.cfg.MaxSpeed {
		s.speed += s.cfg.Acceleration
	}

	s.y = s.cfg.GroundY
	if s.jumpLeft > 0 {
		s.jumpLeft--
		// Parabolic arc peaking halfway through the jump.
		elapsed := float64(s.cfg.JumpTicks - s.jumpLeft)
		half := float64(s.cfg.JumpTicks) / 2
		s.y = s.cfg.GroundY - s.cfg.JumpHeight*(1-((elapsed-half)/half)*((elapsed-half)/half))
	}

	kept := s.obstacles[:0]
	for _, o := range s.obstacles {
		o.X -= s.speed
		if o.X+o.Width >= 0 {
			kept = append(kept, o)
		}
	}
	s.obstacles = kept
	if len(s.obstacles) == 0 || s.obstacles[len(s.obstacles)-1].X < s.cfg.HorizonX-s.nextGap {
		shape := simObstacleShapes[s.rng.Intn(len(simObstacleShapes))]
		shape.X = s.cfg.HorizonX
		s.obstacles = append(s.obstacles, shape)
		s.nextGap = s.gap()
	}

	if s.collides() || (s.cfg.TickLimit > 0 && s.ticks >= s.cfg.TickLimit) {
		s.crashed = true
		s.jumpLeft = 0
	}
}

func (s *Sim) collides() bool {
	airborne := s.jumpLeft > 0
	for _, o := range s.obstacles {
		if o.X > s.cfg.RunnerX+s.cfg.RunnerWidth || o.X+o.Width < s.cfg.RunnerX {
			continue
		}
		if o.Y < HighObstacleY {
			if airborne {
				return true
			}
			continue
		}
		if !airborne {
			return true
		}
	}
	return false
}

func (s *Sim) gap() float64 {
	return s.cfg.MinGap + s.rng.Float64()*(s.cfg.MaxGap-s.cfg.MinGap)
}

func (s *Sim) frame() game.FrameState {
	return game.NewFrameState(
		s.crashed,
		s.distance,
		s.jumpLeft > 0,
		game.Position{X: s.cfg.RunnerX, Y: s.y},
		s.speed,
		s.obstacles...,
	)
}
