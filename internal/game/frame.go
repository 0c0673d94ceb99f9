// Package game holds the observed state of the runner game and the inputs it accepts.
package game

import "fmt"

// ObstacleSlots is the fixed number of obstacles reported per frame, nearest first.
const ObstacleSlots = 3

// SpeedCap is the speed below which the jump threshold keeps drifting.
const SpeedCap = 12.0

// frameHeaderLen counts crashed, distance, jumping, x, y and speed.
const frameHeaderLen = 6

// FrameVectorLen is the length of a fully populated frame vector.
const FrameVectorLen = frameHeaderLen + ObstacleSlots*4

// Obstacle describes one obstacle on the horizon.
type Obstacle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SentinelObstacle fills obstacle slots that have no real obstacle behind them.
var SentinelObstacle = Obstacle{X: 650, Y: 90, Width: 0, Height: 0}

// Position is the runner's location on screen.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FrameState is a snapshot of the game at one instant.
type FrameState struct {
	Crashed   bool                    `json:"crashed"`
	Distance  float64                 `json:"distance"`
	Jumping   bool                    `json:"jumping"`
	Position  Position                `json:"position"`
	Speed     float64                 `json:"speed"`
	Obstacles [ObstacleSlots]Obstacle `json:"obstacles"`
}

// NewFrameState builds a frame from up to ObstacleSlots real obstacles, padding the
// remaining slots with SentinelObstacle. Extra obstacles beyond the slot count are dropped.
func NewFrameState(crashed bool, distance float64, jumping bool, pos Position, speed float64, obstacles ...Obstacle) FrameState {
	f := FrameState{
		Crashed:  crashed,
		Distance: distance,
		Jumping:  jumping,
		Position: pos,
		Speed:    speed,
	}
	for i := range f.Obstacles {
		if i < len(obstacles) {
			f.Obstacles[i] = obstacles[i]
		} else {
			f.Obstacles[i] = SentinelObstacle
		}
	}
	return f
}

// Nearest returns the closest obstacle slot.
func (f FrameState) Nearest() Obstacle {
	return f.Obstacles[0]
}

// Vector encodes the frame in the flat wire layout:
// crashed, distance, jumping, x, y, speed, then x, y, width, height per obstacle slot.
func (f FrameState) Vector() []float64 {
	v := make([]float64, 0, FrameVectorLen)
	v = append(v, boolToFloat(f.Crashed), f.Distance, boolToFloat(f.Jumping),
		f.Position.X, f.Position.Y, f.Speed)
	for _, o := range f.Obstacles {
		v = append(v, o.X, o.Y, o.Width, o.Height)
	}
	return v
}

// DecodeFrame parses a frame vector. Obstacle slots missing from a short vector are
// padded with SentinelObstacle; a partially filled slot is treated as missing.
func DecodeFrame(v []float64) (FrameState, error) {
	if len(v) < frameHeaderLen {
		return FrameState{}, fmt.Errorf("%w: frame vector has %d values, need at least %d",
			ErrEnvironmentUnavailable, len(v), frameHeaderLen)
	}
	var obstacles []Obstacle
	for slot := 0; slot < ObstacleSlots; slot++ {
		off := frameHeaderLen + slot*4
		if off+4 > len(v) {
			break
		}
		obstacles = append(obstacles, Obstacle{X: v[off], Y: v[off+1], Width: v[off+2], Height: v[off+3]})
	}
	return NewFrameState(v[0] != 0, v[1], v[2] != 0, Position{X: v[3], Y: v[4]}, v[5], obstacles...), nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
