// Package policy provides action selection strategies for the actor
package policy

import "github.com/cartridge/dinosweep/internal/game"

// Policy maps the nearest obstacle and the current thresholds to an action.
type Policy interface {
	// Decide chooses an action given the nearest obstacle, the effective jump threshold
	// (base threshold plus any accumulated drift) and the duck threshold.
	Decide(obstacle game.Obstacle, jumpThreshold, duckThreshold float64) game.Action
}

// Func adapts an ordinary function to Policy.
type Func func(obstacle game.Obstacle, jumpThreshold, duckThreshold float64) game.Action

// Decide implements Policy.
func (f Func) Decide(obstacle game.Obstacle, jumpThreshold, duckThreshold float64) game.Action {
	return f(obstacle, jumpThreshold, duckThreshold)
}
