package policy

import "github.com/cartridge/dinosweep/internal/game"

// Threshold is the reflex policy: jump at any obstacle that has come within the jump
// threshold and sits at or below the duck threshold line. Obstacles higher on screen than
// the duck threshold are let through.
//
// No branch selects ActionDuck. That matches the recorded behaviour of the tuned
// controller and is kept as-is.
type Threshold struct{}

// Decide implements Policy.
func (Threshold) Decide(obstacle game.Obstacle, jumpThreshold, duckThreshold float64) game.Action {
	if obstacle.X >= jumpThreshold {
		return game.ActionPass
	}
	if obstacle.Y < duckThreshold {
		return game.ActionPass
	}
	return game.ActionJump
}
