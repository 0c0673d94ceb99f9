package actor

import "github.com/cartridge/dinosweep/internal/game"

// Accumulator tracks how far the jump threshold has drifted during one episode. The
// drift grows by the jump delta on every decision step taken below game.SpeedCap, so
// the runner starts jumping earlier while the game is still slow. The zero value is a
// fresh accumulator.
type Accumulator struct {
	value float64
}

// Step applies one decision step at the given speed.
func (a *Accumulator) Step(speed, delta float64) {
	if speed < game.SpeedCap {
		a.value += delta
	}
}

// Value returns the accumulated drift.
func (a *Accumulator) Value() float64 {
	return a.value
}
