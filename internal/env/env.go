// Package env defines the narrow interfaces through which the controller observes and
// drives a game, and an in-process simulator implementing them.
package env

import (
	"context"

	"github.com/cartridge/dinosweep/internal/game"
)

// StateSource returns the current game state on demand.
type StateSource interface {
	Poll(ctx context.Context) (game.FrameState, error)
}

// ActionSink applies a single action to the game. Submitting ActionPass is a real
// round-trip with no effect on the game.
type ActionSink interface {
	Submit(ctx context.Context, action game.Action) error
}

// Session is one live connection to a game, released with Close.
type Session interface {
	StateSource
	ActionSink
	Close() error
}
