package policy

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cartridge/dinosweep/internal/game"
)

// Random ignores the observation and picks uniformly among its actions. It serves as
// a baseline for threshold sweeps.
type Random struct {
	mu      sync.Mutex
	rng     *rand.Rand
	actions []game.Action
}

// NewRandom creates a seeded random policy over actions, defaulting to Pass and Jump.
func NewRandom(seed int64, actions ...game.Action) (*Random, error) {
	if len(actions) == 0 {
		actions = []game.Action{game.ActionPass, game.ActionJump}
	}
	for _, a := range actions {
		if !a.Valid() {
			return nil, fmt.Errorf("random policy: %w: %v", game.ErrInvalidAction, a)
		}
	}
	return &Random{
		rng:     rand.New(rand.NewSource(seed)),
		actions: append([]game.Action(nil), actions...),
	}, nil
}

// Decide implements Policy
func (p *Random) Decide(game.Obstacle, float64, float64) game.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actions[p.rng.Intn(len(p.actions))]
}

// Names of the selectable policies.
const (
	NameThreshold = "threshold"
	NameRandom    = "random"
)

// ByName builds the named policy. seed only affects the random policy.
func ByName(name string, seed int64) (Policy, error) {
	switch name {
	case NameThreshold, "":
		return Threshold{}, nil
	case NameRandom:
		return NewRandom(seed)
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", game.ErrConfiguration, name)
	}
}
