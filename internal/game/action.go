package game

import (
	"fmt"
	"strings"
)

// Action is a discrete input sent to the game.
type Action int

const (
	ActionPass Action = iota
	ActionJump
	ActionDuck
)

// Actions lists every valid action.
var Actions = []Action{ActionPass, ActionJump, ActionDuck}

// Valid reports whether a is one of the defined actions.
func (a Action) Valid() bool {
	switch a {
	case ActionPass, ActionJump, ActionDuck:
		return true
	}
	return false
}

func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionJump:
		return "jump"
	case ActionDuck:
		return "duck"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction resolves the wire name of an action.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pass":
		return ActionPass, nil
	case "jump":
		return ActionJump, nil
	case "duck":
		return ActionDuck, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAction, name)
	}
}
