package game

import "fmt"

// ParameterTuple identifies one grid cell of the policy parameter search.
type ParameterTuple struct {
	JumpThreshold float64 `json:"jump_threshold"`
	DuckThreshold float64 `json:"duck_threshold"`
	JumpDelta     float64 `json:"jump_delta"`
}

func (p ParameterTuple) String() string {
	return fmt.Sprintf("jump_threshold=%.2f duck_threshold=%.2f jump_delta=%g",
		p.JumpThreshold, p.DuckThreshold, p.JumpDelta)
}
