package sweep

import (
	"fmt"
	"math"

	"github.com/cartridge/dinosweep/internal/game"
)

// Grid is the Cartesian search space of a sweep.
type Grid struct {
	JumpThresholds []float64 `json:"jump_thresholds" mapstructure:"jump_thresholds"`
	DuckThresholds []float64 `json:"duck_thresholds" mapstructure:"duck_thresholds"`
	JumpDeltas     []float64 `json:"jump_deltas" mapstructure:"jump_deltas"`
	Tests          int       `json:"tests" mapstructure:"tests"`
}

// DefaultGrid returns ten jump thresholds between 50 and 150 with a single duck
// threshold and jump delta, three episodes per cell.
func DefaultGrid() Grid {
	return Grid{
		JumpThresholds: Linspace(50, 150, 10, 2),
		DuckThresholds: []float64{75},
		JumpDeltas:     []float64{0.01},
		Tests:          3,
	}
}

// Validate rejects grids that cannot produce a single episode.
func (g Grid) Validate() error {
	axes := []struct {
		name   string
		values []float64
	}{
		{"jump_thresholds", g.JumpThresholds},
		{"duck_thresholds", g.DuckThresholds},
		{"jump_deltas", g.JumpDeltas},
	}
	for _, axis := range axes {
		if len(axis.values) == 0 {
			return fmt.Errorf("%w: %s is empty", game.ErrConfiguration, axis.name)
		}
		for _, v := range axis.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s contains non-finite value %v", game.ErrConfiguration, axis.name, v)
			}
		}
	}
	for _, d := range g.JumpDeltas {
		if d < 0 {
			return fmt.Errorf("%w: jump delta %v is negative", game.ErrConfiguration, d)
		}
	}
	if g.Tests < 1 {
		return fmt.Errorf("%w: tests must be at least 1, got %d", game.ErrConfiguration, g.Tests)
	}
	return nil
}

// Tuples enumerates the grid cells, jump threshold outermost and jump delta innermost.
// Repeated axis values yield repeated tuples.
func (g Grid) Tuples() []game.ParameterTuple {
	out := make([]game.ParameterTuple, 0, len(g.JumpThresholds)*len(g.DuckThresholds)*len(g.JumpDeltas))
	for _, jt := range g.JumpThresholds {
		for _, dt := range g.DuckThresholds {
			for _, jd := range g.JumpDeltas {
				out = append(out, game.ParameterTuple{JumpThreshold: jt, DuckThreshold: dt, JumpDelta: jd})
			}
		}
	}
	return out
}

// Total is the number of episodes the grid runs.
func (g Grid) Total() int {
	return len(g.JumpThresholds) * len(g.DuckThresholds) * len(g.JumpDeltas) * g.Tests
}

// Linspace returns n evenly spaced values over [start, stop], rounded to decimals places.
func Linspace(start, stop float64, n, decimals int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{round(start, decimals)}
	}
	step := (stop - start) / float64(n-1)
	out := make([]float64, n)
	for i := range out {
		out[i] = round(start+step*float64(i), decimals)
	}
	out[n-1] = round(stop, decimals)
	return out
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
