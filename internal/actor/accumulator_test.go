package actor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator(t *testing.T) {
	var acc Accumulator
	assert.Equal(t, 0.0, acc.Value())

	speeds := []float64{6, 8, 12, 14, 11.99, 12.01}
	prev := acc.Value()
	for _, s := range speeds {
		acc.Step(s, 0.25)
		if s < 12 {
			assert.InDelta(t, prev+0.25, acc.Value(), 1e-12, "speed %v", s)
		} else {
			assert.Equal(t, prev, acc.Value(), "speed %v", s)
		}
		assert.GreaterOrEqual(t, acc.Value(), prev)
		prev = acc.Value()
	}
	assert.InDelta(t, 0.75, acc.Value(), 1e-12)
}
