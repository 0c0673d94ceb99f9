package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameStatePadsWithSentinel(t *testing.T) {
	for n := 0; n < ObstacleSlots; n++ {
		present := make([]Obstacle, n)
		for i := range present {
			present[i] = Obstacle{X: float64(100 + i), Y: 105, Width: 17, Height: 35}
		}
		f := NewFrameState(false, 10, false, Position{X: 50, Y: 93}, 6, present...)

		require.Len(t, f.Obstacles, ObstacleSlots)
		for i := 0; i < ObstacleSlots; i++ {
			if i < n {
				assert.Equal(t, present[i], f.Obstacles[i])
			} else {
				assert.Equal(t, SentinelObstacle, f.Obstacles[i], "slot %d with %d present obstacles", i, n)
			}
		}
	}
}

func TestNewFrameStateDropsExtraObstacles(t *testing.T) {
	obs := []Obstacle{{X: 1}, {X: 2}, {X: 3}, {X: 4}}
	f := NewFrameState(false, 0, false, Position{}, 6, obs...)
	assert.Equal(t, Obstacle{X: 3}, f.Obstacles[2])
}

func TestDecodeFrame(t *testing.T) {
	v := []float64{0, 123.5, 1, 50, 80, 7.25, 200, 105, 17, 35}
	f, err := DecodeFrame(v)
	require.NoError(t, err)

	assert.False(t, f.Crashed)
	assert.True(t, f.Jumping)
	assert.Equal(t, 123.5, f.Distance)
	assert.Equal(t, Position{X: 50, Y: 80}, f.Position)
	assert.Equal(t, 7.25, f.Speed)
	assert.Equal(t, Obstacle{X: 200, Y: 105, Width: 17, Height: 35}, f.Nearest())
	assert.Equal(t, SentinelObstacle, f.Obstacles[1])
	assert.Equal(t, SentinelObstacle, f.Obstacles[2])
}

func TestDecodeFramePartialSlotIsPadded(t *testing.T) {
	v := []float64{1, 0, 0, 0, 0, 0, 300, 90}
	f, err := DecodeFrame(v)
	require.NoError(t, err)
	assert.True(t, f.Crashed)
	assert.Equal(t, SentinelObstacle, f.Obstacles[0])
}

func TestDecodeFrameTooShort(t *testing.T) {
	_, err := DecodeFrame([]float64{0, 1, 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnvironmentUnavailable))
}

func TestFrameVectorRoundTrip(t *testing.T) {
	f := NewFrameState(true, 42, false, Position{X: 50, Y: 93}, 12.5, Obstacle{X: 80, Y: 75, Width: 46, Height: 40})
	v := f.Vector()
	require.Len(t, v, FrameVectorLen)

	back, err := DecodeFrame(v)
	require.NoError(t, err)
	assert.Equal(t, f, back)
}
