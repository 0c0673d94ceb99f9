package report

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/sweep"
)

func sampleStats() sweep.AggregateStats {
	agg := sweep.NewAggregator("sweep-1")
	agg.Record(game.ParameterTuple{JumpThreshold: 100, DuckThreshold: 75, JumpDelta: 0.01}, 200)
	agg.Record(game.ParameterTuple{JumpThreshold: 100, DuckThreshold: 75, JumpDelta: 0.01}, 400)
	agg.Record(game.ParameterTuple{JumpThreshold: 100, DuckThreshold: 80, JumpDelta: 0.01}, 600)
	agg.Record(game.ParameterTuple{JumpThreshold: 50, DuckThreshold: 75, JumpDelta: 0.02}, 90)
	return agg.Snapshot()
}

func TestSummarize(t *testing.T) {
	summaries := Summarize(sampleStats())
	require.Len(t, summaries, 3)

	first := summaries[0]
	assert.Equal(t, game.ParameterTuple{JumpThreshold: 100, DuckThreshold: 75, JumpDelta: 0.01}, first.Params)
	assert.Equal(t, 2, first.Count)
	assert.InDelta(t, 300, first.Mean, 1e-9)
	assert.InDelta(t, 100, first.StdDev, 1e-9)
	assert.Equal(t, 200.0, first.Min)
	assert.Equal(t, 400.0, first.Max)

	assert.Equal(t, 0.0, summaries[2].StdDev)
}

func TestBest(t *testing.T) {
	best, ok := Best(Summarize(sampleStats()))
	require.True(t, ok)
	assert.Equal(t, 80.0, best.Params.DuckThreshold)

	_, ok = Best(nil)
	assert.False(t, ok)
}

func TestMarginalizePoolsDuckThresholds(t *testing.T) {
	m := Marginalize(sampleStats())
	assert.Equal(t, []float64{50, 100}, m.JumpThresholds)
	assert.Equal(t, []float64{0.01, 0.02}, m.JumpDeltas)

	assert.True(t, math.IsNaN(m.Mean[0][0]))
	assert.InDelta(t, 90, m.Mean[0][1], 1e-9)
	assert.InDelta(t, 400, m.Mean[1][0], 1e-9)
	assert.True(t, math.IsNaN(m.Mean[1][1]))
}

func TestRenderHeatMap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHeatMap(&buf, sampleStats()))

	html := buf.String()
	assert.Contains(t, html, HeatmapTitle)
	assert.Contains(t, html, "heatmap")
	assert.Contains(t, html, "100.00")
}

func TestRenderHeatMapEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderHeatMap(&buf, sweep.NewAggregator("empty").Snapshot()))
}
