package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cartridge/dinosweep/internal/sweep"
)

// HeatmapTitle is the chart title of the distance heatmap.
const HeatmapTitle = "Average Distance Hyperparameter Grid Search"

// Marginal holds mean distance by jump threshold and jump delta, pooling every duck
// threshold.
type Marginal struct {
	JumpThresholds []float64
	JumpDeltas     []float64
	// Mean[i][j] is the mean for JumpThresholds[i] and JumpDeltas[j]; NaN where no
	// episode ran.
	Mean [][]float64
}

// Marginalize pools the distances of every duck threshold per (jump threshold, jump
// delta) pair. Axes are sorted ascending.
func Marginalize(stats sweep.AggregateStats) Marginal {
	type cell struct{ jt, jd float64 }
	sums := make(map[cell]float64)
	counts := make(map[cell]int)
	jts := make(map[float64]struct{})
	jds := make(map[float64]struct{})

	for _, k := range stats.Keys() {
		c := cell{k.JumpThreshold, k.JumpDelta}
		jts[k.JumpThreshold] = struct{}{}
		jds[k.JumpDelta] = struct{}{}
		for _, d := range stats.Distances(k) {
			sums[c] += d
			counts[c]++
		}
	}

	m := Marginal{
		JumpThresholds: sortedKeys(jts),
		JumpDeltas:     sortedKeys(jds),
	}
	m.Mean = make([][]float64, len(m.JumpThresholds))
	for i, jt := range m.JumpThresholds {
		m.Mean[i] = make([]float64, len(m.JumpDeltas))
		for j, jd := range m.JumpDeltas {
			c := cell{jt, jd}
			if counts[c] == 0 {
				m.Mean[i][j] = math.NaN()
				continue
			}
			m.Mean[i][j] = sums[c] / float64(counts[c])
		}
	}
	return m
}

// HeatMap builds the chart for stats.
func HeatMap(stats sweep.AggregateStats) *charts.HeatMap {
	m := Marginalize(stats)

	xLabels := make([]string, len(m.JumpThresholds))
	for i, jt := range m.JumpThresholds {
		xLabels[i] = fmt.Sprintf("%.2f", jt)
	}
	yLabels := make([]string, len(m.JumpDeltas))
	for j, jd := range m.JumpDeltas {
		yLabels[j] = fmt.Sprintf("%g", jd)
	}

	var maxMean float64
	items := make([]opts.HeatMapData, 0, len(xLabels)*len(yLabels))
	for i := range m.JumpThresholds {
		for j := range m.JumpDeltas {
			v := m.Mean[i][j]
			if math.IsNaN(v) {
				items = append(items, opts.HeatMapData{Value: [3]interface{}{i, j, "-"}})
				continue
			}
			if v > maxMean {
				maxMean = v
			}
			items = append(items, opts.HeatMapData{Value: [3]interface{}{i, j, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    HeatmapTitle,
			Subtitle: "mean distance, jump threshold x jump delta",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "jump threshold",
			Type: "category",
			Data: xLabels,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "jump delta",
			Type: "category",
			Data: yLabels,
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxMean),
			InRange: &opts.VisualMapInRange{
				Color: []string{"#313695", "#74add1", "#fee090", "#f46d43", "#a50026"},
			},
		}),
	)
	hm.SetXAxis(xLabels).AddSeries("mean distance", items)
	return hm
}

// RenderHeatMap writes the heatmap of stats as a standalone HTML page.
func RenderHeatMap(w io.Writer, stats sweep.AggregateStats) error {
	if stats.Len() == 0 {
		return fmt.Errorf("no episodes recorded for sweep %q", stats.SweepID)
	}
	return HeatMap(stats).Render(w)
}

func sortedKeys(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
