// Package report turns aggregated sweep distances into per-cell summaries and charts.
package report

import (
	"math"

	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/sweep"
)

// CellSummary describes the distances observed for one grid cell.
type CellSummary struct {
	Params    game.ParameterTuple `json:"params"`
	Count     int                 `json:"count"`
	Mean      float64             `json:"mean"`
	StdDev    float64             `json:"stddev"`
	Min       float64             `json:"min"`
	Max       float64             `json:"max"`
	Distances []float64           `json:"distances"`
}

// Summarize computes a summary per cell in the order cells were recorded. StdDev is
// the population standard deviation.
func Summarize(stats sweep.AggregateStats) []CellSummary {
	keys := stats.Keys()
	out := make([]CellSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, summarizeCell(k, stats.Distances(k)))
	}
	return out
}

func summarizeCell(p game.ParameterTuple, distances []float64) CellSummary {
	s := CellSummary{Params: p, Count: len(distances), Distances: distances}
	if len(distances) == 0 {
		return s
	}
	s.Min, s.Max = distances[0], distances[0]
	var sum float64
	for _, d := range distances {
		sum += d
		s.Min = math.Min(s.Min, d)
		s.Max = math.Max(s.Max, d)
	}
	s.Mean = sum / float64(len(distances))
	var sq float64
	for _, d := range distances {
		sq += (d - s.Mean) * (d - s.Mean)
	}
	s.StdDev = math.Sqrt(sq / float64(len(distances)))
	return s
}

// Best returns the cell with the highest mean distance. Ties keep the earlier cell.
func Best(summaries []CellSummary) (CellSummary, bool) {
	if len(summaries) == 0 {
		return CellSummary{}, false
	}
	best := summaries[0]
	for _, s := range summaries[1:] {
		if s.Mean > best.Mean {
			best = s
		}
	}
	return best, true
}
