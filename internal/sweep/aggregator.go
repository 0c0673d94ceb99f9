package sweep

import (
	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/types"
)

// AggregateStats maps each grid cell to the final distances of its episodes, in the
// order they were recorded. It is a detached copy; later recording does not change it.
type AggregateStats struct {
	SweepID string

	keys      []game.ParameterTuple
	distances map[game.ParameterTuple][]float64
}

// Keys returns the recorded cells in first-recorded order.
func (s AggregateStats) Keys() []game.ParameterTuple {
	return append([]game.ParameterTuple(nil), s.keys...)
}

// Distances returns the final distances of a cell in episode order.
func (s AggregateStats) Distances(p game.ParameterTuple) []float64 {
	return append([]float64(nil), s.distances[p]...)
}

// Len is the number of recorded cells.
func (s AggregateStats) Len() int { return len(s.keys) }

// Episodes is the number of recorded distances across all cells.
func (s AggregateStats) Episodes() int {
	n := 0
	for _, d := range s.distances {
		n += len(d)
	}
	return n
}

// Aggregator collects episode distances for one sweep. It is owned by a single
// goroutine.
type Aggregator struct {
	sweepID   string
	keys      []game.ParameterTuple
	distances map[game.ParameterTuple][]float64
}

func NewAggregator(sweepID string) *Aggregator {
	return &Aggregator{
		sweepID:   sweepID,
		distances: make(map[game.ParameterTuple][]float64),
	}
}

// Record appends a final distance to the cell's list.
func (a *Aggregator) Record(p game.ParameterTuple, distance float64) {
	if _, ok := a.distances[p]; !ok {
		a.keys = append(a.keys, p)
	}
	a.distances[p] = append(a.distances[p], distance)
}

// Snapshot returns a deep copy of everything recorded so far.
func (a *Aggregator) Snapshot() AggregateStats {
	out := AggregateStats{
		SweepID:   a.sweepID,
		keys:      append([]game.ParameterTuple(nil), a.keys...),
		distances: make(map[game.ParameterTuple][]float64, len(a.distances)),
	}
	for k, v := range a.distances {
		out.distances[k] = append([]float64(nil), v...)
	}
	return out
}

// FromRecords rebuilds stats from persisted episodes sorted by sequence.
func FromRecords(sweepID string, records []types.EpisodeRecord) AggregateStats {
	agg := NewAggregator(sweepID)
	for _, r := range records {
		agg.Record(r.Params(), r.FinalDistance)
	}
	return agg.Snapshot()
}
