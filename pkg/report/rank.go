package report

import (
	"fmt"
	"math"
	"sort"

	"github.com/srodi/proctop/pkg/types"
)

// Rank returns the top n processes of snap ordered by metric, highest first.
// Equal values are ordered by ascending PID so the result is reproducible.
// The snapshot is left untouched.
func Rank(snap types.Snapshot, metric types.Metric, n int) (types.RankedView, error) {
	if !metric.Valid() {
		return types.RankedView{}, fmt.Errorf("unknown metric %v", metric)
	}
	if n <= 0 {
		return types.RankedView{}, fmt.Errorf("top-n must be positive, got %d", n)
	}

	entries := make([]types.ProcessSample, len(snap.Samples))
	copy(entries, snap.Samples)
	sort.Slice(entries, func(i, j int) bool {
		a, b := rankValue(metric, entries[i]), rankValue(metric, entries[j])
		if a != b {
			return a > b
		}
		return entries[i].PID < entries[j].PID
	})
	if len(entries) > n {
		entries = entries[:n:n]
	}

	return types.RankedView{
		Metric:     metric,
		CapturedAt: snap.CapturedAt,
		Entries:    entries,
		Total:      len(snap.Samples),
		System:     snap.System,
	}, nil
}

// rankValue sinks NaN readings to the bottom so the sort order stays total.
func rankValue(metric types.Metric, s types.ProcessSample) float64 {
	v := metric.Value(s)
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}
