package report

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/srodi/proctop/pkg/types"
)

var captured = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func scenario() types.Snapshot {
	return types.Snapshot{
		CapturedAt: captured,
		Samples: []types.ProcessSample{
			{PID: 1, CPUPercent: 50, MemoryPercent: 10},
			{PID: 2, CPUPercent: 90, MemoryPercent: 5},
			{PID: 3, CPUPercent: 90, MemoryPercent: 80},
		},
	}
}

func pids(view types.RankedView) []int32 {
	out := make([]int32, 0, len(view.Entries))
	for _, e := range view.Entries {
		out = append(out, e.PID)
	}
	return out
}

func TestRankEndToEndScenario(t *testing.T) {
	snap := scenario()

	cpuView, err := Rank(snap, types.MetricCPU, 2)
	if err != nil {
		t.Fatalf("rank cpu: %v", err)
	}
	if got := pids(cpuView); !reflect.DeepEqual(got, []int32{2, 3}) {
		t.Fatalf("expected cpu order [2 3], got %v", got)
	}
	if cpuView.Metric != types.MetricCPU || !cpuView.CapturedAt.Equal(captured) {
		t.Fatalf("view metadata not carried: %+v", cpuView)
	}
	if cpuView.Total != 3 {
		t.Fatalf("expected total 3, got %d", cpuView.Total)
	}

	memView, err := Rank(snap, types.MetricMemory, 2)
	if err != nil {
		t.Fatalf("rank memory: %v", err)
	}
	if got := pids(memView); !reflect.DeepEqual(got, []int32{3, 1}) {
		t.Fatalf("expected memory order [3 1], got %v", got)
	}
	if memView.Entries[0].MemoryPercent != 80 || memView.Entries[1].MemoryPercent != 10 {
		t.Fatalf("unexpected memory values: %+v", memView.Entries)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	snap := types.Snapshot{CapturedAt: captured}
	for pid := int32(40); pid > 0; pid-- {
		snap.Samples = append(snap.Samples, types.ProcessSample{PID: pid, CPUPercent: float64(pid % 4)})
	}
	first, err := Rank(snap, types.MetricCPU, 15)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Rank(snap, types.MetricCPU, 15)
		if err != nil {
			t.Fatalf("rank: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("rank not deterministic:\n%v\n%v", pids(first), pids(again))
		}
	}
}

func TestRankTieBreakByPID(t *testing.T) {
	snap := types.Snapshot{Samples: []types.ProcessSample{
		{PID: 30, MemoryPercent: 5},
		{PID: 10, MemoryPercent: 5},
		{PID: 20, MemoryPercent: 5},
		{PID: 5, MemoryPercent: 1},
	}}
	view, err := Rank(snap, types.MetricMemory, 10)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got := pids(view); !reflect.DeepEqual(got, []int32{10, 20, 30, 5}) {
		t.Fatalf("expected ties ordered by pid, got %v", got)
	}
}

func TestRankTruncation(t *testing.T) {
	cases := []struct {
		name string
		size int
		n    int
		want int
	}{
		{"fewerThanN", 3, 10, 3},
		{"exactlyN", 10, 10, 10},
		{"moreThanN", 25, 10, 10},
		{"empty", 0, 10, 0},
		{"single", 5, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := types.Snapshot{}
			for i := 0; i < tc.size; i++ {
				snap.Samples = append(snap.Samples, types.ProcessSample{PID: int32(i + 1), CPUPercent: float64((i * 37) % 11)})
			}
			for _, metric := range []types.Metric{types.MetricCPU, types.MetricMemory} {
				view, err := Rank(snap, metric, tc.n)
				if err != nil {
					t.Fatalf("rank: %v", err)
				}
				if len(view.Entries) != tc.want {
					t.Fatalf("expected %d entries, got %d", tc.want, len(view.Entries))
				}
				if !isNonIncreasing(metric, view.Entries) {
					t.Fatalf("entries not sorted descending: %+v", view.Entries)
				}
			}
		})
	}
}

func isNonIncreasing(metric types.Metric, entries []types.ProcessSample) bool {
	for i := 1; i < len(entries); i++ {
		if metric.Value(entries[i]) > metric.Value(entries[i-1]) {
			return false
		}
	}
	return true
}

func TestRankEmptySnapshot(t *testing.T) {
	view, err := Rank(types.Snapshot{CapturedAt: captured}, types.MetricCPU, 10)
	if err != nil {
		t.Fatalf("empty snapshot should not fail: %v", err)
	}
	if view.Entries == nil || len(view.Entries) != 0 {
		t.Fatalf("expected empty, non-nil entries, got %#v", view.Entries)
	}
}

func TestRankDoesNotMutateSnapshot(t *testing.T) {
	snap := scenario()
	before := append([]types.ProcessSample(nil), snap.Samples...)
	view, err := Rank(snap, types.MetricCPU, 3)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if !reflect.DeepEqual(before, snap.Samples) {
		t.Fatalf("snapshot mutated: %+v", snap.Samples)
	}
	view.Entries[0].PID = 999
	if snap.Samples[1].PID != 2 {
		t.Fatalf("view aliases snapshot storage")
	}
}

func TestRankRejectsInvalidArguments(t *testing.T) {
	if _, err := Rank(scenario(), types.MetricCPU, 0); err == nil {
		t.Fatalf("expected error for n=0")
	}
	if _, err := Rank(scenario(), types.MetricCPU, -3); err == nil {
		t.Fatalf("expected error for negative n")
	}
	if _, err := Rank(scenario(), types.Metric(7), 2); err == nil {
		t.Fatalf("expected error for unknown metric")
	}
}

func TestRankSinksNaN(t *testing.T) {
	snap := types.Snapshot{Samples: []types.ProcessSample{
		{PID: 1, CPUPercent: math.NaN()},
		{PID: 2, CPUPercent: 1},
		{PID: 3, CPUPercent: 0},
	}}
	view, err := Rank(snap, types.MetricCPU, 3)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if got := pids(view); !reflect.DeepEqual(got, []int32{2, 3, 1}) {
		t.Fatalf("expected NaN last, got %v", got)
	}
}

func TestRankCarriesSystemUsage(t *testing.T) {
	snap := scenario()
	snap.System = &types.SystemUsage{CPUPercent: 12, MemoryPercent: 34}
	view, err := Rank(snap, types.MetricMemory, 1)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if view.System == nil || view.System.MemoryPercent != 34 {
		t.Fatalf("system usage not carried: %+v", view.System)
	}
}
