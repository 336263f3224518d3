package report

import (
	"fmt"

	"github.com/srodi/proctop/pkg/types"
)

const (
	diagCPUBound    = "CPU-bound"
	diagMemoryHeavy = "Memory-heavy"
	diagBoth        = "CPU+memory hog"
	diagOK          = "OK"
)

// Classify labels a sample by how much of the host it occupies.
func Classify(s types.ProcessSample) string {
	cpuBound := s.CPUPercent > 50 // more than half a core
	memHeavy := s.MemoryPercent > 30
	switch {
	case cpuBound && memHeavy:
		return diagBoth
	case cpuBound:
		return diagCPUBound
	case memHeavy:
		return diagMemoryHeavy
	default:
		return diagOK
	}
}

// SelectFocusCandidate picks the most interesting process across both views to
// summarize for the operator. It returns nil when both views are empty.
func SelectFocusCandidate(cpuView, memView types.RankedView) *types.ProcessSample {
	var best *types.ProcessSample
	bestScore := -1.0
	consider := func(entries []types.ProcessSample) {
		for _, s := range entries {
			score := float64(diagnosisSeverity(Classify(s)))*1000 + s.CPUPercent + s.MemoryPercent
			if best == nil || score > bestScore || (score == bestScore && s.PID < best.PID) {
				copy := s
				best = &copy
				bestScore = score
			}
		}
	}
	consider(cpuView.Entries)
	consider(memView.Entries)
	return best
}

// FocusSummary returns a short explanation string for the status line.
func FocusSummary(s types.ProcessSample) string {
	switch Classify(s) {
	case diagBoth:
		return fmt.Sprintf("%.1f%% CPU and %.1f%% of memory", s.CPUPercent, s.MemoryPercent)
	case diagCPUBound:
		return fmt.Sprintf("%.1f%% CPU, %.1f MB RSS", s.CPUPercent, rssMB(s))
	case diagMemoryHeavy:
		return fmt.Sprintf("holds %.1f%% of memory (%.1f MB RSS)", s.MemoryPercent, rssMB(s))
	default:
		return fmt.Sprintf("%.1f%% CPU, %.1f%% memory", s.CPUPercent, s.MemoryPercent)
	}
}

func rssMB(s types.ProcessSample) float64 {
	return float64(s.RSSBytes) / (1024 * 1024)
}

func diagnosisSeverity(label string) int {
	switch label {
	case diagBoth:
		return 3
	case diagMemoryHeavy:
		return 2
	case diagCPUBound:
		return 1
	default:
		return 0
	}
}
