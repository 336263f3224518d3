package report

import (
	"strings"

	"github.com/srodi/proctop/pkg/types"
)

// FilterConfig controls which processes are ranked.
type FilterConfig struct {
	HideKernel bool
	// NameFilter keeps only processes whose name contains it, case-insensitive.
	NameFilter string
}

// FilterSnapshot applies HideKernel/name filters and returns a new snapshot.
func FilterSnapshot(snap types.Snapshot, cfg FilterConfig) types.Snapshot {
	if !cfg.HideKernel && cfg.NameFilter == "" {
		return snap
	}
	needle := strings.ToLower(strings.TrimSpace(cfg.NameFilter))
	filtered := make([]types.ProcessSample, 0, len(snap.Samples))
	for _, s := range snap.Samples {
		if passesFilters(s, cfg.HideKernel, needle) {
			filtered = append(filtered, s)
		}
	}
	return types.Snapshot{
		CapturedAt: snap.CapturedAt,
		Samples:    filtered,
		System:     snap.System,
		Dropped:    snap.Dropped,
	}
}

func passesFilters(s types.ProcessSample, hideKernel bool, needle string) bool {
	if hideKernel && isKernelThread(s) {
		return false
	}
	if needle != "" && !strings.Contains(strings.ToLower(s.Name), needle) {
		return false
	}
	return true
}

func isKernelThread(s types.ProcessSample) bool {
	if s.PID == 0 {
		return true
	}
	name := strings.ToLower(s.Name)
	switch {
	case strings.HasPrefix(name, "kworker"), strings.HasPrefix(name, "ksoftirqd"), strings.HasPrefix(name, "kthreadd"),
		strings.HasPrefix(name, "migration"), strings.HasPrefix(name, "watchdog"), strings.HasPrefix(name, "rcu"),
		strings.HasPrefix(name, "irq/"):
		return true
	}
	return false
}
