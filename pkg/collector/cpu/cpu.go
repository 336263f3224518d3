package cpu

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
)

// cpuPercent allows tests to stub the host CPU query.
var cpuPercent = cpu.PercentWithContext

// Utilization returns host-wide CPU usage, 0..100, averaged since the previous call.
func Utilization(ctx context.Context) (float64, error) {
	pcts, err := cpuPercent(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("reading cpu times: %w", err)
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("no cpu utilization reported")
	}
	return pcts[0], nil
}
