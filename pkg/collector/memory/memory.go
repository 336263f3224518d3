package memory

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// virtualMemory allows tests to stub the host memory query.
var virtualMemory = mem.VirtualMemoryWithContext

// TotalMemoryBytes returns the total system memory in bytes.
// TODO: future scenario, consider container memory limits
func TotalMemoryBytes(ctx context.Context) (uint64, error) {
	vm, err := virtualMemory(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading virtual memory: %w", err)
	}
	if vm == nil || vm.Total == 0 {
		return 0, fmt.Errorf("total memory not reported")
	}
	return vm.Total, nil
}

// UsedPercent returns the share of system memory in use, 0..100.
func UsedPercent(ctx context.Context) (float64, error) {
	vm, err := virtualMemory(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading virtual memory: %w", err)
	}
	if vm == nil {
		return 0, fmt.Errorf("virtual memory not reported")
	}
	return vm.UsedPercent, nil
}
