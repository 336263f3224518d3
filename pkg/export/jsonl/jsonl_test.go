package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/srodi/proctop/pkg/types"
)

func views() (types.RankedView, types.RankedView) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := types.ProcessSample{PID: 4, Name: "nginx", CPUPercent: 12.5, MemoryPercent: 3, RSSBytes: 2048}
	b := types.ProcessSample{PID: 9, Name: "postgres", CPUPercent: 1, MemoryPercent: 20, RSSBytes: 4096}
	sys := &types.SystemUsage{CPUPercent: 30, MemoryPercent: 55}
	return types.RankedView{Metric: types.MetricCPU, CapturedAt: at, Entries: []types.ProcessSample{a, b}, Total: 7, System: sys},
		types.RankedView{Metric: types.MetricMemory, CapturedAt: at, Entries: []types.ProcessSample{b, a}, Total: 7, System: sys}
}

func TestWriterEmitsOneLinePerTick(t *testing.T) {
	cpuView, memView := views()
	var buf bytes.Buffer
	w := NewWriter(&buf, zaptest.NewLogger(t))
	w.OnTick(cpuView, memView)
	w.OnTick(cpuView, memView)

	sc := bufio.NewScanner(&buf)
	var lines []Record
	for sc.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.NoError(t, sc.Err())
	require.Len(t, lines, 2)

	rec := lines[0]
	assert.True(t, rec.CapturedAt.Equal(cpuView.CapturedAt))
	assert.Equal(t, 7, rec.Total)
	require.NotNil(t, rec.System)
	assert.Equal(t, 55.0, rec.System.MemoryPercent)
	require.Len(t, rec.TopCPU, 2)
	assert.Equal(t, ProcessEntry{Rank: 1, PID: 4, Name: "nginx", CPUPercent: 12.5, MemoryPercent: 3, RSSBytes: 2048}, rec.TopCPU[0])
	require.Len(t, rec.TopMemory, 2)
	assert.Equal(t, int32(9), rec.TopMemory[0].PID)
	assert.Equal(t, 2, rec.TopMemory[1].Rank)
}

func TestRecordFieldNames(t *testing.T) {
	cpuView, memView := views()
	cpuView.System = nil
	raw, err := json.Marshal(NewRecord(cpuView, memView))
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	for _, key := range []string{"captured_at", "total", "top_cpu", "top_memory"} {
		assert.Contains(t, generic, key)
	}
	assert.NotContains(t, generic, "system")
}

func TestEmptyViewsEncodeAsEmptyArrays(t *testing.T) {
	raw, err := json.Marshal(NewRecord(types.RankedView{}, types.RankedView{}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"top_cpu":[]`)
	assert.Contains(t, string(raw), `"top_memory":[]`)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterSurvivesWriteErrors(t *testing.T) {
	cpuView, memView := views()
	w := NewWriter(brokenWriter{}, zaptest.NewLogger(t))
	assert.NotPanics(t, func() { w.OnTick(cpuView, memView) })
}
