// Package jsonl writes every tick as one JSON object per line.
package jsonl

import (
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/srodi/proctop/pkg/types"
)

// Record is the line written for one tick.
type Record struct {
	CapturedAt time.Time      `json:"captured_at"`
	Total      int            `json:"total"`
	System     *SystemRecord  `json:"system,omitempty"`
	TopCPU     []ProcessEntry `json:"top_cpu"`
	TopMemory  []ProcessEntry `json:"top_memory"`
}

type SystemRecord struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

type ProcessEntry struct {
	Rank          int     `json:"rank"`
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
}

// Writer is a sink encoding ticks to an io.Writer.
type Writer struct {
	mu  sync.Mutex
	enc *json.Encoder
	log *zap.Logger
}

func NewWriter(out io.Writer, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		enc: json.NewEncoder(out),
		log: log.With(zap.String("component", "jsonl.Writer")),
	}
}

func (w *Writer) OnTick(cpuView, memView types.RankedView) {
	rec := NewRecord(cpuView, memView)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		w.log.Warn("encoding tick", zap.Error(err))
	}
}

// NewRecord flattens both views of a tick.
func NewRecord(cpuView, memView types.RankedView) Record {
	rec := Record{
		CapturedAt: cpuView.CapturedAt,
		Total:      cpuView.Total,
		TopCPU:     entries(cpuView.Entries),
		TopMemory:  entries(memView.Entries),
	}
	if sys := cpuView.System; sys != nil {
		rec.System = &SystemRecord{CPUPercent: sys.CPUPercent, MemoryPercent: sys.MemoryPercent}
	}
	return rec
}

func entries(samples []types.ProcessSample) []ProcessEntry {
	out := make([]ProcessEntry, 0, len(samples))
	for i, s := range samples {
		out = append(out, ProcessEntry{
			Rank:          i + 1,
			PID:           s.PID,
			Name:          s.Name,
			CPUPercent:    s.CPUPercent,
			MemoryPercent: s.MemoryPercent,
			RSSBytes:      s.RSSBytes,
		})
	}
	return out
}
