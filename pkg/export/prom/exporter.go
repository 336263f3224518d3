// Package prom exposes the latest rankings and the scheduler's own activity
// as Prometheus metrics.
package prom

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/srodi/proctop/pkg/types"
)

// Exporter is both a tick sink and the scheduler's metrics hook. It owns its
// registry so several exporters never collide.
type Exporter struct {
	reg *prometheus.Registry
	log *zap.Logger

	topCPU       *rankingCollector
	topMemory    *rankingCollector
	hostCPU      prometheus.Gauge
	hostMemory   prometheus.Gauge
	processes    prometheus.Gauge
	ticks        prometheus.Counter
	ticksSkipped prometheus.Counter
	dropped      prometheus.Counter
	tickDuration prometheus.Histogram
}

var rankLabels = []string{"rank", "pid", "name"}

func NewExporter(log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Exporter{
		reg: prometheus.NewRegistry(),
		log: log.With(zap.String("component", "prom.Exporter")),
		topCPU: newRankingCollector(
			"proctop_top_cpu_percent",
			"CPU usage of the processes in the latest CPU ranking"),
		topMemory: newRankingCollector(
			"proctop_top_memory_percent",
			"Share of physical memory held by the processes in the latest memory ranking"),
		hostCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctop_host_cpu_percent",
			Help: "Host-wide CPU usage at the latest tick",
		}),
		hostMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctop_host_memory_percent",
			Help: "Host-wide memory usage at the latest tick",
		}),
		processes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proctop_processes",
			Help: "How many processes the latest rankings were built from",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctop_ticks_total",
			Help: "How many ticks have been published to the sinks",
		}),
		ticksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctop_ticks_skipped_total",
			Help: "How many ticks were skipped because sampling failed",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proctop_processes_dropped_total",
			Help: "How many processes vanished or could not be read while sampling",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctop_tick_duration_seconds",
			Help:    "Time spent sampling and ranking in a published tick",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
	e.reg.MustRegister(
		e.topCPU,
		e.topMemory,
		e.hostCPU,
		e.hostMemory,
		e.processes,
		e.ticks,
		e.ticksSkipped,
		e.dropped,
		e.tickDuration)
	return e
}

// Registry returns the registry holding the exporter's metrics.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.reg
}

// OnTick replaces the ranking gauges with the given views.
func (e *Exporter) OnTick(cpuView, memView types.RankedView) {
	e.topCPU.set(cpuView)
	e.topMemory.set(memView)
	e.processes.Set(float64(cpuView.Total))
	if sys := cpuView.System; sys != nil {
		e.hostCPU.Set(sys.CPUPercent)
		e.hostMemory.Set(sys.MemoryPercent)
	}
}

type rankedSeries struct {
	labels [3]string
	value  float64
}

// rankingCollector exposes the latest ranking as gauges. The whole ranking is
// replaced at once, so a scrape sees either the previous tick or the new one
// and processes that left the ranking never linger as stale series.
type rankingCollector struct {
	desc   *prometheus.Desc
	mu     sync.RWMutex
	series []rankedSeries
}

func newRankingCollector(name, help string) *rankingCollector {
	return &rankingCollector{desc: prometheus.NewDesc(name, help, rankLabels, nil)}
}

func (rc *rankingCollector) set(view types.RankedView) {
	series := make([]rankedSeries, 0, len(view.Entries))
	for i, s := range view.Entries {
		series = append(series, rankedSeries{
			labels: [3]string{
				strconv.Itoa(i + 1),
				strconv.FormatInt(int64(s.PID), 10),
				labelSafe(s.Name),
			},
			value: view.Metric.Value(s),
		})
	}
	rc.mu.Lock()
	rc.series = series
	rc.mu.Unlock()
}

func (rc *rankingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- rc.desc
}

func (rc *rankingCollector) Collect(ch chan<- prometheus.Metric) {
	rc.mu.RLock()
	series := rc.series
	rc.mu.RUnlock()
	for _, s := range series {
		ch <- prometheus.MustNewConstMetric(rc.desc, prometheus.GaugeValue, s.value, s.labels[:]...)
	}
}

// labelSafe replaces bytes that are not valid UTF-8; any process can set such a
// name and client_golang rejects them as label values.
func labelSafe(name string) string {
	return strings.ToValidUTF8(name, "\uFFFD")
}

func (e *Exporter) TickPublished(duration time.Duration, _ int, dropped int) {
	e.ticks.Inc()
	e.tickDuration.Observe(duration.Seconds())
	e.dropped.Add(float64(dropped))
}

func (e *Exporter) TickSkipped() {
	e.ticksSkipped.Inc()
}

// Handler serves the exporter's registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	promHandler := promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{Registry: e.reg})
	if !e.log.Core().Enabled(zap.DebugLevel) {
		return promHandler
	}
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		e.log.Debug("received metrics request",
			zap.String("uri", req.RequestURI), zap.String("remoteAddr", req.RemoteAddr))
		promHandler.ServeHTTP(rw, req)
	})
}

// Serve exposes the metrics on the given port and path until ctx is done.
func (e *Exporter) Serve(ctx context.Context, port int, path string) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", port, err)
	}
	return e.serve(ctx, ln, path)
}

func (e *Exporter) serve(ctx context.Context, ln net.Listener, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, e.Handler())
	server := http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log := e.log.With(zap.String("addr", ln.Addr().String()), zap.String("path", path))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := server.Close(); err != nil {
				log.Warn("error closing HTTP server", zap.Error(err))
			}
		case <-done:
		}
	}()

	log.Info("opening prometheus scrape endpoint")
	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		log.Debug("HTTP server was closed")
		return nil
	}
	return fmt.Errorf("serving metrics: %w", err)
}
