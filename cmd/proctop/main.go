package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/srodi/proctop/pkg/collector/process"
	"github.com/srodi/proctop/pkg/config"
	"github.com/srodi/proctop/pkg/export/jsonl"
	"github.com/srodi/proctop/pkg/export/prom"
	"github.com/srodi/proctop/pkg/report"
	"github.com/srodi/proctop/pkg/sampler"
	"github.com/srodi/proctop/pkg/scheduler"
	"github.com/srodi/proctop/pkg/ui"
)

// columns taken by the table before the bar column
const tableWidth = 72

func main() {
	cfg, err := parseConfig(flag.NewFlagSet("proctop", flag.ContinueOnError), os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "proctop: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "proctop: building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("proctop stopped", zap.Error(err))
		if errors.Is(err, config.ErrInvalidConfiguration) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

// parseConfig loads the YAML file named by -config, then PROCTOP_* variables,
// then any flag given explicitly on the command line.
func parseConfig(fs *flag.FlagSet, args []string) (*config.Config, error) {
	configPath := fs.String("config", "", "path to a YAML configuration file")
	interval := fs.Duration("interval", 0, "refresh interval (e.g. 500ms, 2s)")
	topK := fs.Int("topk", 0, "number of processes to display per ranking")
	hideKernel := fs.Bool("hide-kernel", false, "hide kernel threads such as kworker, ksoftirqd, etc")
	filter := fs.String("filter", "", "only show processes whose name contains this substring (case-insensitive)")
	output := fs.String("output", "", "terminal output: table, json or none")
	promPort := fs.Int("prom-port", 0, "serve Prometheus metrics on this port (0 disables)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfiguration, err)
	}

	var file io.Reader
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			return nil, fmt.Errorf("%w: opening config file: %v", config.ErrInvalidConfiguration, err)
		}
		defer f.Close()
		file = f
	}
	cfg, err := config.LoadConfig(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.Period = *interval
		case "topk":
			cfg.TopN = *topK
		case "hide-kernel":
			cfg.HideKernel = *hideKernel
		case "filter":
			cfg.NameFilter = strings.TrimSpace(*filter)
		case "output":
			cfg.Output = strings.ToLower(*output)
		case "prom-port":
			cfg.Prometheus.Port = *promPort
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	smp := sampler.New(process.NewCollector(log),
		sampler.WithUsage(sampler.HostUsage{}),
		sampler.WithLogger(log))

	var sinks scheduler.MultiSink
	opts := []scheduler.Option{scheduler.WithLogger(log)}
	var exporter *prom.Exporter
	if cfg.Prometheus.Port != 0 {
		exporter = prom.NewExporter(log)
		sinks = append(sinks, exporter)
		opts = append(opts, scheduler.WithMetrics(exporter))
	}

	switch cfg.Output {
	case config.OutputTable:
		tty := term.IsTerminal(int(os.Stdout.Fd()))
		if tty {
			restore := enableSingleView(log)
			defer restore()
		}
		sinks = append(sinks, ui.NewTable(os.Stdout, ui.TableOptions{
			Interval:    cfg.Period,
			TopN:        cfg.TopN,
			HideKernel:  cfg.HideKernel,
			Banner:      tty,
			Color:       tty,
			ClearScreen: tty,
			BarWidth:    barWidth(tty),
		}, log))
	case config.OutputJSON:
		sinks = append(sinks, jsonl.NewWriter(os.Stdout, log))
	}

	sched, err := scheduler.New(scheduler.Config{
		Period: cfg.Period,
		TopN:   cfg.TopN,
		Filter: report.FilterConfig{HideKernel: cfg.HideKernel, NameFilter: cfg.NameFilter},
	}, smp, opts...)
	if err != nil {
		return err
	}

	log.Info("starting proctop",
		zap.Duration("period", cfg.Period),
		zap.Int("topN", cfg.TopN),
		zap.String("output", cfg.Output))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx, sinks)
	})
	if exporter != nil {
		g.Go(func() error {
			return exporter.Serve(ctx, cfg.Prometheus.Port, cfg.Prometheus.Path)
		})
	}
	return g.Wait()
}

// barWidth fills whatever the terminal has left after the table columns.
func barWidth(tty bool) int {
	if !tty {
		return 0
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return min(max(width-tableWidth, 0), 40)
}
