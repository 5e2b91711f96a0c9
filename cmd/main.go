package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/sailtrack/internal/adapters/http/api"
	"github.com/okian/sailtrack/internal/adapters/http/swagger"
	"github.com/okian/sailtrack/internal/app"
	"github.com/okian/sailtrack/internal/config"
	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/pkg/logger"
	"github.com/okian/sailtrack/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

const usage = `usage: sailtrack <command> [flags]

commands:
  snapshot      export one snapshot (-date YYYYMMDD -time HHMMSS)
  latest        export the most recent published snapshot
  sync          download every published snapshot not cached yet
  trajectories  full run: positions and trajectories of the whole race
  serve         HTTP API with scheduled runs

common flags:
  -output-dir DIR   where export files are written
  -verbose          log every skipped snapshot and rejected row
  -config FILE      YAML configuration (default $SAILTRACK_CONFIG)
`

func main() {
	// We collect our own system metrics instead of the default collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the flags shared by every command.
type options struct {
	outputDir  string
	verbose    bool
	configPath string
	date       string
	slot       string
	addr       string
}

func parseArgs(args []string, stderr io.Writer) (string, options, error) {
	var opts options
	if len(args) == 0 {
		return "", opts, errors.New("missing command")
	}
	cmd := args[0]
	switch cmd {
	case "snapshot", "latest", "sync", "trajectories", "serve":
	default:
		return "", opts, fmt.Errorf("unknown command %q", cmd)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.outputDir, "output-dir", "", "directory for export files")
	fs.BoolVar(&opts.verbose, "verbose", false, "debug logging")
	fs.StringVar(&opts.configPath, "config", os.Getenv("SAILTRACK_CONFIG"), "YAML configuration file")
	if cmd == "snapshot" {
		fs.StringVar(&opts.date, "date", "", "snapshot date, YYYYMMDD")
		fs.StringVar(&opts.slot, "time", "", "snapshot slot, HHMMSS")
	}
	if cmd == "serve" {
		fs.StringVar(&opts.addr, "addr", "", "listen address (overrides config)")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", opts, err
	}
	if cmd == "snapshot" && (opts.date == "" || opts.slot == "") {
		return "", opts, errors.New("snapshot needs -date and -time")
	}
	return cmd, opts, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	cmd, opts, err := parseArgs(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = io.WriteString(stderr, err.Error()+"\n")
		}
		_, _ = io.WriteString(stderr, usage)
		return exitUsage
	}

	if err := logger.Init(logger.WithOutput(stderr)); err != nil {
		_, _ = io.WriteString(stderr, "failed to initialize logging: "+err.Error()+"\n")
		return exitFail
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	cfg, err := config.LoadFile(ctx, opts.configPath)
	if err != nil {
		_, _ = io.WriteString(stderr, "failed to load config: "+err.Error()+"\n")
		return exitFail
	}
	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", level), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if opts.addr != "" {
		cfg.Addr = opts.addr
	}

	svc, err := app.FromConfig(ctx, cfg, opts.outputDir, log.Named("pipeline"))
	if err != nil {
		log.Error(ctx, "failed to build pipeline", logger.Error(err))
		return exitFail
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn(ctx, "close failed", logger.Error(err))
		}
	}()

	now := time.Now()
	switch cmd {
	case "snapshot":
		return exportSnapshot(ctx, log, svc, model.SnapshotID{Date: opts.date, Slot: opts.slot})
	case "latest":
		return exportSnapshot(ctx, log, svc, svc.Resolver().LatestSnapshot(now))
	case "sync":
		sum, err := svc.Sync(ctx, now)
		if err != nil {
			log.Warn(ctx, "sync interrupted", logger.Error(err))
		}
		log.Info(ctx, "sync finished",
			logger.Int("fetched", sum.Fetched),
			logger.Int("failed", sum.Failed),
			logger.Int("cached", sum.Planned-sum.Missing+sum.Cached),
		)
		return exitOK
	case "trajectories":
		report, err := svc.Run(ctx, now)
		if err != nil {
			log.Error(ctx, "nothing exported", logger.Error(err))
			return exitFail
		}
		for _, out := range report.Outputs {
			log.Info(ctx, "written", logger.String("path", out))
		}
		return exitOK
	default:
		return serve(ctx, log, cfg, svc)
	}
}

func exportSnapshot(ctx context.Context, log logger.Logger, svc *app.Service, id model.SnapshotID) int {
	report, err := svc.Snapshot(ctx, id)
	if err != nil {
		log.Error(ctx, "snapshot export failed", logger.String("snapshot", id.String()), logger.Error(err))
		return exitFail
	}
	for _, out := range report.Outputs {
		log.Info(ctx, "written", logger.String("path", out), logger.Int("boats", report.Records))
	}
	return exitOK
}

func serve(ctx context.Context, log logger.Logger, cfg *config.Config, svc *app.Service) int {
	go startSystemMetricsUpdater(ctx)
	go svc.Schedule(ctx, cfg.RefreshInterval(), time.Now)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, time.Now).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	failed := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-failed:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
		return exitFail
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return exitOK
}

// startSystemMetricsUpdater refreshes the system gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
