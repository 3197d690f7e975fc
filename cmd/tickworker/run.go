package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	tickworker "github.com/Swind/go-tickworker"
	"github.com/Swind/go-tickworker/config"
	"github.com/Swind/go-tickworker/core"
	promexp "github.com/Swind/go-tickworker/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options are the run command inputs. Zero values fall back to the config
// file, then to config.Default.
type Options struct {
	ConfigPath    string
	Workers       int
	TickInterval  time.Duration
	DefaultBudget time.Duration
	LogLevel      string
	MetricsListen string
	DemoItems     int
	Once          bool

	// ready, if set, receives the metrics listener address once serving.
	ready chan<- string
}

func loadConfig(opts Options) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.TickInterval > 0 {
		cfg.TickInterval = config.Duration(opts.TickInterval)
	}
	if opts.DefaultBudget > 0 {
		cfg.DefaultBudget = config.Duration(opts.DefaultBudget)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.MetricsListen != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = opts.MetricsListen
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Run boots a RunnerHost and Scheduler and blocks until ctx is done, or
// until the demo loop finishes when opts.Once is set.
func Run(ctx context.Context, opts Options, logOut io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(logOut)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		metrics core.Metrics = &core.NilMetrics{}
		reg     *prom.Registry
		poller  *promexp.SnapshotPoller
	)
	if cfg.Metrics.Enabled {
		reg = prom.NewRegistry()
		exporter, err := promexp.NewMetricsExporter(cfg.Metrics.Namespace, reg, promexp.ExporterOptions{})
		if err != nil {
			return err
		}
		metrics = exporter
		poller, err = promexp.NewSnapshotPoller(cfg.Metrics.Namespace, reg, cfg.Metrics.PollInterval.Std())
		if err != nil {
			return err
		}
	}

	host := tickworker.NewRunnerHost(cfg.Workers, logger, metrics)
	defer host.Shutdown()
	s := core.NewScheduler(host, cfg.SchedulerConfig(logger, metrics))
	defer s.Shutdown()

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if poller != nil {
		poller.AddScheduler("default", s)
		poller.AddRunner("main", host.Main())
		poller.AddPool("workers", host.Pool())
		poller.Start(ctx)
		defer poller.Stop()

		ln, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", core.F("error", err))
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("serving metrics", core.F("addr", ln.Addr().String()))
		if opts.ready != nil {
			opts.ready <- ln.Addr().String()
		}
	}

	if opts.ConfigPath != "" {
		watcher := config.NewWatcher(opts.ConfigPath, cfg, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := watcher.Run(ctx, func(next *config.Config) {
				s.SetDefaultBudget(next.DefaultBudget.Std())
				logger.Info("default budget updated", core.F("budget", s.DefaultBudget()))
			})
			if err != nil {
				logger.Warn("config watcher stopped", core.F("error", err))
			}
		}()
	}

	if opts.DemoItems > 0 {
		future, err := startDemo(s, opts.DemoItems, logger)
		if err != nil {
			return err
		}
		if opts.Once {
			select {
			case <-future.Done():
			case <-ctx.Done():
			}
			return nil
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// startDemo queues a worker-side loop that burns a little CPU per item, so
// the budget spreads it across ticks.
func startDemo(s *core.Scheduler, items int, logger core.Logger) (*core.LoopFuture[int], error) {
	started := time.Now()
	var sum int
	future, err := core.PrepareLoopInt(s, items).AsyncForEach(func(ctx context.Context, i int) {
		for n := range 10_000 {
			sum += (i * n) % 7
		}
	})
	if err != nil {
		return nil, err
	}
	future.WhenCompleteAcceptSync(func(last int, ok bool) {
		logger.Info("demo loop finished",
			core.F("items", items),
			core.F("last", last),
			core.F("completed", ok),
			core.F("checksum", sum),
			core.F("elapsed", time.Since(started)),
		)
	})
	return future, nil
}
