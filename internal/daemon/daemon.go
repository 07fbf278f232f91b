// Package daemon composes the docbot runtime: the dispatcher, the NATS
// transport bridge, the rebuild worker, the config watcher, the periodic
// scheduler, and the metrics HTTP endpoint.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/docbot/internal/dispatch"
	"git.home.luguber.info/inful/docbot/internal/logfields"
	"git.home.luguber.info/inful/docbot/internal/natsmsg"
	"git.home.luguber.info/inful/docbot/internal/project"
)

// Options configures a Daemon.
type Options struct {
	ConfigPath string
	NATSURL    string
	// ListenAddr serves /metrics and /healthz. Empty disables the server.
	ListenAddr string
	// QueueSize bounds the rebuild queue. Defaults to 64.
	QueueSize int
}

// Daemon runs the build-trigger service until its context is cancelled.
// Rebuilds execute sequentially on a single worker: one build's command
// sequence runs to completion before the next queued build starts.
type Daemon struct {
	opts       Options
	bridge     *natsmsg.Bridge
	dispatcher *dispatch.Dispatcher
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	metrics    *metrics
	httpServer *http.Server

	queue chan project.Target
	wg    sync.WaitGroup
}

// New connects the transport, loads the configuration, and assembles the
// runtime. Nothing runs until Start.
func New(opts Options) (*Daemon, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}

	bridge, err := natsmsg.Connect(opts.NATSURL)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		opts:   opts,
		bridge: bridge,
		queue:  make(chan project.Target, opts.QueueSize),
	}
	d.metrics = newMetrics(func() float64 { return float64(len(d.queue)) })

	dispatcher, err := dispatch.New(dispatch.Options{
		ConfigPath: opts.ConfigPath,
		Announcer:  bridge.Announcer(),
		Submit:     d.enqueue,
	})
	if err != nil {
		bridge.Close()
		return nil, err
	}
	d.dispatcher = dispatcher

	scheduler, err := NewScheduler(d.enqueue)
	if err != nil {
		bridge.Close()
		return nil, err
	}
	d.scheduler = scheduler

	watcher, err := NewConfigWatcher(opts.ConfigPath, d.reload)
	if err != nil {
		bridge.Close()
		return nil, err
	}
	d.watcher = watcher

	return d, nil
}

// enqueue hands a build to the rebuild worker, preserving trigger order.
func (d *Daemon) enqueue(t project.Target) {
	d.queue <- t
}

// reload re-reads the configuration and re-syncs the scheduler. Reload
// failure keeps the previous snapshot and schedule.
func (d *Daemon) reload() error {
	if err := d.dispatcher.Reload(); err != nil {
		return err
	}
	return d.scheduler.Sync(d.dispatcher.Snapshot())
}

// Start wires subscriptions, starts the worker, watcher, scheduler, and
// metrics server, and blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.bridge.Subscribe(ctx, d.dispatcher); err != nil {
		return err
	}

	if err := d.scheduler.Sync(d.dispatcher.Snapshot()); err != nil {
		return err
	}
	d.scheduler.Start()

	if err := d.watcher.Start(ctx); err != nil {
		return err
	}

	if d.opts.ListenAddr != "" {
		d.startHTTP()
	}

	d.wg.Add(1)
	go d.rebuildWorker(ctx)

	d.bridge.Announcer().Status("idle")
	slog.Info("docbot daemon running",
		logfields.Path(d.opts.ConfigPath), logfields.URL(d.opts.NATSURL))

	<-ctx.Done()
	return nil
}

// rebuildWorker drains the queue one build at a time.
func (d *Daemon) rebuildWorker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case target := <-d.queue:
			started := time.Now()
			d.metrics.buildsTotal.Inc()
			if err := d.dispatcher.Rebuild(ctx, target); err != nil {
				d.metrics.buildsFailed.Inc()
			}
			d.metrics.buildDuration.Observe(time.Since(started).Seconds())
		}
	}
}

// startHTTP serves /metrics and /healthz.
func (d *Daemon) startHTTP() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	d.httpServer = &http.Server{Addr: d.opts.ListenAddr, Handler: mux}
	go func() {
		if err := d.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	slog.Info("Metrics server listening", slog.String("addr", d.opts.ListenAddr))
}

// Stop shuts everything down gracefully.
func (d *Daemon) Stop(ctx context.Context) error {
	var firstErr error

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.httpServer != nil {
		if err := d.httpServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	d.bridge.Close()
	d.wg.Wait()

	slog.Info("docbot daemon stopped")
	return firstErr
}
