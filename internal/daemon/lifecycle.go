// Package daemon runs the control side of a flare instance: the socket
// listener feeding the command queue, configuration reload and the metrics
// endpoint. The single-instance lock is held by the caller for the lifetime
// of Run.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/metrics"
)

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 200 * time.Millisecond

// Options configures Run.
type Options struct {
	SocketPath  string
	ConfigPath  string // watched for changes when WatchConfig is set
	WatchConfig bool
	MetricsAddr string

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Loop is the cooperative loop commands and reloads are applied on.
	Loop Doer
	// Apply applies a command on the loop.
	Apply func(api.Command)
	// Reload swaps in a freshly loaded configuration on the loop.
	Reload func(*config.Config)
}

// Run serves the control socket until ctx is done or SIGTERM/SIGINT arrives.
// SIGHUP and (with WatchConfig) config file changes trigger a reload.
func Run(ctx context.Context, opts Options) error {
	if err := CheckNotRoot(); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ln := NewListener(opts.SocketPath, logger.Named("listener"), opts.Metrics)
	if err := ln.Listen(); err != nil {
		return err
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Ignore SIGPIPE to prevent crash on broken pipe
	signal.Ignore(syscall.SIGPIPE)
	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	reload := func(reason string) {
		if opts.Reload == nil || opts.ConfigPath == "" {
			logger.Debug("no reload configured, ignoring", zap.String("reason", reason))
			return
		}
		cfg, err := config.LoadFromFile(opts.ConfigPath)
		if err != nil {
			logger.Error("failed to reload configuration", zap.String("reason", reason), zap.Error(err))
			return
		}
		if err := opts.Loop.Do(ctx, func() { opts.Reload(cfg) }); err != nil {
			logger.Warn("reload not applied", zap.Error(err))
			return
		}
		logger.Info("configuration reloaded", zap.String("reason", reason))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ln.Serve(gctx) })
	g.Go(func() error { return Bridge(gctx, ln.Commands(), opts.Loop, opts.Apply) })
	g.Go(func() error {
		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGTERM, syscall.SIGINT:
					logger.Info("received shutdown signal", zap.Stringer("signal", sig))
					cancel()
					return nil
				case syscall.SIGHUP:
					reload("SIGHUP")
				}
			case <-gctx.Done():
				return nil
			}
		}
	})
	if opts.WatchConfig && opts.ConfigPath != "" {
		g.Go(func() error { return watchConfig(gctx, opts.ConfigPath, logger, reload) })
	}
	if opts.MetricsAddr != "" && opts.Metrics != nil {
		g.Go(func() error { return serveMetrics(gctx, opts.MetricsAddr, opts.Metrics, logger) })
	}

	logger.Info("daemon started", zap.String("socket", opts.SocketPath), zap.Int("pid", os.Getpid()))
	err := g.Wait()
	logger.Info("daemon stopped")
	return err
}

// watchConfig watches the directory holding path, since editors often
// replace the file instead of writing it in place.
func watchConfig(ctx context.Context, path string, logger *zap.Logger, reload func(string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", zap.Error(err))
		case <-timer.C:
			reload("config changed")
		}
	}
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("serving metrics", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		// Metrics are optional; a bad address must not take the daemon down.
		logger.Error("metrics server failed", zap.Error(err))
		return nil
	}
}
