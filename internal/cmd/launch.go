package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/runger/flare/internal/action"
	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/app"
	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/daemon"
	"github.com/runger/flare/internal/errs"
	"github.com/runger/flare/internal/ipc"
	"github.com/runger/flare/internal/lock"
	"github.com/runger/flare/internal/metrics"
	"github.com/runger/flare/internal/runloop"
	"github.com/runger/flare/internal/tui"
)

// forwardTimeout bounds the hand-off to an instance that is already running.
const forwardTimeout = 2 * time.Second

func runLauncher(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if daemonize {
		cfg.Daemon.Daemonize = true
	}
	if metricsAddr != "" {
		cfg.Daemon.MetricsAddr = metricsAddr
	}

	piped, hasPiped, err := readPiped()
	if err != nil {
		return err
	}
	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	socket := resolveSocket(cfg)

	lk, err := lock.Acquire(paths.LockFile())
	if err != nil {
		var running *lock.AlreadyRunningError
		if errors.As(err, &running) {
			return forwardToRunning(cmd.Context(), socket, running, piped, hasPiped)
		}
		return err
	}
	defer lk.Release()

	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("starting", zap.Int("pid", lk.PID()), zap.Bool("daemon", cfg.Daemon.Daemonize))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := metrics.New()
	loop := runloop.New()
	defer loop.Stop()

	appCtx := app.New(cfg, loop, app.Options{
		Logger:  logger,
		Metrics: m,
		Mode:    startMode,
	})
	defer appCtx.Close()

	loop.Post(func() {
		for _, d := range appCtx.Diagnostics() {
			logger.Warn("source skipped", zap.Error(d))
			var e *errs.Error
			if errors.As(d, &e) {
				appCtx.Apply(api.Error(e))
			}
		}
		if hasPiped {
			appCtx.Apply(api.Pipe(piped))
		}
	})

	runner := action.New(
		action.WithLogger(logger.Named("action")),
		action.WithReplySocket(func() (string, bool) {
			var path string
			var ok bool
			_ = loop.Do(ctx, func() { path, ok = appCtx.Queue.Handles().ReplySocket() })
			return path, ok
		}),
	)

	daemonDone := make(chan error, 1)
	if cfg.Daemon.Daemonize {
		go func() {
			daemonDone <- daemon.Run(ctx, daemon.Options{
				SocketPath:  socket,
				ConfigPath:  resolvedConfigPath(),
				WatchConfig: cfg.Daemon.WatchConfig,
				MetricsAddr: cfg.Daemon.MetricsAddr,
				Logger:      logger.Named("daemon"),
				Metrics:     m,
				Loop:        loop,
				Apply:       appCtx.Apply,
				Reload: func(next *config.Config) {
					for _, d := range appCtx.Reload(next) {
						logger.Warn("source skipped", zap.Error(d))
					}
				},
			})
		}()
	} else {
		close(daemonDone)
	}

	if !stdoutIsTerminal() || (cfg.Daemon.Daemonize && os.Getenv("FLARE_DAEMONIZE") == "true") {
		if !cfg.Daemon.Daemonize {
			return fmt.Errorf("flare needs a terminal; use `flare query` for scripted searches")
		}
		// Headless daemon: the loop runs until the daemon stops.
		go loop.Run(ctx)
		err := <-daemonDone
		cancel()
		return err
	}

	model := tui.New(appCtx, loop, runner, tui.Options{
		Daemon:     cfg.Daemon.Daemonize,
		Debounce:   cfg.Search.Debounce(),
		MaxResults: cfg.Search.MaxResults,
		Logger:     logger.Named("tui"),
	})
	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if hasPiped {
		// stdin was consumed; read keys from the terminal instead.
		tty, err := os.Open("/dev/tty")
		if err != nil {
			return fmt.Errorf("failed to open terminal: %w", err)
		}
		defer tty.Close()
		opts = append(opts, tea.WithInput(tty))
	}
	p := tea.NewProgram(model, opts...)

	daemonStopped := make(chan struct{})
	go func() {
		defer close(daemonStopped)
		if err := <-daemonDone; err != nil {
			logger.Error("daemon stopped", zap.Error(err))
		}
		if cfg.Daemon.Daemonize {
			p.Quit()
		}
	}()

	_, runErr := p.Run()
	cancel()
	loop.Stop()
	<-daemonStopped
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}

	if item, ok := model.Result(); ok {
		return runner.Run(cmd.Context(), item)
	}
	return nil
}

// forwardToRunning hands this invocation to the instance holding the lock:
// piped content is sent first, then the window is shown.
func forwardToRunning(ctx context.Context, socket string, running *lock.AlreadyRunningError, piped string, hasPiped bool) error {
	ctx, cancel := context.WithTimeout(ctx, forwardTimeout)
	defer cancel()

	if !ipc.IsRunning(socket) {
		return fmt.Errorf("%w; it is not listening on %s (start it with --daemonize)", running, socket)
	}
	if hasPiped {
		if _, err := ipc.SendCommand(ctx, socket, api.Pipe(piped)); err != nil {
			return err
		}
	}
	if _, err := ipc.SendCommand(ctx, socket, api.Show()); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "flare is already running (PID %d); showing it\n", running.PID)
	return nil
}
