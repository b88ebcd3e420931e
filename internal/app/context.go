package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/metrics"
	"github.com/runger/flare/internal/search"
	"github.com/runger/flare/internal/source"
)

// Context is the application state constructed once at startup and passed
// explicitly to every component. Its methods must be called from the
// cooperative loop.
type Context struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Scheduler  search.Scheduler
	Aggregator *search.Aggregator
	Dispatcher *search.Dispatcher
	Queue      *Queue

	sourceOpts []source.Option
	mode       string
}

// Options configures New.
type Options struct {
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	SourceOptions []source.Option
	Mode          string
}

// New loads the registry from cfg.Sources and wires the dispatcher,
// aggregator and queue around sched.
func New(cfg *config.Config, sched search.Scheduler, opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	srcOpts := append([]source.Option{
		source.WithLogger(logger.Named("source")),
		source.WithEventsDatabase(config.DefaultPaths().EventsDatabase()),
		source.WithDefaultTimeout(cfg.Search.AsyncTimeout()),
	}, opts.SourceOptions...)

	reg := source.Load(cfg.Sources, srcOpts...)
	agg := search.NewAggregator()
	queue := NewQueue(logger.Named("queue"), opts.Metrics)
	agg.OnChange(queue.Handles().surfaceRenderer())

	mode := opts.Mode
	if mode == "" {
		mode = source.ModeAll
	}
	return &Context{
		Config:     cfg,
		Logger:     logger,
		Metrics:    opts.Metrics,
		Scheduler:  sched,
		Aggregator: agg,
		Dispatcher: search.NewDispatcher(reg, sched, agg,
			search.WithLogger(logger.Named("search")),
			search.WithMetrics(opts.Metrics)),
		Queue:      queue,
		sourceOpts: srcOpts,
		mode:       mode,
	}
}

// Mode returns the current search mode.
func (c *Context) Mode() string { return c.mode }

// SetMode changes the search mode used by the next Search.
func (c *Context) SetMode(mode string) {
	if mode == "" {
		mode = source.ModeAll
	}
	c.mode = mode
}

// Search parses input in the current mode and dispatches it. A leading
// alias switches the mode for this and later searches.
func (c *Context) Search(ctx context.Context, input string) (search.Query, *search.Pending) {
	q := search.Parse(input, c.mode, c.Dispatcher.Registry().Aliases())
	c.mode = q.Mode
	_, pending := c.Dispatcher.Dispatch(ctx, q)
	return q, pending
}

// Apply submits a control command to the queue.
func (c *Context) Apply(cmd api.Command) {
	c.Queue.Submit(cmd)
}

// Reload builds a registry from cfg and swaps it in; the next dispatch uses
// it. Load diagnostics are returned as errors for the caller to surface.
func (c *Context) Reload(cfg *config.Config) []error {
	opts := make([]source.Option, 0, len(c.sourceOpts)+1)
	opts = append(opts, c.sourceOpts...)
	opts = append(opts, source.WithDefaultTimeout(cfg.Search.AsyncTimeout()))
	reg := source.Load(cfg.Sources, opts...)

	c.Config = cfg
	old := c.Dispatcher.Registry()
	c.Dispatcher.SetRegistry(reg)
	if old != nil {
		if err := old.Close(); err != nil {
			c.Logger.Warn("failed to close previous sources", zap.Error(err))
		}
	}

	var out []error
	for _, d := range reg.Diagnostics() {
		out = append(out, d)
	}
	c.Logger.Info("sources reloaded", zap.Int("count", reg.Len()), zap.Int("warnings", len(out)))
	return out
}

// Diagnostics returns the current registry's load warnings.
func (c *Context) Diagnostics() []error {
	var out []error
	for _, d := range c.Dispatcher.Registry().Diagnostics() {
		out = append(out, d)
	}
	return out
}

// Close releases source resources.
func (c *Context) Close() error {
	c.Dispatcher.Cancel()
	return c.Dispatcher.Registry().Close()
}
