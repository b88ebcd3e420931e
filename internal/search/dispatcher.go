package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/runger/flare/internal/errs"
	"github.com/runger/flare/internal/metrics"
	"github.com/runger/flare/internal/source"
)

// Scheduler runs functions on the cooperative loop. Post must not block on
// the posted function running.
type Scheduler interface {
	Post(fn func())
}

// Sink receives round results on the cooperative loop. Aggregator implements it.
type Sink interface {
	Begin(round uint64, q Query, immediate []source.Item)
	Apply(round uint64, items []source.Item) bool
}

// Token tells an async task whether its round is still current.
type Token struct {
	round uint64
	gen   *atomic.Uint64
}

// Round returns the round the token was issued for.
func (t Token) Round() uint64 { return t.round }

// Canceled reports whether a newer round has been dispatched.
func (t Token) Canceled() bool { return t.gen.Load() != t.round }

// Pending tracks the async tasks of one round.
type Pending struct {
	round uint64
	tasks int
	wg    sync.WaitGroup
	done  chan struct{}
}

// Round returns the round number.
func (p *Pending) Round() uint64 { return p.round }

// Tasks returns the number of async tasks started for the round.
func (p *Pending) Tasks() int { return p.tasks }

// Wait blocks until every async task of the round has ended, whether it
// published, dropped its result or timed out.
func (p *Pending) Wait() { <-p.done }

// Done is closed once every async task of the round has ended.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Dispatcher fans queries out to the registry's sources.
type Dispatcher struct {
	registry atomic.Pointer[source.Registry]
	gen      atomic.Uint64
	sched    Scheduler
	sink     Sink
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns a Dispatcher publishing to sink through sched.
func NewDispatcher(reg *source.Registry, sched Scheduler, sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{sched: sched, sink: sink, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.registry.Store(reg)
	return d
}

// SetRegistry swaps the source registry; the next Dispatch uses it.
func (d *Dispatcher) SetRegistry(reg *source.Registry) {
	d.registry.Store(reg)
}

// Registry returns the current registry.
func (d *Dispatcher) Registry() *source.Registry {
	return d.registry.Load()
}

// Cancel invalidates the current round without starting a new one.
func (d *Dispatcher) Cancel() {
	d.gen.Add(1)
}

// Dispatch starts a round for q. It must be called on the cooperative loop.
// The previous round is invalidated before any source runs. Synchronous
// results are returned and handed to the sink immediately; async results are
// posted as they arrive.
func (d *Dispatcher) Dispatch(ctx context.Context, q Query) ([]source.Item, *Pending) {
	round := d.gen.Add(1)
	tok := Token{round: round, gen: &d.gen}
	d.metrics.ObserveDispatch()

	req := q.Request()
	var syncSrcs, asyncSrcs []*source.Source
	for _, s := range d.registry.Load().Sources() {
		if !s.Eligible(q.Mode) {
			continue
		}
		if s.Async {
			asyncSrcs = append(asyncSrcs, s)
		} else {
			syncSrcs = append(syncSrcs, s)
		}
	}

	var immediate []source.Item
	for _, s := range syncSrcs {
		if !s.Accepts(req.Keyword) {
			continue
		}
		items, err := d.produce(ctx, s, req)
		immediate = append(immediate, d.contribution(s, items, err, 0)...)
	}
	d.sink.Begin(round, q, immediate)

	p := &Pending{round: round, done: make(chan struct{})}
	for _, s := range asyncSrcs {
		if !s.Accepts(req.Keyword) {
			continue
		}
		p.tasks++
		p.wg.Add(1)
		go func(s *source.Source) {
			defer p.wg.Done()
			d.runAsync(ctx, tok, s, req)
		}(s)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()

	d.logger.Debug("dispatched",
		zap.Uint64("round", round),
		zap.String("mode", q.Mode),
		zap.Int("sync", len(syncSrcs)),
		zap.Int("async", p.tasks),
		zap.Int("immediate", len(immediate)))
	return immediate, p
}

func (d *Dispatcher) runAsync(ctx context.Context, tok Token, s *source.Source, req source.Request) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = source.DefaultAsyncTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		items []source.Item
		err   error
	}
	start := time.Now()
	ch := make(chan result, 1)
	go func() {
		items, err := d.produce(tctx, s, req)
		ch <- result{items, err}
	}()

	var items []source.Item
	var err error
	select {
	case r := <-ch:
		items, err = r.items, r.err
	case <-tctx.Done():
		err = tctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = errs.New(errs.Timeout, "operation timed out", fmt.Sprintf("%s after %s", s.Name, timeout))
	}

	if tok.Canceled() {
		d.metrics.ObserveSource(s.Name, metrics.OutcomeStale, time.Since(start))
		return
	}
	if ctx.Err() != nil {
		return
	}
	contribution := d.contribution(s, items, err, time.Since(start))
	round := tok.Round()
	d.sched.Post(func() {
		if !d.sink.Apply(round, contribution) {
			d.metrics.ObserveSource(s.Name, metrics.OutcomeStale, 0)
		}
	})
}

// produce runs a source, turning a panic into an error.
func (d *Dispatcher) produce(ctx context.Context, s *source.Source, req source.Request) (items []source.Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = errs.New(errs.CommandExec, "source panicked", fmt.Sprint(r))
		}
	}()
	return s.Produce(ctx, req)
}

// contribution maps a source outcome to the items it adds to the round.
func (d *Dispatcher) contribution(s *source.Source, items []source.Item, err error, took time.Duration) []source.Item {
	if err == nil {
		outcome := metrics.OutcomeOK
		if len(items) == 0 {
			outcome = metrics.OutcomeEmpty
		}
		d.metrics.ObserveSource(s.Name, outcome, took)
		return items
	}

	var e *errs.Error
	if !errors.As(err, &e) {
		e = errs.Wrap(errs.CommandExec, "source failed", err)
	}
	outcome := metrics.OutcomeError
	if e.Kind == errs.Timeout {
		outcome = metrics.OutcomeTimeout
	}
	d.metrics.ObserveSource(s.Name, outcome, took)
	d.logger.Warn("source failed",
		zap.String("source", s.Name),
		zap.String("kind", string(e.Kind)),
		zap.Error(err))

	// Partial results (a web search tile without suggestions) are kept.
	return append(items, source.ErrorItem(s.Name, e))
}
