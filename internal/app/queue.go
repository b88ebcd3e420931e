package app

import (
	"go.uber.org/zap"

	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/metrics"
)

// Queue applies commands to the live handles, buffering those whose target
// does not exist yet. It is owned by the cooperative loop.
type Queue struct {
	handles Handles
	pending []api.Command
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewQueue returns an empty Queue with no live handles.
func NewQueue(logger *zap.Logger, m *metrics.Metrics) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{logger: logger, metrics: m}
}

// Handles returns the live-handle registry.
func (q *Queue) Handles() *Handles { return &q.handles }

// Submit applies cmd now if nothing is pending and its target is live,
// otherwise appends it to the pending list so it runs after the commands
// submitted before it. ClearAwaiting is always applied at once. A pending
// state-setting command replaces an earlier pending command of the same kind.
func (q *Queue) Submit(cmd api.Command) {
	if len(q.pending) == 0 || cmd.Kind == api.KindClearAwaiting {
		if q.matchAction(cmd) {
			q.logger.Debug("command applied", zap.Stringer("command", cmd))
			return
		}
	}
	if supersedes(cmd.Kind) {
		kept := q.pending[:0]
		for _, p := range q.pending {
			if p.Kind != cmd.Kind {
				kept = append(kept, p)
			}
		}
		q.pending = kept
	}
	q.pending = append(q.pending, cmd)
	q.metrics.SetPending(len(q.pending))
	q.logger.Debug("command pending", zap.Stringer("command", cmd), zap.Int("pending", len(q.pending)))
}

// Flush re-attempts the pending commands in insertion order. It stops at the
// first one still unhandled, which keeps it and everything behind it pending.
// Flushing with no newly live handles is a no-op.
func (q *Queue) Flush() {
	if len(q.pending) == 0 {
		return
	}
	n := 0
	for n < len(q.pending) && q.matchAction(q.pending[n]) {
		n++
	}
	if n == len(q.pending) {
		q.pending = nil
	} else {
		q.pending = append([]api.Command(nil), q.pending[n:]...)
	}
	q.metrics.SetPending(len(q.pending))
}

// DrainMatching removes and returns the pending commands satisfying pred, in
// insertion order.
func (q *Queue) DrainMatching(pred func(api.Command) bool) []api.Command {
	var drained, kept []api.Command
	for _, cmd := range q.pending {
		if pred(cmd) {
			drained = append(drained, cmd)
		} else {
			kept = append(kept, cmd)
		}
	}
	q.pending = kept
	q.metrics.SetPending(len(q.pending))
	return drained
}

// Pending returns a copy of the pending commands.
func (q *Queue) Pending() []api.Command {
	return append([]api.Command(nil), q.pending...)
}

// RegisterWindow makes w live and flushes.
func (q *Queue) RegisterWindow(w Window) {
	q.handles.window = w
	q.Flush()
}

// UnregisterWindow drops the live window.
func (q *Queue) UnregisterWindow() { q.handles.window = nil }

// RegisterSurface makes s live and flushes.
func (q *Queue) RegisterSurface(s Surface) {
	q.handles.surface = s
	q.Flush()
}

// UnregisterSurface drops the live results surface.
func (q *Queue) UnregisterSurface() { q.handles.surface = nil }

// matchAction applies cmd if the handle it needs is live.
func (q *Queue) matchAction(cmd api.Command) bool {
	switch cmd.Kind {
	case api.KindClearAwaiting:
		q.pending = nil
		q.metrics.SetPending(0)
		return true

	case api.KindRegisterSocket:
		q.handles.replySocket = cmd.Path
		return true

	case api.KindShow, api.KindInputOnly:
		w, ok := q.handles.Window()
		if !ok {
			return false
		}
		if cmd.Kind == api.KindShow {
			w.Present()
		} else {
			w.InputOnly()
		}
		return true
	}

	s, ok := q.handles.Surface()
	if !ok {
		return false
	}
	switch cmd.Kind {
	case api.KindClear:
		s.Clear()
	case api.KindObfuscate:
		s.SetObfuscated(cmd.Flag)
	case api.KindPipe:
		s.Pipe(cmd.Payload)
	case api.KindDisplayRaw:
		s.DisplayRaw(cmd.Payload)
	case api.KindSwitchMode:
		s.SwitchMode(cmd.Mode)
	case api.KindError:
		s.ShowError(cmd.Err)
	default:
		q.logger.Warn("unknown command kind", zap.String("kind", string(cmd.Kind)))
		return true
	}
	return true
}

// supersedes reports whether a newer pending command of kind replaces older ones.
func supersedes(kind api.Kind) bool {
	switch kind {
	case api.KindShow, api.KindClear, api.KindObfuscate, api.KindInputOnly,
		api.KindSwitchMode, api.KindRegisterSocket:
		return true
	}
	return false
}
