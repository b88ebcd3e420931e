// Package app holds the consumer side of the control protocol: the registry
// of live UI handles, the command queue that buffers commands until those
// handles exist, and the application context wiring everything together.
package app

import (
	"github.com/runger/flare/internal/errs"
	"github.com/runger/flare/internal/source"
)

// Window is the launcher window.
type Window interface {
	// Present shows and focuses the window.
	Present()
	// InputOnly collapses the window to the search bar.
	InputOnly()
}

// Surface is where results and injected content are shown.
type Surface interface {
	Clear()
	SetObfuscated(on bool)
	Pipe(content string)
	DisplayRaw(content string)
	SwitchMode(mode string)
	ShowError(e *errs.Error)
	Render(round uint64, items []source.Item)
}

// Handles is the registry of currently live UI handles. Liveness is decided
// by lookup: a handle is live from Register until Unregister.
type Handles struct {
	window      Window
	surface     Surface
	replySocket *string
}

func (h *Handles) Window() (Window, bool)   { return h.window, h.window != nil }
func (h *Handles) Surface() (Surface, bool) { return h.surface, h.surface != nil }

// ReplySocket is the socket "print" actions write to instead of stdout.
func (h *Handles) ReplySocket() (string, bool) {
	if h.replySocket == nil {
		return "", false
	}
	return *h.replySocket, true
}

// surfaceRenderer connects the aggregator's change stream to whichever
// surface is live.
func (h *Handles) surfaceRenderer() func(round uint64, items []source.Item) {
	return func(round uint64, items []source.Item) {
		if s, ok := h.Surface(); ok {
			s.Render(round, items)
		}
	}
}
