package daemon

import (
	"context"

	"github.com/runger/flare/internal/api"
)

// Doer runs a function on the cooperative loop and waits for it.
type Doer interface {
	Do(ctx context.Context, fn func()) error
}

// Bridge moves commands from the handoff channel onto the cooperative loop,
// applying each one completely before taking the next. It returns when in
// is closed, ctx is done or the loop stops.
func Bridge(ctx context.Context, in <-chan api.Command, loop Doer, apply func(api.Command)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-in:
			if !ok {
				return nil
			}
			if err := loop.Do(ctx, func() { apply(cmd) }); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
