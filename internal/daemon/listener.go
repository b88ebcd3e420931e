package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/errs"
	"github.com/runger/flare/internal/ipc"
	"github.com/runger/flare/internal/metrics"
)

// Acknowledgements written back to the sender.
const (
	AckOK          = "ok"
	AckPassthrough = "passthrough"
)

// readTimeout bounds how long a client may take to send its message.
const readTimeout = 2 * time.Second

// Listener accepts control messages on a unix socket and hands decoded
// commands to the consumer through a channel of capacity one. A full channel
// blocks the accept loop, so the listener never outruns the consumer.
type Listener struct {
	path    string
	out     chan api.Command
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	ln       net.Listener
	closeErr error
	once     sync.Once
}

// NewListener returns a Listener for path. Nothing is bound until Listen.
func NewListener(path string, logger *zap.Logger, m *metrics.Metrics) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		path:    path,
		out:     make(chan api.Command, 1),
		logger:  logger,
		metrics: m,
	}
}

// Commands is the depth-1 handoff channel. It is closed when Serve returns.
func (l *Listener) Commands() <-chan api.Command { return l.out }

// Path returns the socket path.
func (l *Listener) Path() string { return l.path }

// Listen removes a stale socket and binds a new one with mode 0600.
func (l *Listener) Listen() error {
	if err := EnsureSecureDirectory(filepath.Dir(l.path)); err != nil {
		return errs.Wrap(errs.DirCreate, "failed to prepare socket directory", err)
	}

	// The single-instance lock is held, so any socket here is stale.
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.SocketRemove, "failed to remove stale socket", err)
	}

	ln, err := net.Listen("unix", l.path)
	if err != nil {
		return errs.Wrap(errs.SocketConnect, "failed to listen on "+l.path, err)
	}
	if err := os.Chmod(l.path, 0o600); err != nil {
		ln.Close()
		return errs.Wrap(errs.SocketConnect, "failed to set socket permissions", err)
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	l.logger.Info("listening", zap.String("socket", l.path))
	return nil
}

// Serve accepts connections one at a time until ctx is done or Close is
// called. Listen must have succeeded.
func (l *Listener) Serve(ctx context.Context) error {
	defer close(l.out)

	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return errors.New("listener not bound")
	}

	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		if !l.handle(ctx, conn) {
			return nil
		}
	}
}

// handle serves one connection. It returns false when ctx ended while
// waiting for the consumer.
func (l *Listener) handle(ctx context.Context, conn net.Conn) bool {
	defer conn.Close()
	connID := uuid.NewString()
	log := l.logger.With(zap.String("conn", connID))

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	data, err := io.ReadAll(io.LimitReader(conn, ipc.MaxMessage))
	if err != nil && !isTimeout(err) {
		log.Warn("failed to read message", zap.Error(err))
		l.reply(conn, log, fmt.Sprintf("error: %v", err))
		return true
	}
	if len(data) == 0 {
		// Liveness probe.
		l.reply(conn, log, AckOK)
		return true
	}

	cmd, ok := Decode(data)
	if !ok {
		l.metrics.ObserveMessage(AckPassthrough)
		log.Info("passthrough message", zap.Int("bytes", len(data)),
			zap.String("text", truncate(string(data), 120)))
		l.reply(conn, log, AckPassthrough)
		return true
	}

	l.metrics.ObserveMessage(string(cmd.Kind))
	log.Debug("received command", zap.Stringer("command", cmd))
	select {
	case l.out <- cmd:
	case <-ctx.Done():
		l.reply(conn, log, "error: shutting down")
		return false
	}
	l.reply(conn, log, AckOK)
	return true
}

func (l *Listener) reply(conn net.Conn, log *zap.Logger, ack string) {
	_ = conn.SetWriteDeadline(time.Now().Add(readTimeout))
	if _, err := io.WriteString(conn, ack); err != nil {
		log.Debug("failed to write acknowledgement", zap.Error(err))
	}
}

// Close stops accepting and removes the socket file. It is safe to call
// multiple times.
func (l *Listener) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		ln := l.ln
		l.mu.Unlock()
		if ln != nil {
			l.closeErr = ln.Close()
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("failed to remove socket", zap.String("path", l.path), zap.Error(err))
		}
	})
	return l.closeErr
}

// Decode maps a raw control message to a command. The literal "show" is
// accepted for shell scripts; anything that is neither that nor an encoded
// command is passthrough text.
func Decode(data []byte) (api.Command, bool) {
	text := strings.TrimSpace(string(data))
	if text == "show" {
		return api.Show(), true
	}
	cmd, err := api.Decode([]byte(text))
	if err != nil {
		return api.Command{}, false
	}
	return cmd, true
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
