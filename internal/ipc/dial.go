// Package ipc is the client side of the control socket: it resolves the
// socket path and sends one message per connection to the running instance.
package ipc

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/errs"
)

const (
	// DialTimeout is the maximum time to wait for the initial connection.
	DialTimeout = 200 * time.Millisecond

	// ReplyTimeout bounds waiting for the acknowledgement.
	ReplyTimeout = 2 * time.Second

	// MaxMessage is the largest message the listener reads.
	MaxMessage = 4096
)

// SocketEnv overrides the socket path.
const SocketEnv = "FLARE_SOCKET"

// SocketPath returns the path to the control socket.
func SocketPath() string {
	if path := os.Getenv(SocketEnv); path != "" {
		return path
	}
	return config.DefaultPaths().SocketFile()
}

// SocketExists checks if a socket file exists at path.
func SocketExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Send writes msg to the socket at path, half-closes the connection and
// returns the listener's acknowledgement.
func Send(ctx context.Context, path string, msg []byte) (string, error) {
	if len(msg) > MaxMessage {
		return "", errs.New(errs.SocketWrite, "message too large", fmt.Sprintf("%d bytes, limit %d", len(msg), MaxMessage))
	}

	dctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(dctx, "unix", path)
	if err != nil {
		return "", errs.Wrap(errs.SocketConnect, "failed to connect to "+path, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(ReplyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write(msg); err != nil {
		return "", errs.Wrap(errs.SocketWrite, "failed to send message", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		_ = uc.CloseWrite()
	}

	ack, err := io.ReadAll(io.LimitReader(conn, MaxMessage))
	if err != nil {
		return "", errs.Wrap(errs.SocketConnect, "failed to read acknowledgement", err)
	}
	return string(ack), nil
}

// SendCommand encodes cmd and sends it.
func SendCommand(ctx context.Context, path string, cmd api.Command) (string, error) {
	data, err := api.Encode(cmd)
	if err != nil {
		return "", err
	}
	return Send(ctx, path, data)
}

// IsRunning reports whether an instance answers on path.
func IsRunning(path string) bool {
	if !SocketExists(path) {
		return false
	}
	conn, err := net.DialTimeout("unix", path, DialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
