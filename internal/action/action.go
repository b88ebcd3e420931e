// Package action performs what an activated result item asks for, selected
// by the item's method tag.
package action

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/google/shlex"
	"go.uber.org/zap"
	"golang.org/x/sys/execabs"

	"github.com/runger/flare/internal/errs"
	"github.com/runger/flare/internal/ipc"
	"github.com/runger/flare/internal/source"
)

// Runner executes item actions. The zero value is not usable; use New.
type Runner struct {
	logger *zap.Logger
	stdout io.Writer
	reply  func() (string, bool)

	start     func(cmd *execabs.Cmd) error
	writeClip func(text string) error
	kill      func(pid int) error
	send      func(ctx context.Context, path string, msg []byte) (string, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithStdout redirects print output.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) { r.stdout = w }
}

// WithReplySocket makes print deliver to the socket returned by fn when it
// reports one.
func WithReplySocket(fn func() (string, bool)) Option {
	return func(r *Runner) { r.reply = fn }
}

// New returns a Runner acting on the real system.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger:    zap.NewNop(),
		stdout:    os.Stdout,
		reply:     func() (string, bool) { return "", false },
		start:     startDetached,
		writeClip: clipboard.WriteAll,
		kill:      terminate,
		send:      ipc.Send,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs item's action. Items of method "error" do nothing.
func (r *Runner) Run(ctx context.Context, item source.Item) error {
	log := r.logger.With(zap.String("method", item.Method), zap.String("source", item.Source))

	switch item.Method {
	case source.MethodAppLauncher, source.MethodCommand:
		log.Info("launching", zap.String("exec", item.Exec))
		return r.spawn(item.Exec)
	case source.MethodWebLauncher:
		log.Info("opening url", zap.String("url", item.Exec))
		return r.open(item.Exec)
	case source.MethodCopy:
		if err := r.writeClip(item.Exec); err != nil {
			return errs.Wrap(errs.CommandExec, "failed to write clipboard", err)
		}
		return nil
	case source.MethodKill:
		pid, err := strconv.Atoi(strings.TrimSpace(item.Exec))
		if err != nil || pid <= 0 {
			return errs.New(errs.CommandExec, "invalid pid", item.Exec)
		}
		log.Info("terminating process", zap.Int("pid", pid))
		if err := r.kill(pid); err != nil {
			return errs.Wrap(errs.CommandExec, fmt.Sprintf("failed to terminate %d", pid), err)
		}
		return nil
	case source.MethodPrint:
		return r.print(ctx, item.Exec)
	case source.MethodError, "":
		return nil
	default:
		return errs.New(errs.CommandExec, "unknown method", item.Method)
	}
}

func (r *Runner) spawn(line string) error {
	argv, err := shlex.Split(line)
	if err != nil {
		return errs.Wrap(errs.CommandExec, "failed to parse command line", err)
	}
	if len(argv) == 0 {
		return errs.New(errs.CommandExec, "empty command", line)
	}
	cmd := execabs.Command(argv[0], argv[1:]...)
	if err := r.start(cmd); err != nil {
		return errs.Wrap(errs.CommandExec, "failed to start "+argv[0], err)
	}
	return nil
}

func (r *Runner) open(url string) error {
	if url == "" {
		return errs.New(errs.CommandExec, "empty url", "")
	}
	var cmd *execabs.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = execabs.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = execabs.Command("open", url)
	default:
		cmd = execabs.Command("xdg-open", url)
	}
	if err := r.start(cmd); err != nil {
		return errs.Wrap(errs.CommandExec, "failed to open "+url, err)
	}
	return nil
}

func (r *Runner) print(ctx context.Context, text string) error {
	if path, ok := r.reply(); ok {
		if _, err := r.send(ctx, path, []byte(text)); err != nil {
			return err
		}
		return nil
	}
	if _, err := fmt.Fprintln(r.stdout, text); err != nil {
		return errs.Wrap(errs.FileWrite, "failed to print", err)
	}
	return nil
}

// startDetached starts cmd in its own session and does not wait for it.
func startDetached(cmd *execabs.Cmd) error {
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
