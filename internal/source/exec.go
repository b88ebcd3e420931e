package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/execabs"

	"github.com/runger/flare/internal/errs"
)

// Runner runs an external command and returns its stdout.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands as subprocesses. The process is killed when ctx
// ends, which is how async sources enforce their timeout.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := execabs.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, errs.New(errs.CommandExec, fmt.Sprintf("%s failed", name), msg)
	}
	return out, nil
}

// BulkTextSource shows the output of a command run with the keyword.
type BulkTextSource struct {
	exec   string
	args   []string
	runner Runner
}

// NewBulkTextSource builds a BulkTextSource; "{keyword}" in args is replaced.
func NewBulkTextSource(exec string, args []string, runner Runner) *BulkTextSource {
	return &BulkTextSource{exec: exec, args: args, runner: runner}
}

func (b *BulkTextSource) Produce(ctx context.Context, req Request) ([]Item, error) {
	args := make([]string, len(b.args))
	for i, a := range b.args {
		args[i] = strings.ReplaceAll(a, keywordPlaceholder, req.Keyword)
	}

	out, err := b.runner.Output(ctx, b.exec, args...)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, nil
	}

	title, rest, _ := strings.Cut(text, "\n")
	return []Item{{
		Title:    strings.TrimSpace(title),
		Subtitle: strings.TrimSpace(rest),
		Text:     req.Keyword,
		Exec:     text,
	}}, nil
}

// mediaFormat asks playerctl for tab-separated metadata.
const mediaFormat = "{{status}}\t{{artist}}\t{{title}}"

// MediaSource shows the currently playing track via an MPRIS controller.
type MediaSource struct {
	player string
	runner Runner
}

// NewMediaSource builds a MediaSource around a playerctl-compatible binary.
func NewMediaSource(player string, runner Runner) *MediaSource {
	if player == "" {
		player = "playerctl"
	}
	return &MediaSource{player: player, runner: runner}
}

func (m *MediaSource) Produce(ctx context.Context, _ Request) ([]Item, error) {
	out, err := m.runner.Output(ctx, m.player, "metadata", "--format", mediaFormat)
	if err != nil {
		// No player running is the common case, not a failure worth a tile.
		if errs.KindOf(err) == errs.CommandExec {
			return nil, nil
		}
		return nil, err
	}

	fields := strings.Split(strings.TrimSpace(string(out)), "\t")
	if len(fields) < 3 || fields[2] == "" {
		return nil, nil
	}
	status, artist, title := fields[0], fields[1], fields[2]
	return []Item{{
		Title:    title,
		Subtitle: strings.TrimSpace(artist + " · " + status),
		Text:     artist + " " + title,
		Exec:     m.player + " play-pause",
	}}, nil
}

// ProcessSource lists running processes so they can be terminated.
type ProcessSource struct {
	runner Runner
	self   int
}

// NewProcessSource builds a ProcessSource; the calling process is excluded.
func NewProcessSource(runner Runner) *ProcessSource {
	return &ProcessSource{runner: runner, self: os.Getpid()}
}

func (p *ProcessSource) Produce(ctx context.Context, req Request) ([]Item, error) {
	out, err := p.runner.Output(ctx, "ps", "-eo", "pid=,comm=")
	if err != nil {
		return nil, err
	}

	keyword := strings.ToLower(strings.TrimSpace(req.Keyword))
	var items []Item
	for _, line := range strings.Split(string(out), "\n") {
		pidStr, name, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(pidStr)
		if err != nil || pid == p.self {
			continue
		}
		name = strings.TrimSpace(name)
		if keyword != "" && !strings.Contains(strings.ToLower(name), keyword) {
			continue
		}
		items = append(items, Item{
			Title:    name,
			Subtitle: "pid " + pidStr,
			Exec:     pidStr,
		})
	}
	return items, nil
}
