package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/ipc"
	"github.com/runger/flare/internal/logging"
)

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin

// loadConfig reads --config, or the default config file.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPaths().ConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvedConfigPath is the file reloads are read from.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPaths().ConfigFile()
}

// resolveSocket picks --socket, then the config file, then the default.
func resolveSocket(cfg *config.Config) string {
	if socketPath != "" {
		return socketPath
	}
	if cfg != nil && cfg.Daemon.SocketPath != "" {
		return cfg.Daemon.SocketPath
	}
	return ipc.SocketPath()
}

func logFile(cfg *config.Config) string {
	if cfg.Daemon.LogFile != "" {
		return cfg.Daemon.LogFile
	}
	return config.DefaultPaths().LogFile()
}

// newLogger logs to the log file so the terminal UI stays clean.
func newLogger(cfg *config.Config) *zap.Logger {
	return logging.NewOrNop(logging.FileConfig(cfg.Daemon.LogLevel, logFile(cfg))).Named("flare")
}

func stdinIsTerminal() bool {
	f, ok := stdin.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// readPiped returns stdin's content when it is not a terminal. The content
// is capped at the control message size so it can be forwarded as is.
func readPiped() (string, bool, error) {
	if stdin == nil || stdinIsTerminal() {
		return "", false, nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, ipc.MaxMessage-64))
	if err != nil {
		return "", false, fmt.Errorf("failed to read stdin: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if content == "" {
		return "", false, nil
	}
	return content, true, nil
}
