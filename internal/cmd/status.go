package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/flare/internal/config"
	"github.com/runger/flare/internal/daemon"
	"github.com/runger/flare/internal/ipc"
	"github.com/runger/flare/internal/lock"
	"github.com/runger/flare/internal/source"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show flare status",
	GroupID: groupSetup,
	Long: `Show whether an instance is running, where flare keeps its files and
which sources the configuration defines.

Examples:
  flare status`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	paths := config.DefaultPaths()
	cfg, cfgErr := loadConfig()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	writeStatus(cmd.OutOrStdout(), paths, cfg, cfgErr)
	return nil
}

func writeStatus(w io.Writer, paths *config.Paths, cfg *config.Config, cfgErr error) {
	fmt.Fprintf(w, "%sflare Status%s\n", colorBold, colorReset)
	fmt.Fprintln(w, strings.Repeat("-", 40))

	fmt.Fprintf(w, "\n%sInstance:%s\n", colorBold, colorReset)
	pid, alive, err := lock.Holder(paths.LockFile())
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(w, "  Status:  %snot running%s\n", colorDim, colorReset)
	case err != nil:
		fmt.Fprintf(w, "  Status:  %sunknown%s (%v)\n", colorRed, colorReset, err)
	case !alive:
		fmt.Fprintf(w, "  Status:  %sstale lock%s (PID %d is gone)\n", colorRed, colorReset, pid)
	default:
		fmt.Fprintf(w, "  Status:  %srunning%s\n", colorGreen, colorReset)
		fmt.Fprintf(w, "  PID:     %d\n", pid)
	}
	socket := resolveSocket(cfg)
	if ipc.IsRunning(socket) {
		fmt.Fprintf(w, "  Socket:  %s (listening)\n", socket)
	} else {
		fmt.Fprintf(w, "  Socket:  %s %s(not listening)%s\n", socket, colorDim, colorReset)
	}

	runtimeDir := filepath.Dir(socket)
	if err := daemon.ValidateDirectoryPermissions(runtimeDir); err != nil {
		fmt.Fprintf(w, "  Runtime: %s %s(%v)%s\n", runtimeDir, colorRed, err, colorReset)
	} else {
		fmt.Fprintf(w, "  Runtime: %s\n", runtimeDir)
	}

	fmt.Fprintf(w, "\n%sConfiguration:%s\n", colorBold, colorReset)
	cfgFile := resolvedConfigPath()
	switch {
	case cfgErr != nil:
		fmt.Fprintf(w, "  File:    %s %s(%v)%s\n", cfgFile, colorRed, cfgErr, colorReset)
	case fileExists(cfgFile):
		fmt.Fprintf(w, "  File:    %s\n", cfgFile)
	default:
		fmt.Fprintf(w, "  File:    %s (not found, using defaults)\n", cfgFile)
	}
	fmt.Fprintf(w, "  Logs:    %s\n", logFile(cfg))

	reg := source.Load(cfg.Sources)
	defer reg.Close()
	fmt.Fprintf(w, "\n%sSources:%s\n", colorBold, colorReset)
	for _, s := range reg.Sources() {
		alias := s.Alias
		if alias == "" {
			alias = "-"
		}
		flags := ""
		if s.Async {
			flags += " async"
		}
		if s.Home {
			flags += " home"
		}
		fmt.Fprintf(w, "  %-16s alias=%-6s priority=%g%s\n", s.Name, alias, s.Priority, flags)
	}
	for _, d := range reg.Diagnostics() {
		fmt.Fprintf(w, "  %sskipped:%s %v\n", colorRed, colorReset, d)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
