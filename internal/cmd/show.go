package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/flare/internal/api"
	"github.com/runger/flare/internal/ipc"
)

// startTimeout bounds how long show --start waits for a new daemon.
const startTimeout = 3 * time.Second

var showStart bool

var showCmd = &cobra.Command{
	Use:     "show",
	Short:   "Show the running launcher",
	GroupID: groupLauncher,
	Long: `Ask the running flare daemon to show its window.

With --start a headless daemon is spawned when none is listening; the
command is queued until a window attaches.

Examples:
  flare show
  flare show --start`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

var sendCmd = &cobra.Command{
	Use:     "send <message>",
	Short:   "Send a raw control message to the running launcher",
	GroupID: groupLauncher,
	Long: `Send a control message to the flare daemon and print its reply.

The message is either "show" or a JSON-encoded command; anything else is
logged by the daemon as passthrough text.

Examples:
  flare send show
  flare send '"ClearAwaiting"'
  flare send '{"SwitchMode":"app"}'
  flare send '{"Pipe":"one\ntwo"}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	showCmd.Flags().BoolVar(&showStart, "start", false, "spawn a daemon when none is running")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	socket := resolveSocket(cfg)

	ctx, cancel := context.WithTimeout(cmd.Context(), startTimeout+forwardTimeout)
	defer cancel()

	if showStart {
		if err := ipc.EnsureDaemon(ctx, socket, logFile(cfg), startTimeout); err != nil {
			return err
		}
	}
	ack, err := ipc.SendCommand(ctx, socket, api.Show())
	if err != nil {
		return err
	}
	if ack != "ok" {
		return fmt.Errorf("unexpected reply from daemon: %q", ack)
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), forwardTimeout)
	defer cancel()

	ack, err := ipc.Send(ctx, resolveSocket(cfg), []byte(strings.Join(args, " ")))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ack)
	return nil
}
