// Package cmd implements the flare command line.
package cmd

import (
	"github.com/spf13/cobra"
)

const (
	groupLauncher = "launcher"
	groupSetup    = "setup"
)

var (
	configPath  string
	socketPath  string
	daemonize   bool
	startMode   string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "flare",
	Short: "keyboard launcher for the terminal",
	Long: `flare - keyboard launcher for the terminal
  - type to search apps, commands, the web, the clipboard and more
  - "<alias> " switches to a single source, alt+1..5 activates a result
  - pipe text into flare to pick a line from it`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runLauncher,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: groupLauncher, Title: "Launcher Commands:"},
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
	)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/flare/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "control socket path (default $FLARE_SOCKET or the runtime dir)")

	rootCmd.Flags().BoolVarP(&daemonize, "daemonize", "d", false, "keep running and listen for commands on the control socket")
	rootCmd.Flags().StringVarP(&startMode, "mode", "m", "", "start in the mode of this alias")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (daemon only)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}
