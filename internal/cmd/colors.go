package cmd

import (
	"os"
	"runtime"
)

// ANSI color codes for plain (non-TUI) output. Cleared in init when the
// terminal is not expected to render them.
var (
	colorRed   = "\033[0;31m"
	colorGreen = "\033[0;32m"
	colorDim   = "\033[2m"
	colorBold  = "\033[1m"
	colorReset = "\033[0m"
)

func init() {
	if shouldDisableColors() {
		colorRed = ""
		colorGreen = ""
		colorDim = ""
		colorBold = ""
		colorReset = ""
	}
}

func shouldDisableColors() bool {
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return true
	}
	if !stdoutIsTerminal() {
		return true
	}
	if runtime.GOOS == "windows" {
		// Windows Terminal and modern emulators advertise themselves.
		return os.Getenv("WT_SESSION") == "" && os.Getenv("TERM_PROGRAM") == ""
	}
	return false
}
