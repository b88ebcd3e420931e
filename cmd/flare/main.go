// Package main is the entry point for the flare launcher.
package main

import (
	"fmt"
	"os"

	"github.com/runger/flare/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "flare: %v\n", err)
		os.Exit(1)
	}
}
