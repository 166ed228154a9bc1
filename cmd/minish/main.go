// Package main is the entry point for the minish shell.
package main

import (
	"os"

	"github.com/runger/minish/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
