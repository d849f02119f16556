// lattice-cli is the command-line client for a Lattice server.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/latticekv/lattice/internal/cli/command"
)

func main() {
	err := command.App().Run(os.Args)
	if err == nil {
		return
	}

	if msg := err.Error(); msg != "" {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		os.Exit(coder.ExitCode())
	}
	os.Exit(1)
}
