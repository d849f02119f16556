// Package command provides the CLI command definitions for lattice-cli.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/latticekv/lattice/internal/cli/client"
	"github.com/latticekv/lattice/internal/cli/output"
	"github.com/latticekv/lattice/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "lattice-cli",
		Usage:   "Lattice command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		// Exit codes are handled by main, not by os.Exit inside Run.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			getCommand(),
			setCommand(),
			delCommand(),
			keysCommand(),
			zaddCommand(),
			zscoreCommand(),
			zremCommand(),
			zqueryCommand(),
			zrankCommand(),
			expireCommand(),
			ttlCommand(),
			persistCommand(),
			rawCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Lattice server address",
			EnvVars: []string{"LATTICE_CLI_ADDR"},
			Value:   "127.0.0.1:6380",
		},
	}
}

// run sends one command to the server and prints the response. An ERR
// response exits non-zero.
func run(c *cli.Context, cmd ...string) error {
	cl, err := client.Dial(c.String("addr"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer cl.Close()

	resp, err := cl.Do(cmd...)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := output.NewFormatter(c.App.Writer).Print(resp); err != nil {
		return err
	}
	if output.IsError(resp) {
		return cli.Exit("", 1)
	}
	return nil
}

// wantArgs enforces an exact positional argument count.
func wantArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return cli.Exit(fmt.Sprintf("%s: expected %d argument(s), got %d", c.Command.Name, n, c.NArg()), 2)
	}
	return nil
}
