package command

import "github.com/urfave/cli/v2"

// rawCommand passes its arguments to the server verbatim, useful for
// exercising commands the CLI has no dedicated subcommand for.
func rawCommand() *cli.Command {
	return &cli.Command{
		Name:      "raw",
		Usage:     "Send a command verbatim",
		ArgsUsage: "WORD...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("raw: expected at least one argument", 2)
			}
			return run(c, c.Args().Slice()...)
		},
	}
}
