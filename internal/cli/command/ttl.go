package command

import "github.com/urfave/cli/v2"

func expireCommand() *cli.Command {
	return &cli.Command{
		Name:      "expire",
		Usage:     "Set a key's time to live in seconds",
		ArgsUsage: "KEY SECONDS",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 2); err != nil {
				return err
			}
			return run(c, "expire", c.Args().Get(0), c.Args().Get(1))
		},
	}
}

func ttlCommand() *cli.Command {
	return &cli.Command{
		Name:      "ttl",
		Usage:     "Get a key's remaining time to live in seconds",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 1); err != nil {
				return err
			}
			return run(c, "ttl", c.Args().Get(0))
		},
	}
}

func persistCommand() *cli.Command {
	return &cli.Command{
		Name:      "persist",
		Usage:     "Clear a key's time to live",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 1); err != nil {
				return err
			}
			return run(c, "persist", c.Args().Get(0))
		},
	}
}
