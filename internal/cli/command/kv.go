package command

import "github.com/urfave/cli/v2"

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get the string value of a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 1); err != nil {
				return err
			}
			return run(c, "get", c.Args().Get(0))
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a key to a string value, clearing any TTL",
		ArgsUsage: "KEY VALUE",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 2); err != nil {
				return err
			}
			return run(c, "set", c.Args().Get(0), c.Args().Get(1))
		},
	}
}

func delCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "Delete a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 1); err != nil {
				return err
			}
			return run(c, "del", c.Args().Get(0))
		},
	}
}

func keysCommand() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "List all keys",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 0); err != nil {
				return err
			}
			return run(c, "keys")
		},
	}
}
