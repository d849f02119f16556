package command

import "github.com/urfave/cli/v2"

func zaddCommand() *cli.Command {
	return &cli.Command{
		Name:      "zadd",
		Usage:     "Add or update a (score, name) pair in a sorted set",
		ArgsUsage: "KEY SCORE NAME",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 3); err != nil {
				return err
			}
			return run(c, "zadd", c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
		},
	}
}

func zscoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "zscore",
		Usage:     "Get the score of a name in a sorted set",
		ArgsUsage: "KEY NAME",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 2); err != nil {
				return err
			}
			return run(c, "zscore", c.Args().Get(0), c.Args().Get(1))
		},
	}
}

func zremCommand() *cli.Command {
	return &cli.Command{
		Name:      "zrem",
		Usage:     "Remove a name from a sorted set",
		ArgsUsage: "KEY NAME",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 2); err != nil {
				return err
			}
			return run(c, "zrem", c.Args().Get(0), c.Args().Get(1))
		},
	}
}

func zqueryCommand() *cli.Command {
	return &cli.Command{
		Name:      "zquery",
		Usage:     "Range-scan a sorted set from (SCORE, NAME)",
		ArgsUsage: "KEY SCORE NAME OFFSET LIMIT",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 5); err != nil {
				return err
			}
			return run(c, "zquery", c.Args().Get(0), c.Args().Get(1),
				c.Args().Get(2), c.Args().Get(3), c.Args().Get(4))
		},
	}
}

func zrankCommand() *cli.Command {
	return &cli.Command{
		Name:      "zrank",
		Usage:     "Get the 0-based rank of a name in a sorted set",
		ArgsUsage: "KEY NAME",
		Action: func(c *cli.Context) error {
			if err := wantArgs(c, 2); err != nil {
				return err
			}
			return run(c, "zrank", c.Args().Get(0), c.Args().Get(1))
		},
	}
}
