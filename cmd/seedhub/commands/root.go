package commands

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "seedhub",
		Usage: "SeedHub session gateway and CLI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			registerCommand(),
			logoutCommand(),
			whoamiCommand(),
			accountCommand(),
		},
	}

	return cmd.Run(ctx, args)
}
