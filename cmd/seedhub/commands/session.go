package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hrustic/seedhub/internal/app"
	"github.com/hrustic/seedhub/internal/observability"
)

// buildSession loads configuration, installs logging, and wires the
// session stack with state loaded from durable storage. Every session
// command starts here.
func buildSession(ctx context.Context, cmd *cli.Command) (*app.Session, error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := observability.Instrument(cfg.LogLevel, string(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	sess, err := app.BuildSession(cfg)
	if err != nil {
		return nil, err
	}

	if err := sess.Bridge.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	return sess, nil
}
