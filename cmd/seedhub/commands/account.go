package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hrustic/seedhub/internal/session"
)

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "show the authenticated user",
		Action: whoamiAction,
	}
}

func whoamiAction(ctx context.Context, cmd *cli.Command) error {
	sess, err := buildSession(ctx, cmd)
	if err != nil {
		return err
	}

	profile, err := sess.Coordinator.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, session.ErrAnonymous) {
			return fmt.Errorf("not logged in")
		}
		return fmt.Errorf("failed to fetch profile: %w", err)
	}

	fmt.Println(profile.Username)
	if profile.Email != "" {
		fmt.Printf("  email: %s\n", profile.Email)
	}
	if name := strings.TrimSpace(profile.Firstname + " " + profile.Lastname); name != "" {
		fmt.Printf("  name:  %s\n", name)
	}
	return nil
}

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "manage the SeedHub account",
		Commands: []*cli.Command{
			{
				Name:  "delete",
				Usage: "permanently delete the account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "skip the confirmation prompt",
					},
				},
				Action: accountDeleteAction,
			},
		},
	}
}

func accountDeleteAction(ctx context.Context, cmd *cli.Command) error {
	sess, err := buildSession(ctx, cmd)
	if err != nil {
		return err
	}

	if !sess.Coordinator.IsAuthenticated() {
		return fmt.Errorf("not logged in")
	}

	if !cmd.Bool("yes") {
		fmt.Print("Permanently delete this account? This cannot be undone. [y/N]: ")
		answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		if answer := strings.ToLower(strings.TrimSpace(answer)); answer != "y" && answer != "yes" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := sess.Coordinator.DeleteAccount(ctx); err != nil {
		return fmt.Errorf("account deletion failed: %w", err)
	}

	fmt.Println("Account deleted")
	return nil
}
