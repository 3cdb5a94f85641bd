package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hrustic/seedhub/internal/api"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "log in with a username or email",
		ArgsUsage: "<username|email>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "password",
				Usage: "password (prompted when omitted)",
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	identifier := strings.TrimSpace(cmd.Args().First())
	if identifier == "" {
		return fmt.Errorf("username or email required")
	}

	password, err := resolvePassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	// Field validation happens before any network call
	req := api.LoginRequest{Password: password}
	if strings.Contains(identifier, "@") {
		req.Email = identifier
	} else {
		req.Username = identifier
	}
	if err := validator.New().Struct(req); err != nil {
		return fmt.Errorf("invalid credentials format: %w", err)
	}

	sess, err := buildSession(ctx, cmd)
	if err != nil {
		return err
	}

	if err := sess.Coordinator.Login(ctx, identifier, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Printf("Logged in as %s\n", identifier)
	return nil
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "create a SeedHub account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Usage:    "account username",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "email",
				Usage:    "account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "password (prompted when omitted)",
			},
		},
		Action: registerAction,
	}
}

func registerAction(ctx context.Context, cmd *cli.Command) error {
	password, err := resolvePassword(cmd, "Password: ")
	if err != nil {
		return err
	}

	req := api.RegisterRequest{
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Password: password,
	}
	if err := validator.New().Struct(req); err != nil {
		return fmt.Errorf("invalid registration fields: %w", err)
	}

	sess, err := buildSession(ctx, cmd)
	if err != nil {
		return err
	}

	if err := sess.Coordinator.Register(ctx, req.Username, req.Email, req.Password); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Printf("Registered and logged in as %s\n", req.Username)
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "end the current session",
		Action: logoutAction,
	}
}

func logoutAction(ctx context.Context, cmd *cli.Command) error {
	sess, err := buildSession(ctx, cmd)
	if err != nil {
		return err
	}

	// Local state clears even when the remote call fails; report the
	// failure but don't pretend the session survived.
	if err := sess.Coordinator.Logout(ctx); err != nil {
		fmt.Println("Logged out locally (remote logout failed)")
		return err
	}

	fmt.Println("Logged out")
	return nil
}

// resolvePassword takes the --password flag or prompts on the terminal
// without echo.
func resolvePassword(cmd *cli.Command, prompt string) (string, error) {
	if password := cmd.String("password"); password != "" {
		return password, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no terminal for password prompt; pass --password")
	}

	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}
