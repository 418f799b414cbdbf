package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate this device against the server",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			var err error
			if email == "" {
				email, err = a.io.ReadInput("Email: ")
				if err != nil {
					return fmt.Errorf("failed to read email: %w", err)
				}
			}
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("email is required")
			}

			password, err := a.io.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}

			if err := a.auth.Login(ctx, email, password, a.cfg.DeviceName); err != nil {
				return err
			}

			a.io.Printf("Logged in as %s\n", email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when omitted)")
	return cmd
}
