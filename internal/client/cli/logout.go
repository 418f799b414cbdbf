package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.auth.Logout(ctx); err != nil {
				return err
			}
			a.io.Println("Logged out")
			return nil
		}),
	}
}
