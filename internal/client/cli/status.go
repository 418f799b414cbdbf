package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthside/homekeeper/internal/client/auth"
)

const timeRounding = time.Millisecond

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication and synchronization state",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if _, err := a.auth.Token(ctx); err != nil {
				if !errors.Is(err, auth.ErrNotAuthenticated) {
					return err
				}
				a.io.Println("Authentication: not logged in")
			} else {
				a.io.Println("Authentication: logged in")
			}

			status, err := a.engine.Status(ctx)
			if err != nil {
				return err
			}

			if status.LastSyncAt.IsZero() {
				a.io.Println("Last sync:      never")
			} else {
				a.io.Printf("Last sync:      %s\n", status.LastSyncAt.Local().Format(time.RFC1123))
			}
			a.io.Printf("Pending ops:    %d\n", status.Pending)
			a.io.Printf("Conflicts:      %d\n", status.Conflicts)
			if status.LastError != "" {
				a.io.Printf("Last error:     %s\n", status.LastError)
			}
			return nil
		}),
	}
}
