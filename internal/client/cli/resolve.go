package cli

import (
	"context"

	"github.com/spf13/cobra"

	syncengine "github.com/hearthside/homekeeper/internal/client/sync"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "List and resolve sync conflicts",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			conflicts, err := a.engine.Conflicts(ctx)
			if err != nil {
				return err
			}
			if len(conflicts) == 0 {
				a.io.Println("No conflicts")
				return nil
			}

			for _, c := range conflicts {
				a.io.Printf("%s %s\n", c.EntityType, c.LocalID)
				a.io.Printf("  reason: %s\n", c.Note)
				a.io.Printf("  mine:   %s\n", string(c.LocalData))
				if len(c.ServerData) > 0 {
					a.io.Printf("  theirs: %s\n", string(c.ServerData))
				}
			}
			a.io.Println("\nResolve with 'homekeeper resolve keep-mine <id>' or 'homekeeper resolve take-theirs <id>'")
			return nil
		}),
	}

	cmd.AddCommand(
		newResolveChoiceCmd("keep-mine", "Keep the local edit and push it again", syncengine.KeepMine),
		newResolveChoiceCmd("take-theirs", "Adopt the server state and drop the local edit", syncengine.TakeTheirs),
	)
	return cmd
}

func newResolveChoiceCmd(use, short string, choice syncengine.Resolution) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <local-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.engine.Resolve(ctx, args[0], choice); err != nil {
				return err
			}
			a.io.Printf("Resolved %s (%s)\n", args[0], use)
			a.io.Println("Run 'homekeeper sync' to push the outcome")
			return nil
		}),
	}
}
