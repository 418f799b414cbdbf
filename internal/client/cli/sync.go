package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	syncengine "github.com/hearthside/homekeeper/internal/client/sync"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass against the server",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if !a.monitor.ProbeOnce(ctx) {
				return fmt.Errorf("server %s is not reachable", a.cfg.ServerURL)
			}

			result, err := a.engine.Sync(ctx)
			if err != nil {
				if errors.Is(err, syncengine.ErrSyncInProgress) {
					return fmt.Errorf("another sync is already running")
				}
				return err
			}

			a.io.Printf("Sync finished in %s\n", result.Duration.Round(timeRounding))
			a.io.Printf("  pushed:    %d\n", result.Pushed)
			a.io.Printf("  applied:   %d\n", result.Applied)
			a.io.Printf("  deleted:   %d\n", result.Deleted)
			if result.Retried > 0 {
				a.io.Printf("  retrying:  %d\n", result.Retried)
			}
			if result.Failed > 0 {
				a.io.Printf("  failed:    %d\n", result.Failed)
			}
			if result.Conflicts > 0 {
				a.io.Printf("  conflicts: %d (run 'homekeeper resolve' to inspect)\n", result.Conflicts)
			}
			return nil
		}),
	}
}
