package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hearthside/homekeeper/internal/models"
)

func newAssetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage household assets",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			entries, err := a.data.Assets(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.io.Println("No assets")
				return nil
			}
			for _, e := range entries {
				a.io.Printf("%s  %s%s\n", e.Entity.LocalID, e.Asset.Name, pendingMarker(ctx, a, e.Entity.LocalID))
				if e.Asset.Category != "" {
					a.io.Printf("    category: %s\n", e.Asset.Category)
				}
				if e.Asset.Value > 0 {
					a.io.Printf("    value:    %.2f\n", e.Asset.Value)
				}
			}
			return nil
		}),
	}

	cmd.AddCommand(newAssetAddCmd(), newAssetDeleteCmd())
	return cmd
}

func newAssetAddCmd() *cobra.Command {
	var (
		value       float64
		category    string
		purchasedAt string
		notes       string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register an asset",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			purchaseDate, err := parseDateFlag(purchasedAt)
			if err != nil {
				return err
			}
			entity, err := a.data.CreateAsset(ctx, models.Asset{
				Name:        args[0],
				Category:    category,
				Value:       value,
				PurchasedAt: purchaseDate,
				Notes:       notes,
			})
			if err != nil {
				return err
			}
			a.io.Printf("Added asset %s\n", entity.LocalID)
			return nil
		}),
	}

	cmd.Flags().Float64Var(&value, "value", 0, "Estimated value")
	cmd.Flags().StringVar(&category, "category", "", "Asset category")
	cmd.Flags().StringVar(&purchasedAt, "purchased", "", "Purchase date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	return cmd
}

func newAssetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <asset-id>",
		Short: "Delete an asset",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.data.DeleteAsset(ctx, args[0]); err != nil {
				return err
			}
			a.io.Printf("Deleted asset %s\n", args[0])
			return nil
		}),
	}
}
