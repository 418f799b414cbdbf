package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hearthside/homekeeper/internal/models"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Manage shopping lists",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			entries, err := a.data.ShoppingLists(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.io.Println("No shopping lists")
				return nil
			}
			for _, e := range entries {
				a.io.Printf("%s  %s%s\n", e.Entity.LocalID, e.List.Name, pendingMarker(ctx, a, e.Entity.LocalID))
				if e.List.Store != "" {
					a.io.Printf("    store: %s\n", e.List.Store)
				}
			}
			return nil
		}),
	}

	cmd.AddCommand(newListCreateCmd(), newListShowCmd(), newListDeleteCmd())
	return cmd
}

func newListCreateCmd() *cobra.Command {
	var store, notes string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a shopping list",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			entity, err := a.data.CreateShoppingList(ctx, models.ShoppingList{
				Name:  args[0],
				Store: store,
				Notes: notes,
			})
			if err != nil {
				return err
			}
			a.io.Printf("Created list %s\n", entity.LocalID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&store, "store", "", "Store the list is for")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	return cmd
}

func newListShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <list-id>",
		Short: "Show a list with its items",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			items, err := a.data.ShoppingItems(ctx, args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				a.io.Println("No items")
				return nil
			}
			for _, e := range items {
				check := "[ ]"
				if e.Item.Purchased {
					check = "[x]"
				}
				a.io.Printf("%s %s  %s%s\n", check, e.Entity.LocalID, itemLine(e.Item), pendingMarker(ctx, a, e.Entity.LocalID))
			}
			return nil
		}),
	}
}

func itemLine(item models.ShoppingItem) string {
	line := item.Name
	if item.Quantity > 0 {
		line = fmt.Sprintf("%s (%g %s)", line, item.Quantity, item.Unit)
	}
	if item.Price > 0 {
		line = fmt.Sprintf("%s ~%.2f", line, item.Price)
	}
	return line
}

func newListDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <list-id>",
		Short: "Delete a list and all its items",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.data.DeleteShoppingList(ctx, args[0]); err != nil {
				return err
			}
			a.io.Printf("Deleted list %s\n", args[0])
			return nil
		}),
	}
}

func newItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage shopping list items",
	}
	cmd.AddCommand(newItemAddCmd(), newItemToggleCmd(), newItemDeleteCmd())
	return cmd
}

func newItemAddCmd() *cobra.Command {
	var (
		quantity float64
		price    float64
		unit     string
	)

	cmd := &cobra.Command{
		Use:   "add <list-id> <name>",
		Short: "Add an item to a list",
		Args:  cobra.ExactArgs(2),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			entity, err := a.data.AddShoppingItem(ctx, args[0], models.ShoppingItem{
				Name:     args[1],
				Quantity: quantity,
				Unit:     unit,
				Price:    price,
			})
			if err != nil {
				return err
			}
			a.io.Printf("Added item %s\n", entity.LocalID)
			return nil
		}),
	}

	cmd.Flags().Float64Var(&quantity, "qty", 0, "Quantity to buy")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit for the quantity")
	cmd.Flags().Float64Var(&price, "price", 0, "Expected price")
	return cmd
}

func newItemToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <item-id>",
		Short: "Toggle an item purchased or not",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.data.ToggleShoppingItem(ctx, args[0]); err != nil {
				return err
			}
			a.io.Printf("Toggled %s\n", args[0])
			return nil
		}),
	}
}

func newItemDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.data.DeleteShoppingItem(ctx, args[0]); err != nil {
				return err
			}
			a.io.Printf("Deleted item %s\n", args[0])
			return nil
		}),
	}
}
