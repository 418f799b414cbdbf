package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hearthside/homekeeper/internal/models"
)

func newGoalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage family goals",
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			entries, err := a.data.Goals(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.io.Println("No goals")
				return nil
			}
			for _, e := range entries {
				a.io.Printf("%s  %s%s\n", e.Entity.LocalID, e.Goal.Title, pendingMarker(ctx, a, e.Entity.LocalID))
				if e.Goal.TargetAmount > 0 {
					a.io.Printf("    progress: %.2f / %.2f\n", e.Goal.CurrentAmount, e.Goal.TargetAmount)
				}
			}
			return nil
		}),
	}

	cmd.AddCommand(
		newGoalCreateCmd(),
		newGoalDeleteCmd(),
		newGoalTasksCmd(),
		newTaskAddCmd(),
		newTaskToggleCmd(),
		newTaskDeleteCmd(),
	)
	return cmd
}

func newGoalCreateCmd() *cobra.Command {
	var (
		target  float64
		current float64
		due     string
		notes   string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a goal",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			dueDate, err := parseDateFlag(due)
			if err != nil {
				return err
			}
			entity, err := a.data.CreateGoal(ctx, models.Goal{
				Title:         args[0],
				TargetAmount:  target,
				CurrentAmount: current,
				DueDate:       dueDate,
				Notes:         notes,
			})
			if err != nil {
				return err
			}
			a.io.Printf("Created goal %s\n", entity.LocalID)
			return nil
		}),
	}

	cmd.Flags().Float64Var(&target, "target", 0, "Target amount")
	cmd.Flags().Float64Var(&current, "current", 0, "Current amount")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	return cmd
}

func newGoalDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <goal-id>",
		Short: "Delete a goal and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.data.DeleteGoal(ctx, args[0]); err != nil {
				return err
			}
			a.io.Printf("Deleted goal %s\n", args[0])
			return nil
		}),
	}
}

func newGoalTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <goal-id>",
		Short: "List the tasks of a goal",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			tasks, err := a.data.GoalTasks(ctx, args[0])
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				a.io.Println("No tasks")
				return nil
			}
			for _, e := range tasks {
				check := "[ ]"
				if e.Task.Done {
					check = "[x]"
				}
				a.io.Printf("%s %s  %s%s\n", check, e.Entity.LocalID, e.Task.Title, pendingMarker(ctx, a, e.Entity.LocalID))
			}
			return nil
		}),
	}
}

func newTaskAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task-add <goal-id> <title>",
		Short: "Add a task to a goal",
		Args:  cobra.ExactArgs(2),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			entity, err := a.data.AddGoalTask(ctx, args[0], models.GoalTask{Title: args[1]})
			if err != nil {
				return err
			}
			a.io.Printf("Added task %s\n", entity.LocalID)
			return nil
		}),
	}
}

func newTaskToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task-toggle <task-id>",
		Short: "Toggle a task done or not",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.data.ToggleGoalTask(ctx, args[0]); err != nil {
				return err
			}
			a.io.Printf("Toggled %s\n", args[0])
			return nil
		}),
	}
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task-delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.data.DeleteGoalTask(ctx, args[0]); err != nil {
				return err
			}
			a.io.Printf("Deleted task %s\n", args[0])
			return nil
		}),
	}
}
