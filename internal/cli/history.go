package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tdnf-go/tdnfcore/pkg/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and replay transactions recorded in the history database",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		txns, err := session.History.List(context.Background())
		if err != nil {
			return err
		}
		for _, t := range txns {
			fmt.Printf("%d\t%s\t%s\n", t.ID, t.Cmdline, t.Type)
		}
		return nil
	},
}

var historyRollbackCmd = &cobra.Command{
	Use:   "rollback <id>",
	Short: "Roll back to the state recorded when transaction <id> completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
		}
		delta, err := session.History.Rollback(context.Background(), id)
		if err != nil {
			return err
		}
		printDelta(delta)
		return nil
	},
}

var historyUndoCmd = &cobra.Command{
	Use:   "undo <id>",
	Short: "Undo transaction <id>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
		}
		delta, err := session.History.Undo(context.Background(), id, id)
		if err != nil {
			return err
		}
		printDelta(delta)
		return nil
	},
}

var historyRedoCmd = &cobra.Command{
	Use:   "redo <id>",
	Short: "Redo transaction <id>",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
		}
		delta, err := session.History.Redo(context.Background(), id, id)
		if err != nil {
			return err
		}
		printDelta(delta)
		return nil
	},
}

func printDelta(d history.Delta) {
	for _, n := range d.Added {
		fmt.Printf("to_install: %s\n", n)
	}
	for _, n := range d.Removed {
		fmt.Printf("to_remove: %s\n", n)
	}
}

func init() {
	historyCmd.AddCommand(historyListCmd, historyRollbackCmd, historyUndoCmd, historyRedoCmd)
}
