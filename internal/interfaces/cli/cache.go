package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newCacheCmd manages the persisted snapshot.
func newCacheCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persisted repository snapshot",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Delete the snapshot so the next load parses from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Repo.InvalidateSnapshot(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "snapshot invalidated")
			return nil
		},
	})
	return cmd
}
