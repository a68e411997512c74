package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Flush the offline queue once and print the outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := root.context(cmd)

			app, err := root.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			app.Probe(ctx)
			out := app.Service.SyncNow(ctx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if !out.Success {
				return fmt.Errorf("sync failed: %s", out.Error)
			}
			return nil
		},
	}
}
