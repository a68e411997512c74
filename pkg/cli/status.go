package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Status is the machine-readable form of the status command.
type Status struct {
	Pending  int        `json:"pending"`
	LastSync *time.Time `json:"last_sync,omitempty"`
	Online   *bool      `json:"online,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(root *RootOptions) *cobra.Command {
	var asJSON, probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending reports and the last successful sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := root.context(cmd)

			app, err := root.openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			st := Status{Pending: app.Service.PendingCount(ctx)}
			if t, ok := app.Service.LastSync(); ok {
				st.LastSync = &t
			}
			if probe {
				online := app.Probe(ctx)
				st.Online = &online
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(st)
			}

			fmt.Fprintf(out, "Pending reports: %d\n", st.Pending)
			if st.LastSync != nil {
				fmt.Fprintf(out, "Last sync: %s\n", st.LastSync.Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "Last sync: never")
			}
			if st.Online != nil {
				fmt.Fprintf(out, "Online: %t\n", *st.Online)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&probe, "probe", false, "probe the service before reporting")
	return cmd
}
