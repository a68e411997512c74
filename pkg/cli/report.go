package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wurt83ow/netalerte-client/pkg/client"
	"github.com/wurt83ow/netalerte-client/pkg/models"
	"github.com/wurt83ow/netalerte-client/pkg/services"
)

// NewReportCommand creates the interactive report command.
func NewReportCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Capture a report interactively and send or queue it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reporter, err := client.NewReporter()
			if err != nil {
				return err
			}
			defer reporter.Close()

			draft, err := reporter.CaptureReport()
			if err != nil {
				return err
			}
			return submit(root, cmd, draft)
		},
	}
}

func submit(root *RootOptions, cmd *cobra.Command, draft models.PendingReport) error {
	ctx := root.context(cmd)

	app, err := root.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	app.Probe(ctx)
	r, delivery, err := app.Service.SubmitReport(ctx, draft)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Report %s %s\n", r.ID, delivery)
	if delivery == services.Queued {
		fmt.Fprintf(out, "%d report(s) waiting for the network\n", app.Service.PendingCount(ctx))
	}
	return nil
}
