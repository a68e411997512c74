package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wurt83ow/netalerte-client/pkg/models"
)

// EnqueueOptions holds the report fields given as flags.
type EnqueueOptions struct {
	*RootOptions
	Report models.PendingReport
	Send   bool

	signal, lat, lon float64
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(root *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a report described by flags",
		Long: `Queue a report described by flags without touching the network.

Example:
  netalerte enqueue --operator MTN --problem "Network outage" --signal 25 --lat 3.848 --lon 11.502
  netalerte enqueue --operator Orange --problem "Call impossible" --send`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Report.Operator, "operator", "", fmt.Sprintf("operator %v", models.Operators))
	f.StringVar(&opts.Report.ProblemType, "problem", "", fmt.Sprintf("problem type %q", models.ProblemTypes))
	f.StringVar(&opts.Report.NetworkType, "network", "", "network type (2G, 3G, 4G, 5G, wifi)")
	f.Float64Var(&opts.signal, "signal", 0, "signal strength 0-100")
	f.Float64Var(&opts.lat, "lat", 0, "latitude")
	f.Float64Var(&opts.lon, "lon", 0, "longitude")
	f.StringVar(&opts.Report.Region, "region", "", "region")
	f.StringVar(&opts.Report.Description, "description", "", "free text description")
	f.BoolVar(&opts.Send, "send", false, "try to send right away, queue only on failure")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("problem")

	return cmd
}

func runEnqueue(opts *EnqueueOptions, cmd *cobra.Command) error {
	draft := opts.Report
	f := cmd.Flags()
	if f.Changed("signal") {
		draft.SignalStrength = models.Float(opts.signal)
	}
	if f.Changed("lat") {
		draft.Latitude = models.Float(opts.lat)
	}
	if f.Changed("lon") {
		draft.Longitude = models.Float(opts.lon)
	}

	if opts.Send {
		return submit(opts.RootOptions, cmd, draft)
	}

	ctx := opts.context(cmd)
	app, err := opts.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	r, err := app.Service.Enqueue(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Report %s queued (%d pending)\n", r.ID, app.Service.PendingCount(ctx))
	return nil
}
