package cli

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background sync service",
		Long: `Run the offline sync service until SIGINT or SIGTERM.

The service flushes the queue at startup, whenever connectivity comes back,
and every sync.interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(root, cmd)
		},
	}
}

func runService(root *RootOptions, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(root.context(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := root.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	log := root.Log
	log.Info().
		Str("server", root.Opt.Server.URL).
		Int("pending", app.Queue.Len(ctx)).
		Msg("starting netalerte sync service")

	// The first observation only sets the level, so take it before the
	// startup run gates on it.
	app.Probe(ctx)

	monCtx, cancelMon := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.Monitor.Run(monCtx)
	}()

	stopSync := app.Manager.Start(ctx)

	<-ctx.Done()
	log.Warn().Msg("shutdown signal received")

	stopSync()
	cancelMon()
	wg.Wait()

	log.Info().Int("pending", app.Queue.Len(context.Background())).Msg("sync service stopped cleanly")
	return nil
}
