// Package cli implements the netalerte command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/wurt83ow/netalerte-client/pkg/appcontext"
	"github.com/wurt83ow/netalerte-client/pkg/config"
	"github.com/wurt83ow/netalerte-client/pkg/logger"
)

// RootOptions holds global flags and the state they produce.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Token      string

	Opt *config.Options
	Log zerolog.Logger

	logCloser io.Closer
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "netalerte",
		Short:         "NetAlerte network problem reporter",
		Long:          "Capture network problem reports and deliver them to the NetAlerte service, queueing them while offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "ingestion service bearer token")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewEnqueueCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	v := config.NewViper()
	if err := v.BindPFlag("logging.level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
		return err
	}

	opt, err := config.Load(v, o.ConfigPath)
	if err != nil {
		return err
	}
	o.Opt = opt

	log, closer, err := logger.New(opt.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	o.Log, o.logCloser = log, closer
	return nil
}

// openApp wires the engine for a command.
func (o *RootOptions) openApp() (*App, error) {
	return NewApp(o.Opt, o.Log)
}

// context carries the --token override, which wins over server.auth_token.
func (o *RootOptions) context(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Token != "" {
		ctx = appcontext.WithAuthToken(ctx, o.Token)
	}
	return ctx
}
