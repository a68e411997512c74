package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wurt83ow/netalerte-client/pkg/autosync"
	"github.com/wurt83ow/netalerte-client/pkg/batch"
	"github.com/wurt83ow/netalerte-client/pkg/bdkeeper"
	"github.com/wurt83ow/netalerte-client/pkg/config"
	"github.com/wurt83ow/netalerte-client/pkg/encription"
	"github.com/wurt83ow/netalerte-client/pkg/ingest"
	"github.com/wurt83ow/netalerte-client/pkg/netmon"
	"github.com/wurt83ow/netalerte-client/pkg/power"
	"github.com/wurt83ow/netalerte-client/pkg/services"
	"github.com/wurt83ow/netalerte-client/pkg/storage"
	"github.com/wurt83ow/netalerte-client/pkg/syncinfo"
)

// App holds the wired components shared by every command.
type App struct {
	Opt      *config.Options
	Log      zerolog.Logger
	Queue    *storage.Queue
	Monitor  *netmon.Monitor
	Prober   netmon.Prober
	Manager  *autosync.Manager
	Service  *services.Service
	SyncInfo *syncinfo.SyncManager

	closers []io.Closer
}

// NewApp opens the store and wires the sync engine from opt.
func NewApp(opt *config.Options, log zerolog.Logger) (*App, error) {
	app := &App{Opt: opt, Log: log}

	if err := os.MkdirAll(filepath.Dir(opt.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	keeper, err := bdkeeper.Open(opt.Storage.Path)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, keeper)

	queueOpts := []storage.Option{storage.WithKey(opt.Storage.QueueKey), storage.WithLogger(log)}
	if opt.Storage.Passphrase != "" {
		enc, err := encription.NewEnc(opt.Storage.Passphrase)
		if err != nil {
			app.Close()
			return nil, err
		}
		queueOpts = append(queueOpts, storage.WithCodec(enc))
	}
	app.Queue = storage.New(keeper, queueOpts...)

	httpClient := &http.Client{Timeout: opt.Server.Timeout}
	client, err := ingest.NewClient(opt.Server.URL,
		ingest.WithHTTPClient(httpClient),
		ingest.WithBearerToken(opt.Server.AuthToken),
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create ingestion client: %w", err)
	}

	app.Prober = netmon.NewHTTPProber(opt.Netmon.ProbeURL, opt.Server.Timeout)
	app.Monitor = netmon.New(app.Prober, opt.Netmon.Interval, log)

	app.SyncInfo, err = syncinfo.NewSyncManager(opt.Storage.SyncInfoPath)
	if err != nil {
		app.Close()
		return nil, err
	}

	submitter := batch.New(ingest.NewSender(client, ingest.SourceOffline), batch.Config{
		BatchSize:   opt.Sync.BatchSize,
		MaxAttempts: opt.Sync.MaxAttempts,
		BaseDelay:   opt.Sync.BaseRetryDelay,
	}, batch.WithLogger(log))

	app.Manager = autosync.New(autosync.Config{
		LowPowerThreshold: opt.Sync.LowPowerThreshold,
		Interval:          opt.Sync.Interval,
	}, app.Monitor, powerSource(opt.Power), app.Queue, submitter,
		autosync.WithLogger(log),
		autosync.WithRecorder(app.SyncInfo),
	)

	app.Service = services.NewServices(app.Queue, ingest.NewSender(client, ingest.SourceDirect), app.Monitor, app.Manager,
		services.WithLogger(log),
		services.WithLastSync(app.SyncInfo),
	)
	return app, nil
}

func powerSource(cfg config.PowerConfig) autosync.PowerSource {
	if cfg.FixedLevel >= 0 {
		return power.Fixed(cfg.FixedLevel)
	}
	return power.NewSysfs(cfg.SupplyPath)
}

// Probe takes one connectivity observation. Short-lived commands call it
// instead of running the monitor loop.
func (a *App) Probe(ctx context.Context) bool {
	online := a.Prober.Probe(ctx)
	a.Monitor.Observe(online)
	return online
}

// Close closes the store. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
