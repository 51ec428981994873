// Package app wires configuration, storage, the cloud mirror and the user
// interfaces into one buddy process and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/buddyinbox/internal/backup"
	"github.com/dmitrijs2005/buddyinbox/internal/cli"
	"github.com/dmitrijs2005/buddyinbox/internal/cloud"
	"github.com/dmitrijs2005/buddyinbox/internal/config"
	"github.com/dmitrijs2005/buddyinbox/internal/coordinator"
	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/presence"
	"github.com/dmitrijs2005/buddyinbox/internal/web"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repo   *localstore.SQLiteRepository
	mirror cloud.Mirror
	coord  *coordinator.Coordinator
	cli    *cli.App
	web    *web.Server
}

// NewApp opens the store and the mirror and restores the last session.
// Logs go to logOut; the REPL reads in and writes out.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out, logOut io.Writer) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, logOut).With("instance", uuid.NewString())

	repo, err := localstore.OpenSQLite(ctx, c.DataPath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	store := localstore.NewStore(repo, logger)

	mirror := cloud.Open(ctx, cloud.Config{Addr: c.CloudAddr(), Password: c.RedisPassword}, logger)

	coord := coordinator.New(store, mirror, coordinator.Options{
		Logger: logger,
		Presence: presence.Options{
			HeartbeatInterval: c.HeartbeatInterval,
			OnlineThreshold:   c.OnlineThreshold,
		},
		Room:    c.Room,
		BaseURL: c.BaseURL,
	})
	if err := coord.Load(ctx); err != nil {
		coord.Close()
		_ = mirror.Close()
		_ = repo.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}

	var uploader *backup.Uploader
	if c.S3Bucket != "" {
		uploader, err = backup.NewS3Uploader(ctx, backup.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		})
		if err != nil {
			logger.Warn(ctx, "backup bucket disabled", "error", err)
			uploader = nil
		}
	}

	a := &App{config: c, logger: logger, repo: repo, mirror: mirror, coord: coord}
	if !c.Headless {
		a.cli = cli.NewApp(coord, cli.Options{
			BackupDir: c.BackupDir,
			Uploader:  uploader,
			Logger:    logger,
			In:        in,
			Out:       out,
		})
	}
	if c.HTTPAddr != "" {
		a.web = web.New(coord, logger)
	}
	return a, nil
}

// Run blocks until a signal arrives, the REPL exits, or a component
// fails. Everything is closed before it returns.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info(ctx, "Starting app...", "data", a.config.DataPath, "room", a.coord.Room())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.coord.Run(gctx, a.config.WatchInterval)
	})
	if a.web != nil {
		g.Go(func() error {
			return a.web.Serve(gctx, a.config.HTTPAddr)
		})
	}

	// The REPL blocks on input that cannot be interrupted, so it stays out
	// of the group and only cancels it.
	if a.cli != nil {
		go func() {
			a.cli.Run(gctx)
			cancel()
		}()
	}

	err := g.Wait()
	a.close(context.Background())
	return err
}

func (a *App) close(ctx context.Context) {
	if a.web != nil {
		a.web.Close()
	}
	a.coord.Close()
	if err := a.mirror.Close(); err != nil {
		a.logger.Warn(ctx, "mirror close", "error", err)
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn(ctx, "db close", "error", err)
	}
	a.logger.Info(ctx, "Stopped")
}
