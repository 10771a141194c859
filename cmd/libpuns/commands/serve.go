package commands

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/MultiDragon/libpuns/internal/archive"
	"github.com/MultiDragon/libpuns/internal/controlplane"
	"github.com/MultiDragon/libpuns/internal/database"
	"github.com/MultiDragon/libpuns/internal/logger"
	"github.com/MultiDragon/libpuns/internal/serverdirector"
	"github.com/MultiDragon/libpuns/internal/telemetry"
	"github.com/MultiDragon/libpuns/pkg/config"
	"github.com/MultiDragon/libpuns/pkg/metrics"
	"github.com/MultiDragon/libpuns/pkg/registry"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the libpuns TCP director and account database",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Telemetry.Enabled,
			ServiceName: "libpuns",
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			SampleRate:  cfg.Telemetry.SampleRate,
		})
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}

	reg, err := buildDemoRegistry()
	if err != nil {
		return err
	}

	srv, err := newServerDirector(reg, db, cfg.Cache)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	var wg sync.WaitGroup

	if cfg.ControlPlane.Enabled {
		accountStore, _ := db.(*database.Store)
		cpServer, err := controlplane.NewServer(cfg.ControlPlane, cfg.Admin, srv, accountStore)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cpServer.Start(ctx); err != nil {
				logger.Error("control plane stopped with error", logger.Err(err))
			}
		}()
	}

	if cfg.Archive.Enabled {
		archiver, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			archiver.Run(ctx, srv, cfg.Archive.Interval)
		}()
	}

	logger.Info("starting libpuns server", "addr", cfg.Server.ListenAddr, "cache_driver", cfg.Cache.Driver)
	serveErr := srv.Serve(ctx, cfg.Server.ListenAddr)
	wg.Wait()
	return serveErr
}

// newServerDirector picks the snapshot cache per CacheConfig.Driver:
// the default in-process map, or a BadgerDB-backed one that survives
// a server restart.
func newServerDirector(reg *registry.Registry, db database.Interface, cacheCfg config.CacheConfig) (*serverdirector.Director, error) {
	if cacheCfg.Driver != "badger" {
		return serverdirector.New(reg, db, avatarClass), nil
	}

	cache, err := serverdirector.OpenBadgerCache(cacheCfg)
	if err != nil {
		return nil, err
	}
	return serverdirector.NewWithCache(reg, db, avatarClass, cache), nil
}

// openDatabase picks the account store per DatabaseConfig.Driver. The
// dummy driver needs no setup; sqlite/postgres open through GORM.
func openDatabase(cfg config.DatabaseConfig) (database.Interface, error) {
	if cfg.Driver == "dummy" {
		return database.NewDummy(nil), nil
	}
	return database.Open(cfg)
}
