package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/places/pkg/api"
	"github.com/rubiojr/places/pkg/config"
	"github.com/rubiojr/places/pkg/engine"
	"github.com/rubiojr/places/pkg/log"
	"github.com/rubiojr/places/pkg/retention"
	"github.com/rubiojr/places/pkg/storage"
	"github.com/urfave/cli/v3"
)

const maintenanceInterval = time.Hour

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the places daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Override the configured listen address",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("debug") {
				log.SetGlobalDebug(true)
			}
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

func serve(ctx context.Context, configPath, listenOverride string) error {
	logger := log.ForComponent("serve")

	cfg, store, eng, err := loadEngine(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("Closing store: %v", err)
		}
	}()

	if cfg.Debug {
		log.SetGlobalDebug(true)
	}

	sweeper := newSweeper(cfg, store, eng, logger)
	sweeper.Start()
	defer func() { sweeper.Stop() }()

	maintenanceStop := make(chan struct{})
	defer close(maintenanceStop)
	go runMaintenance(store, logger, maintenanceStop)

	listenAddr := cfg.ListenAddr
	if listenOverride != "" {
		listenAddr = listenOverride
	}

	mux := http.NewServeMux()
	api.NewServer(eng).RegisterRoutes(mux)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           api.CorsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("Creating config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("Closing config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("Watching config file %s: %v", configPath, err)
		} else {
			logger.Infof("Watching config file for changes: %s", configPath)
		}
	}

	var events chan fsnotify.Event
	var watchErrs chan error
	if watcher != nil {
		events = watcher.Events
		watchErrs = watcher.Errors
	}

	for {
		select {
		case err := <-serverErr:
			return fmt.Errorf("http server: %w", err)

		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Infof("Received SIGHUP, reloading configuration")
				cfg, sweeper = reloadConfiguration(configPath, cfg, store, eng, sweeper, logger)

			case syscall.SIGINT, syscall.SIGTERM:
				logger.Infof("Shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Warnf("Shutting down http server: %v", err)
				}
				return nil
			}

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file, so watch for rename/remove
			// alongside plain writes.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(100 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("Config file removed, skipping reload")
					continue
				}
				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					if err := watcher.Add(configPath); err != nil {
						logger.Warnf("Re-adding config file to watcher: %v", err)
					}
				}
				logger.Infof("Config file changed, reloading configuration")
				cfg, sweeper = reloadConfiguration(configPath, cfg, store, eng, sweeper, logger)
			}

		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warnf("Config file watcher: %v", err)
		}
	}
}

func newSweeper(cfg *config.Config, store *storage.Store, eng *engine.Engine, logger *log.Logger) *retention.Sweeper {
	sweeper := retention.NewSweeper(retention.Config{
		MaxAge:        cfg.Retention.MaxAge.Duration,
		InitialDelay:  cfg.Retention.InitialDelay.Duration,
		SweepInterval: cfg.Retention.SweepInterval.Duration,
	}, store)
	// Sweeps only touch the store; refresh the cache afterwards so swept
	// rows stop appearing in results.
	sweeper.OnSweep(func(removed int64) {
		if err := eng.Load(); err != nil {
			logger.Errorf("Reloading cache after sweep: %v", err)
		}
	})
	return sweeper
}

// reloadConfiguration re-reads the config file and applies the debug flag
// and retention timing. Listen address changes need a restart.
func reloadConfiguration(configPath string, current *config.Config, store *storage.Store, eng *engine.Engine, sweeper *retention.Sweeper, logger *log.Logger) (*config.Config, *retention.Sweeper) {
	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Errorf("Reloading config: %v", err)
		return current, sweeper
	}

	log.SetGlobalDebug(newCfg.Debug)

	if newCfg.Retention != current.Retention {
		sweeper.Stop()
		sweeper = newSweeper(newCfg, store, eng, logger)
		sweeper.Start()
		logger.Infof("Retention settings updated")
	}

	if newCfg.ListenAddr != current.ListenAddr {
		logger.Warnf("Listen address change requires a restart")
	}

	logger.Infof("Configuration reloaded")
	return newCfg, sweeper
}

// runMaintenance optimizes the database periodically while the daemon
// runs.
func runMaintenance(store *storage.Store, logger *log.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := store.Optimize(); err != nil {
				logger.Warnf("Optimizing database: %v", err)
			}
			if err := store.WALCheckpoint(); err != nil {
				logger.Warnf("WAL checkpoint: %v", err)
			}
		case <-stop:
			return
		}
	}
}
