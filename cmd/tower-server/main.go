// Package main provides the entry point for tower-server.
//
// tower-server is the control-plane process for Nebula Tower: it manages
// the certificate authority, organization subnets, host credentials, and
// invite-based self-enrollment for an overlay mesh.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/transformerlab/nebula-tower/internal/core/service"
	"github.com/transformerlab/nebula-tower/internal/infra/buildinfo"
	"github.com/transformerlab/nebula-tower/internal/infra/confloader"
	"github.com/transformerlab/nebula-tower/internal/infra/shutdown"
	"github.com/transformerlab/nebula-tower/internal/infra/tlsroots"
	"github.com/transformerlab/nebula-tower/internal/mesh"
	"github.com/transformerlab/nebula-tower/internal/server/config"
	"github.com/transformerlab/nebula-tower/internal/server/httpserver"
	"github.com/transformerlab/nebula-tower/internal/server/localserver"
	"github.com/transformerlab/nebula-tower/internal/storage"
	"github.com/transformerlab/nebula-tower/internal/storage/memory"
	"github.com/transformerlab/nebula-tower/internal/telemetry/logger"
	"github.com/transformerlab/nebula-tower/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tower-server %s\n", buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting tower-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", *configFile)

	metrics := metric.NewRegistry()

	store, closeStore, err := initStore(cfg, slogLogger, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	services, err := initServices(cfg, store)
	if err != nil {
		closeStore()
		return fmt.Errorf("init services: %w", err)
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Authority:           services.Authority,
		Organizations:       services.Organizations,
		Hosts:               services.Hosts,
		Invites:             services.Invites,
		Renderer:            services.Bundler,
		Metrics:             metrics,
		Logger:              slogLogger,
		AdminToken:          cfg.Security.AdminToken,
		EnrollRatePerMinute: cfg.Security.EnrollRatePerMinute,
		EnrollBurst:         cfg.Security.EnrollBurst,
		EnableAudit:         true,
	})

	httpServer, certWatcher, err := initServer(cfg, router, slogLogger)
	if err != nil {
		closeStore()
		return fmt.Errorf("init server: %w", err)
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	if cfg.Server.LocalSocket != "" {
		localRouter := httpserver.NewRouter(&httpserver.RouterConfig{
			Authority:           services.Authority,
			Organizations:       services.Organizations,
			Hosts:               services.Hosts,
			Invites:             services.Invites,
			Renderer:            services.Bundler,
			Metrics:             metrics,
			Logger:              slogLogger,
			DisableAuth:         true,
			EnrollRatePerMinute: cfg.Security.EnrollRatePerMinute,
			EnrollBurst:         cfg.Security.EnrollBurst,
			EnableAudit:         true,
		})
		localSrv := localserver.New(cfg.Server.LocalSocket, localRouter)

		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down local socket server")
			return localSrv.Shutdown(ctx)
		})
		go func() {
			log.Info("local socket listening", "path", localSrv.Path())
			if err := localSrv.ListenAndServe(); err != nil {
				log.Error("local socket server error", "error", err)
			}
		}()
	}
	if certWatcher != nil {
		shutdownHandler.OnShutdown(func(context.Context) error {
			certWatcher.Stop()
			return nil
		})
	}
	shutdownHandler.OnShutdown(func(context.Context) error {
		log.Info("shutting down store")
		closeStore()
		return nil
	})

	if *configFile != "" {
		watcher, err := initConfigWatcher(*configFile, slogLogger)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	tlsEnabled := cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != ""
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr, "tls", tlsEnabled)

		var err error
		if tlsEnabled {
			// Cert and key come from the watcher's GetCertificate.
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger with secret redaction.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.SetDefault(log)
	return log, logger.Slog(log), nil
}

// Repositories is the storage surface the services are built on. Both
// store backends satisfy it.
type Repositories interface {
	service.AuthorityRepository
	service.OrganizationRepository
	service.HostRepository
	service.InviteRepository
	metric.StatsSource
}

// initStore opens the configured store backend and registers its gauges.
func initStore(cfg *config.ServerConfig, log *slog.Logger, metrics *metric.Registry) (Repositories, func(), error) {
	switch cfg.Storage.Backend {
	case "memory":
		store := memory.New()
		metrics.Prometheus().MustRegister(metric.NewCollector(store))
		return store, func() {}, nil

	default: // badger
		badgerCfg := storage.DefaultBadgerConfig(cfg.Storage.DataDir)
		badgerCfg.SyncWrites = cfg.Storage.SyncWrites
		if cfg.Storage.GCInterval > 0 {
			badgerCfg.GCInterval = cfg.Storage.GCInterval
		}

		store, err := storage.NewBadgerStore(badgerCfg, log)
		if err != nil {
			return nil, nil, err
		}
		store.RegisterMetrics(metrics.Prometheus())
		metrics.Prometheus().MustRegister(metric.NewCollector(store))

		closeStore := func() {
			if err := store.Close(); err != nil {
				log.Error("store close error", "error", err)
			}
		}
		return store, closeStore, nil
	}
}

// Services holds all initialized services.
type Services struct {
	Authority     *service.AuthorityService
	Organizations *service.OrganizationService
	Hosts         *service.HostService
	Invites       *service.InviteService
	Bundler       *mesh.Bundler
}

// initServices initializes all domain services.
func initServices(cfg *config.ServerConfig, store Repositories) (*Services, error) {
	authority := service.NewAuthorityService(store, &service.AuthorityServiceConfig{
		Passphrase:   cfg.PKI.Passphrase,
		CAValidity:   cfg.PKI.CAValidity,
		HostValidity: cfg.PKI.HostValidity,
	})

	orgs, err := service.NewOrganizationService(store, &service.OrganizationServiceConfig{
		Prefix: cfg.Network.MeshPrefix,
	})
	if err != nil {
		return nil, err
	}

	bundler, err := mesh.NewBundler(mesh.Config{
		LighthouseAddr: cfg.Network.LighthouseAddr,
		ExternalAddr:   cfg.Network.ExternalAddr,
		ExternalPort:   cfg.Network.ExternalPort,
	})
	if err != nil {
		return nil, err
	}

	hosts := service.NewHostService(store, orgs, authority, bundler)
	invites := service.NewInviteService(store, orgs, hosts)

	return &Services{
		Authority:     authority,
		Organizations: orgs,
		Hosts:         hosts,
		Invites:       invites,
		Bundler:       bundler,
	}, nil
}

// initConfigWatcher re-reads the config file on change and applies the
// log level. Only the log level is hot-reloadable; everything else
// needs a restart.
func initConfigWatcher(configFile string, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		return nil, err
	}

	watcher.OnChange(func(string) {
		cfg, err := loadConfig(configFile)
		if err != nil {
			log.Warn("ignoring config change", "error", err)
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("log level applied", "level", cfg.Log.Level)
	})

	watcher.StartAsync()
	return watcher, nil
}

// initServer builds the HTTP server, with a reloading certificate watcher
// when TLS is configured.
func initServer(cfg *config.ServerConfig, router http.Handler, log *slog.Logger) (*httpserver.Server, *tlsroots.Watcher, error) {
	httpCfg := cfg.Server.HTTP
	if httpCfg.TLSCertFile == "" || httpCfg.TLSKeyFile == "" {
		return httpserver.New(httpCfg.Addr, router), nil, nil
	}

	watcher, err := tlsroots.NewWatcher(httpCfg.TLSCertFile, httpCfg.TLSKeyFile, tlsroots.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	watcher.StartAsync()

	tlsConfig := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: watcher.GetCertificate,
	}

	return httpserver.NewTLS(httpCfg.Addr, router, tlsConfig), watcher, nil
}
