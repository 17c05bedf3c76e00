// Package api implements the serve sub-command.
package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/obscura-labs/obscura/api"
	cmdCommon "github.com/obscura-labs/obscura/cmd/common"
	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/config"
	"github.com/obscura-labs/obscura/delegation/remote"
	"github.com/obscura-labs/obscura/events"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/metrics"
	"github.com/obscura-labs/obscura/vault"
)

const (
	moduleName = "api"

	// DelegationMountPath is where the in-process delegation layer is served
	// when enabled.
	DelegationMountPath = "/delegation"
)

var (
	// Path to the configuration file.
	configFile string

	apiCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the vault API",
		Run:   runServer,
	}
)

func runServer(cmd *cobra.Command, args []string) {
	// Initialize config.
	cfg, err := config.InitConfig(configFile)
	if err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}

	// Initialize common environment.
	if err = cmdCommon.Init(cfg); err != nil {
		log.NewDefaultLogger("init").Error("init failed",
			"error", err,
		)
		os.Exit(1)
	}
	logger := cmdCommon.RootLogger()

	if cfg.Server == nil {
		logger.Error("server config not provided")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, err := NewService(ctx, cfg.Server, logger)
	if err != nil {
		logger.Error("service failed to start", "error", err)
		os.Exit(1)
	}
	defer service.Shutdown()

	if err = Run(ctx, service, cfg.Metrics); err != nil {
		logger.Error("service stopped", "error", err)
		os.Exit(1)
	}
}

// Run runs the API service alongside the configured metrics services until
// `ctx` is done or one of them fails.
func Run(ctx context.Context, service *Service, cfg *config.MetricsConfig) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return service.Run(ctx)
	})
	if cfg != nil {
		promServer, err := metrics.NewPullService(cfg.PullEndpoint, cmdCommon.RootLogger())
		if err != nil {
			return err
		}
		g.Go(func() error {
			return promServer.Run(ctx)
		})
		if cfg.PprofEndpoint != "" {
			g.Go(func() error {
				return cmdCommon.RunPprof(ctx, cfg.PprofEndpoint)
			})
		}
	}
	return g.Wait()
}

// Service is the vault API service.
type Service struct {
	server     *http.Server
	storage    *cmdCommon.Storage
	delegation *cmdCommon.Delegation
	logger     *log.Logger
}

// NewService creates a new API service.
func NewService(ctx context.Context, cfg *config.ServerConfig, l *log.Logger) (*Service, error) {
	logger := l.WithModule(moduleName)

	anchors, err := cfg.TrustAnchors()
	if err != nil {
		return nil, err
	}
	store, err := cmdCommon.NewStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	delegation, err := cmdCommon.NewDelegation(cfg.Delegation, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	sinks := events.Multi{
		events.NewLogSink(logger),
		events.NewMetricsSink(moduleName),
	}
	if cfg.AuditLog {
		sinks = append(sinks, events.NewAuditSink(store.Target))
	}
	controller := vault.NewController(store.Store, delegation.Service, anchors, logger, vault.WithEventSink(sinks))

	opts := api.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Mounts:         map[string]http.Handler{},
	}
	if cfg.Faucet != nil && cfg.Faucet.Enabled {
		logger.Warn("faucet enabled, do not run this configuration in production", "max_amount", cfg.Faucet.MaxAmount)
		opts.FaucetMaxAmount = cfg.Faucet.MaxAmount
	}
	if cfg.Delegation.Serve {
		opts.Mounts[DelegationMountPath] = remote.NewHandler(delegation.Local, logger)
	}

	logger.Info("initialized api service",
		"store", store.Store.Name(),
		"delegation", cfg.Delegation.Backend,
		"confidential_validator", anchors.ConfidentialValidator,
	)
	return &Service{
		server: &http.Server{
			Addr:              cfg.Endpoint,
			Handler:           api.NewVaultAPI(controller, opts, logger).Router(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		storage:    store,
		delegation: delegation,
		logger:     logger,
	}, nil
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

// Run serves the API until `ctx` is done.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting api service at " + s.server.Addr)
	return common.RunServer(ctx, s.server, s.logger)
}

// Shutdown releases the resources of the service.
func (s *Service) Shutdown() {
	s.delegation.Close()
	s.storage.Close()
}

// Register registers the serve sub-command.
func Register(parentCmd *cobra.Command) {
	apiCmd.Flags().StringVar(&configFile, "config", "./config/local-dev.yml", "path to the config.yml file")
	parentCmd.AddCommand(apiCmd)
}
