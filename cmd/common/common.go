// Package common implements common obscura command options.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdLog "log"
	"os"

	"github.com/akrylysov/pogreb"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver for golang_migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file source for golang_migrate

	"github.com/obscura-labs/obscura/config"
	"github.com/obscura-labs/obscura/delegation/local"
	"github.com/obscura-labs/obscura/delegation/remote"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/storage"
	"github.com/obscura-labs/obscura/storage/inmemory"
	"github.com/obscura-labs/obscura/storage/postgres"
	"github.com/obscura-labs/obscura/vault"
)

var rootLogger = log.NewDefaultLogger("obscura")

// Init initializes the common environment.
func Init(cfg *config.Config) error {
	var w io.Writer = os.Stdout
	format := log.FmtJSON
	level := log.LevelDebug

	if cfg.Log != nil {
		var err error
		if w, err = getLoggingStream(cfg.Log); err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if err = format.Set(cfg.Log.Format); err != nil {
			return err
		}
		if err = level.Set(cfg.Log.Level); err != nil {
			return err
		}
	}
	logger, err := log.NewLogger("obscura", w, format, level)
	if err != nil {
		return err
	}
	rootLogger = logger

	// Initialize pogreb logging. The local delegation layer keeps its state in pogreb.
	pogreb.SetLogger(stdLog.New(log.WriterIntoLogger(RootLogger().WithModule("pogreb")), "", 0))

	return nil
}

// RootLogger returns the logger defined by logging flags.
func RootLogger() *log.Logger {
	return rootLogger
}

func getLoggingStream(cfg *config.LogConfig) (io.Writer, error) {
	if cfg == nil || cfg.File == "" {
		return os.Stdout, nil
	}
	w, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Storage is the vault store selected by configuration. Target is only set
// for database backends.
type Storage struct {
	Store  vault.Store
	Target storage.TargetStorage
}

// Close releases the database connection, if any.
func (s *Storage) Close() {
	if s.Target != nil {
		s.Target.Close()
	}
}

// NewStorage opens the configured store, wiping and migrating the database
// first when asked to.
func NewStorage(ctx context.Context, cfg *config.StorageConfig, logger *log.Logger) (*Storage, error) {
	var backend config.StorageBackend
	if err := backend.Set(cfg.Backend); err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendInMemory:
		logger.Warn("using the inmemory store, state will be lost on exit")
		return &Storage{Store: inmemory.NewStore()}, nil
	case config.BackendPostgres:
		client, err := postgres.NewClient(cfg.Endpoint, logger)
		if err != nil {
			return nil, err
		}
		if cfg.WipeStorage {
			logger.Warn("wiping storage")
			if err = client.Wipe(ctx); err != nil {
				client.Close()
				return nil, err
			}
			logger.Info("storage wiped")
		}
		if err = RunMigrations(cfg, logger); err != nil {
			client.Close()
			return nil, err
		}
		return &Storage{Store: postgres.NewVaultStore(client), Target: client}, nil
	default:
		panic(fmt.Sprintf("unsupported storage backend: %v", backend))
	}
}

// RunMigrations brings the database schema up to date.
func RunMigrations(cfg *config.StorageConfig, logger *log.Logger) error {
	m, err := migrate.New(cfg.Migrations, cfg.Endpoint)
	if err != nil {
		logger.Error("migrator failed to start",
			"error", err,
		)
		return err
	}
	defer m.Close()

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations needed to be applied")
	case err != nil:
		logger.Error("migrations failed",
			"error", err,
		)
		return err
	default:
		logger.Info("migrations completed")
	}
	return nil
}

// Delegation is the fast-execution layer selected by configuration. Local is
// only set for the in-process layer.
type Delegation struct {
	Service vault.DelegationService
	Local   *local.Service
}

// Close releases the in-process layer, if any.
func (d *Delegation) Close() {
	if d.Local == nil {
		return
	}
	if err := d.Local.Close(); err != nil {
		rootLogger.Warn("failed to close delegation layer", "err", err)
	}
}

// NewDelegation connects to the configured fast-execution layer.
func NewDelegation(cfg *config.DelegationConfig, logger *log.Logger) (*Delegation, error) {
	var backend config.DelegationBackend
	if err := backend.Set(cfg.Backend); err != nil {
		return nil, err
	}

	switch backend {
	case config.DelegationLocal:
		svc, err := local.Open(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		return &Delegation{Service: svc, Local: svc}, nil
	case config.DelegationRemote:
		return &Delegation{Service: remote.NewClient(cfg.Endpoint, cfg.RequestTimeout, logger)}, nil
	default:
		panic(fmt.Sprintf("unsupported delegation backend: %v", backend))
	}
}
