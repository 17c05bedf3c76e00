// Package config enables config file parsing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/vault"
)

// Config contains the CLI configuration.
type Config struct {
	Server  *ServerConfig  `koanf:"server"`
	Log     *LogConfig     `koanf:"log"`
	Metrics *MetricsConfig `koanf:"metrics"`
}

// Validate performs config validation.
func (cfg *Config) Validate() error {
	if cfg.Server != nil {
		if err := cfg.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if cfg.Log != nil {
		if err := cfg.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	if cfg.Metrics != nil {
		if err := cfg.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	return nil
}

// ServerConfig contains the vault service configuration.
type ServerConfig struct {
	// Endpoint is the service endpoint from which to serve the API.
	Endpoint string `koanf:"endpoint"`

	Storage    *StorageConfig    `koanf:"storage"`
	Delegation *DelegationConfig `koanf:"delegation"`

	// Anchors overrides the trust anchors. Unset anchors keep their defaults.
	Anchors *AnchorsConfig `koanf:"anchors"`

	// Faucet enables the development airdrop endpoint. Never set it in production.
	Faucet *FaucetConfig `koanf:"faucet"`

	// AuditLog records every committed operation in the database. Requires
	// the postgres backend.
	AuditLog bool `koanf:"audit_log"`

	// CORSAllowedOrigins lists the origins browsers may call the API from.
	// Empty allows all origins.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Validate validates the server configuration.
func (cfg *ServerConfig) Validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed server endpoint '%s'", cfg.Endpoint)
	}
	if cfg.Storage == nil {
		return fmt.Errorf("no storage config provided")
	}
	if err := cfg.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if cfg.Delegation == nil {
		return fmt.Errorf("no delegation config provided")
	}
	if err := cfg.Delegation.Validate(); err != nil {
		return fmt.Errorf("delegation: %w", err)
	}
	if _, err := cfg.TrustAnchors(); err != nil {
		return fmt.Errorf("anchors: %w", err)
	}
	if cfg.Faucet != nil {
		if err := cfg.Faucet.Validate(); err != nil {
			return fmt.Errorf("faucet: %w", err)
		}
	}
	if cfg.AuditLog && cfg.Storage.Backend != BackendPostgres.String() {
		return fmt.Errorf("audit_log requires the %s storage backend", BackendPostgres.String())
	}
	return nil
}

// TrustAnchors returns the configured trust anchors.
func (cfg *ServerConfig) TrustAnchors() (vault.TrustAnchors, error) {
	anchors := vault.DefaultTrustAnchors()
	if cfg.Anchors == nil {
		return anchors, nil
	}
	for _, a := range []struct {
		name  string
		value string
		dst   *common.PublicKey
	}{
		{"delegation_program", cfg.Anchors.DelegationProgram, &anchors.DelegationProgram},
		{"access_control_program", cfg.Anchors.AccessControlProgram, &anchors.AccessControlProgram},
		{"confidential_validator", cfg.Anchors.ConfidentialValidator, &anchors.ConfidentialValidator},
	} {
		if a.value == "" {
			continue
		}
		pk, err := common.ParsePublicKey(a.value)
		if err != nil {
			return anchors, fmt.Errorf("%s: %w", a.name, err)
		}
		*a.dst = pk
	}
	return anchors, nil
}

// StorageBackend is a storage backend.
type StorageBackend uint

const (
	// BackendPostgres is the PostgreSQL storage backend.
	BackendPostgres StorageBackend = iota
	// BackendInMemory is the in-memory storage backend.
	BackendInMemory
)

// String returns the string representation of a StorageBackend.
func (sb StorageBackend) String() string {
	switch sb {
	case BackendPostgres:
		return "postgres"
	case BackendInMemory:
		return "inmemory"
	default:
		panic("config: unsupported storage backend")
	}
}

// Set sets the StorageBackend to the value specified by the provided string.
func (sb *StorageBackend) Set(s string) error {
	switch strings.ToLower(s) {
	case "postgres":
		*sb = BackendPostgres
	case "inmemory":
		*sb = BackendInMemory
	default:
		return fmt.Errorf("config: invalid storage backend: '%s'", s)
	}

	return nil
}

// Type returns the list of supported StorageBackends.
func (sb *StorageBackend) Type() string {
	return "[postgres,inmemory]"
}

// StorageConfig contains the storage layer configuration.
type StorageConfig struct {
	// Endpoint is the storage endpoint. Unused by the inmemory backend.
	Endpoint string `koanf:"endpoint"`

	// Backend is the storage backend to select.
	Backend string `koanf:"backend"`

	// Migrations is the directory containing schema migrations.
	Migrations string `koanf:"migrations"`

	// If true, we'll first delete all tables in the DB.
	WipeStorage bool `koanf:"DANGER__WIPE_STORAGE_ON_STARTUP"`
}

// Validate validates the storage configuration.
func (cfg *StorageConfig) Validate() error {
	var sb StorageBackend
	if err := sb.Set(cfg.Backend); err != nil {
		return err
	}
	if sb == BackendInMemory {
		return nil
	}
	if cfg.Endpoint == "" {
		return fmt.Errorf("malformed storage endpoint '%s'", cfg.Endpoint)
	}
	if cfg.Migrations == "" {
		return fmt.Errorf("invalid path to migrations '%s'", cfg.Migrations)
	}
	return nil
}

// DelegationBackend selects the fast-execution layer.
type DelegationBackend uint

const (
	// DelegationLocal runs the layer in-process.
	DelegationLocal DelegationBackend = iota
	// DelegationRemote talks to a layer over HTTP.
	DelegationRemote
)

func (db DelegationBackend) String() string {
	switch db {
	case DelegationLocal:
		return "local"
	case DelegationRemote:
		return "remote"
	default:
		panic("config: unsupported delegation backend")
	}
}

// Set sets the DelegationBackend to the value specified by the provided string.
func (db *DelegationBackend) Set(s string) error {
	switch strings.ToLower(s) {
	case "local":
		*db = DelegationLocal
	case "remote":
		*db = DelegationRemote
	default:
		return fmt.Errorf("config: invalid delegation backend: '%s'", s)
	}
	return nil
}

// Type returns the list of supported DelegationBackends.
func (db *DelegationBackend) Type() string {
	return "[local,remote]"
}

// DelegationConfig configures the fast-execution layer.
type DelegationConfig struct {
	Backend string `koanf:"backend"`

	// Dir is where the local layer keeps its state.
	Dir string `koanf:"dir"`

	// Serve exposes the local layer over HTTP under /delegation, so other
	// services can use it as their remote layer.
	Serve bool `koanf:"serve"`

	// Endpoint is the URL of the remote layer.
	Endpoint string `koanf:"endpoint"`

	// RequestTimeout bounds each call to the remote layer.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Validate validates the delegation configuration.
func (cfg *DelegationConfig) Validate() error {
	var backend DelegationBackend
	if err := backend.Set(cfg.Backend); err != nil {
		return err
	}
	switch backend {
	case DelegationLocal:
		if cfg.Dir == "" {
			return fmt.Errorf("local delegation requires dir")
		}
	case DelegationRemote:
		if cfg.Endpoint == "" {
			return fmt.Errorf("remote delegation requires endpoint")
		}
		if cfg.RequestTimeout <= 0 {
			return fmt.Errorf("malformed request_timeout %s", cfg.RequestTimeout)
		}
		if cfg.Serve {
			return fmt.Errorf("serve is only supported by the local backend")
		}
	}
	return nil
}

// AnchorsConfig holds base58 overrides of the trust anchors.
type AnchorsConfig struct {
	DelegationProgram     string `koanf:"delegation_program"`
	AccessControlProgram  string `koanf:"access_control_program"`
	ConfidentialValidator string `koanf:"confidential_validator"`
}

// FaucetConfig configures the development airdrop endpoint.
type FaucetConfig struct {
	Enabled bool `koanf:"enabled"`
	// MaxAmount caps a single airdrop, in base units.
	MaxAmount uint64 `koanf:"max_amount"`
}

// Validate validates the faucet configuration.
func (cfg *FaucetConfig) Validate() error {
	if cfg.Enabled && cfg.MaxAmount == 0 {
		return fmt.Errorf("max_amount must be set when the faucet is enabled")
	}
	return nil
}

// LogConfig contains the logging configuration.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	File   string `koanf:"file"`
}

// Validate validates the logging configuration.
func (cfg *LogConfig) Validate() error {
	var format log.Format
	if err := format.Set(cfg.Format); err != nil {
		return err
	}
	var level log.Level
	return level.Set(cfg.Level)
}

// MetricsConfig contains the metrics configuration.
type MetricsConfig struct {
	PullEndpoint string `koanf:"pull_endpoint"`
	// PprofEndpoint, if set, serves runtime profiles.
	PprofEndpoint string `koanf:"pprof_endpoint"`
}

// Validate validates the metrics configuration.
func (cfg *MetricsConfig) Validate() error {
	if cfg.PullEndpoint == "" {
		return fmt.Errorf("malformed Prometheus pull endpoint '%s'", cfg.PullEndpoint)
	}
	return nil
}

// InitConfig initializes configuration from file, overlaid with environment
// variables. `__` separates levels, e.g. SERVER__STORAGE__ENDPOINT.
func InitConfig(f string) (*Config, error) {
	return initConfig(file.Provider(f), env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}))
}

func initConfig(p koanf.Provider, overlays ...koanf.Provider) (*Config, error) {
	var config Config
	k := koanf.New(".")

	// Load configuration from the yaml config.
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, err
	}

	// Merge the overlays, e.g. environment variables.
	for _, o := range overlays {
		if err := k.Load(o, nil); err != nil {
			return nil, err
		}
	}

	if err := k.Unmarshal("", &config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
