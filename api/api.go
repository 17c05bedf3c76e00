// Package api assembles the vault HTTP API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/obscura-labs/obscura/api/v1"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/metrics"
	"github.com/obscura-labs/obscura/vault"
)

const (
	moduleName = "api"
)

// APIHandler is a handler that handles API requests.
type APIHandler interface {
	// RegisterRoutes registers routes for this API Handler
	RegisterRoutes(chi.Router)

	// Name returns the name of this API handler.
	Name() string
}

// Options configure the API router.
type Options struct {
	// FaucetMaxAmount caps a single airdrop. Zero disables the faucet.
	FaucetMaxAmount uint64
	// AllowedOrigins restricts CORS. Empty allows all origins.
	AllowedOrigins []string
	// Mounts are extra handlers served under the given path prefixes.
	Mounts map[string]http.Handler
}

// VaultAPI is the HTTP API of the vault service.
type VaultAPI struct {
	router   *chi.Mux
	handlers []APIHandler
	logger   *log.Logger
}

// NewVaultAPI creates a new vault API.
func NewVaultAPI(controller *vault.Controller, opts Options, l *log.Logger) *VaultAPI {
	logger := l.WithModule(moduleName)
	r := chi.NewRouter()

	// Metrics go outermost so they observe every request, including CORS
	// preflights and recovered panics.
	r.Use(MetricsMiddleware(metrics.NewDefaultRequestMetrics(moduleName), logger))
	r.Use(CorsMiddleware(opts.AllowedOrigins))
	r.Use(middleware.Recoverer)

	handlers := []APIHandler{
		v1.NewHandler(controller, opts.FaucetMaxAmount, l),
	}
	for _, handler := range handlers {
		handler.RegisterRoutes(r)
	}
	for prefix, h := range opts.Mounts {
		r.Mount(prefix, h)
	}

	return &VaultAPI{
		router:   r,
		handlers: handlers,
		logger:   logger,
	}
}

// Router gets the router for this API.
func (a *VaultAPI) Router() *chi.Mux {
	return a.router
}
