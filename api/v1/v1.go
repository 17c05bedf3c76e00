// Package v1 implements the version 1 vault HTTP API.
package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	apiCommon "github.com/obscura-labs/obscura/api/common"
	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/vault"
)

const (
	moduleName = "api_v1"

	// CallerHeader carries the base58 public key of the authenticated caller.
	// Signature verification happens at the gateway in front of the service.
	CallerHeader = "X-Obscura-Caller"
)

// Handler is the vault V1 API handler.
type Handler struct {
	controller *vault.Controller
	// faucetMax caps a single airdrop. Zero disables the faucet.
	faucetMax uint64
	logger    *log.Logger
}

// NewHandler creates a new V1 API handler.
func NewHandler(controller *vault.Controller, faucetMax uint64, l *log.Logger) *Handler {
	return &Handler{
		controller: controller,
		faucetMax:  faucetMax,
		logger:     l.WithModule(moduleName),
	}
}

// Name implements the APIHandler interface.
func (h *Handler) Name() string {
	return moduleName
}

// RegisterRoutes implements the APIHandler interface.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Use(h.callerMiddleware)

		r.Get("/status", h.GetStatus)

		r.Route("/vaults", func(r chi.Router) {
			r.Post("/", h.CreateVault)
			r.Route("/{vault_id}", func(r chi.Router) {
				r.Get("/", h.GetVault)
				r.Post("/delegate", h.DelegateVault)
				r.Post("/commit", h.CommitVaultState)
				r.Post("/undelegate", h.UndelegateVault)
				r.Post("/transfer", h.PrivateTransfer)
				r.Post("/deposit", h.Deposit)
				r.Post("/withdraw", h.Withdraw)
				r.Post("/permissions", h.CreatePermission)
				r.Get("/permissions", h.ListPermissions)
			})
		})

		r.Get("/accounts/{public_key}", h.GetAccount)
		r.Post("/faucet", h.Faucet)
	})
}

// callerMiddleware places the caller identity, if any, into the request context.
func (h *Handler) callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(CallerHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := common.ParsePublicKey(raw)
		if err != nil || caller.IsZero() {
			apiCommon.ReplyWithError(w, fmt.Errorf("%w: %s header", apiCommon.ErrBadRequest, CallerHeader))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), common.CallerContextKey, caller)))
	})
}

// callerFrom returns the caller identity placed by callerMiddleware.
func callerFrom(ctx context.Context) (common.PublicKey, bool) {
	caller, ok := ctx.Value(common.CallerContextKey).(common.PublicKey)
	return caller, ok
}
