package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apiCommon "github.com/obscura-labs/obscura/api/common"
	"github.com/obscura-labs/obscura/common"
	"github.com/obscura-labs/obscura/vault"
)

// GetStatus returns the service status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	anchors := h.controller.Anchors()
	h.reply(r.Context(), w, http.StatusOK, &Status{
		Store:                 h.controller.StoreName(),
		DelegationProgram:     anchors.DelegationProgram,
		AccessControlProgram:  anchors.AccessControlProgram,
		ConfidentialValidator: anchors.ConfidentialValidator,
		FaucetEnabled:         h.faucetMax > 0,
	})
}

// CreateVault allocates a vault owned by the caller.
func (h *Handler) CreateVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFrom(ctx)
	if !ok {
		h.logAndReply(ctx, "create vault", w, apiCommon.ErrMissingCaller)
		return
	}
	var req CreateVaultRequest
	if err := decodeBody(r, &req); err != nil {
		h.logAndReply(ctx, "create vault", w, err)
		return
	}
	if req.VaultID == nil {
		h.logAndReply(ctx, "create vault", w, fmt.Errorf("%w: missing vault_id", apiCommon.ErrBadRequest))
		return
	}

	rec, err := h.controller.CreateVault(ctx, caller, *req.VaultID)
	h.replyVault(ctx, "create vault", w, http.StatusCreated, rec, err)
}

// GetVault returns a vault. Private vaults are only shown to their owner
// and to identities holding a grant.
func (h *Handler) GetVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vaultID, err := vaultIDParam(r)
	if err != nil {
		h.logAndReply(ctx, "get vault", w, err)
		return
	}
	rec, err := h.controller.Vault(ctx, vaultID)
	if err != nil {
		h.logAndReply(ctx, "get vault", w, err)
		return
	}

	reader, _ := callerFrom(ctx)
	canRead, err := h.controller.CanRead(ctx, rec, reader)
	switch {
	case err != nil:
		h.logAndReply(ctx, "get vault", w, err)
	case !canRead:
		h.logAndReply(ctx, "get vault", w, apiCommon.ErrForbidden)
	default:
		h.reply(ctx, w, http.StatusOK, newVault(rec))
	}
}

// DelegateVault hands the vault to a fast-execution validator.
func (h *Handler) DelegateVault(w http.ResponseWriter, r *http.Request) {
	var req DelegateRequest
	h.vaultOp(w, r, "delegate vault", &req, func(ctx context.Context, caller common.PublicKey, vaultID uint64) (*vault.VaultRecord, error) {
		if req.Validator.IsZero() {
			return nil, fmt.Errorf("%w: missing validator", apiCommon.ErrBadRequest)
		}
		return h.controller.DelegateVault(ctx, caller, vaultID, req.Validator)
	})
}

// CommitVaultState checkpoints a delegated vault.
func (h *Handler) CommitVaultState(w http.ResponseWriter, r *http.Request) {
	h.vaultOp(w, r, "commit vault state", nil, func(ctx context.Context, caller common.PublicKey, vaultID uint64) (*vault.VaultRecord, error) {
		return h.controller.CommitVaultState(ctx, caller, vaultID)
	})
}

// UndelegateVault commits a delegated vault and returns it to the base ledger.
func (h *Handler) UndelegateVault(w http.ResponseWriter, r *http.Request) {
	h.vaultOp(w, r, "undelegate vault", nil, func(ctx context.Context, caller common.PublicKey, vaultID uint64) (*vault.VaultRecord, error) {
		return h.controller.UndelegateVault(ctx, caller, vaultID)
	})
}

// PrivateTransfer moves vault balance to a recipient's account.
func (h *Handler) PrivateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	h.vaultOp(w, r, "private transfer", &req, func(ctx context.Context, caller common.PublicKey, vaultID uint64) (*vault.VaultRecord, error) {
		if req.Recipient.IsZero() {
			return nil, fmt.Errorf("%w: missing recipient", apiCommon.ErrBadRequest)
		}
		return h.controller.PrivateTransfer(ctx, caller, vaultID, uint64(req.Amount), req.Recipient)
	})
}

// Deposit moves native asset from the caller into the vault.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	h.vaultOp(w, r, "deposit", &req, func(ctx context.Context, caller common.PublicKey, vaultID uint64) (*vault.VaultRecord, error) {
		return h.controller.Deposit(ctx, caller, vaultID, uint64(req.Amount))
	})
}

// Withdraw moves vault balance back to the owner.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	h.vaultOp(w, r, "withdraw", &req, func(ctx context.Context, caller common.PublicKey, vaultID uint64) (*vault.VaultRecord, error) {
		return h.controller.Withdraw(ctx, caller, vaultID, uint64(req.Amount))
	})
}

// CreatePermission grants read visibility over a vault.
func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, vaultID, err := h.opParams(r)
	if err != nil {
		h.logAndReply(ctx, "create permission", w, err)
		return
	}
	var req PermissionRequest
	if err = decodeBody(r, &req); err != nil {
		h.logAndReply(ctx, "create permission", w, err)
		return
	}
	if req.Permitted.IsZero() {
		h.logAndReply(ctx, "create permission", w, fmt.Errorf("%w: missing permitted", apiCommon.ErrBadRequest))
		return
	}

	perm, err := h.controller.CreatePermission(ctx, caller, vaultID, req.Permitted)
	if err != nil {
		h.logAndReply(ctx, "create permission", w, err)
		return
	}
	h.reply(ctx, w, http.StatusCreated, newPermission(perm))
}

// ListPermissions lists the grants on a vault. Only the owner may list them.
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, vaultID, err := h.opParams(r)
	if err != nil {
		h.logAndReply(ctx, "list permissions", w, err)
		return
	}
	p, err := apiCommon.NewPagination(r)
	if err != nil {
		h.logAndReply(ctx, "list permissions", w, err)
		return
	}
	rec, err := h.controller.Vault(ctx, vaultID)
	if err != nil {
		h.logAndReply(ctx, "list permissions", w, err)
		return
	}
	if !rec.IsOwner(caller) {
		h.logAndReply(ctx, "list permissions", w, vault.ErrUnauthorized)
		return
	}

	perms, err := h.controller.Permissions(ctx, vaultID)
	if err != nil {
		h.logAndReply(ctx, "list permissions", w, err)
		return
	}
	list := PermissionList{
		Permissions: []*Permission{},
		TotalCount:  uint64(len(perms)),
	}
	for _, perm := range apiCommon.Page(p, perms) {
		list.Permissions = append(list.Permissions, newPermission(perm))
	}
	h.reply(ctx, w, http.StatusOK, &list)
}

// GetAccount returns the native balance of an identity.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := common.ParsePublicKey(chi.URLParam(r, "public_key"))
	if err != nil {
		h.logAndReply(ctx, "get account", w, fmt.Errorf("%w: %s", apiCommon.ErrBadRequest, err))
		return
	}
	balance, err := h.controller.NativeBalance(ctx, owner)
	if err != nil {
		h.logAndReply(ctx, "get account", w, err)
		return
	}
	h.reply(ctx, w, http.StatusOK, newAccount(owner, balance))
}

// Faucet airdrops native asset to a recipient on development deployments.
func (h *Handler) Faucet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.faucetMax == 0 {
		h.logAndReply(ctx, "faucet", w, apiCommon.ErrFaucetDisabled)
		return
	}
	var req FaucetRequest
	if err := decodeBody(r, &req); err != nil {
		h.logAndReply(ctx, "faucet", w, err)
		return
	}
	if req.Recipient.IsZero() || req.Amount == 0 || uint64(req.Amount) > h.faucetMax {
		h.logAndReply(ctx, "faucet", w, fmt.Errorf("%w: amount must be in (0, %d]", apiCommon.ErrBadRequest, h.faucetMax))
		return
	}

	balance, err := h.controller.Airdrop(ctx, req.Recipient, uint64(req.Amount))
	if err != nil {
		h.logAndReply(ctx, "faucet", w, err)
		return
	}
	h.reply(ctx, w, http.StatusOK, newAccount(req.Recipient, balance))
}

type vaultOpFunc func(ctx context.Context, caller common.PublicKey, vaultID uint64) (*vault.VaultRecord, error)

// vaultOp runs a caller-signed mutation of one vault. `req`, if set, is
// decoded from the body before `fn` runs.
func (h *Handler) vaultOp(w http.ResponseWriter, r *http.Request, op string, req interface{}, fn vaultOpFunc) {
	ctx := r.Context()
	caller, vaultID, err := h.opParams(r)
	if err != nil {
		h.logAndReply(ctx, op, w, err)
		return
	}
	if req != nil {
		if err = decodeBody(r, req); err != nil {
			h.logAndReply(ctx, op, w, err)
			return
		}
	}
	rec, err := fn(ctx, caller, vaultID)
	h.replyVault(ctx, op, w, http.StatusOK, rec, err)
}

func (h *Handler) opParams(r *http.Request) (common.PublicKey, uint64, error) {
	caller, ok := callerFrom(r.Context())
	if !ok {
		return caller, 0, apiCommon.ErrMissingCaller
	}
	vaultID, err := vaultIDParam(r)
	return caller, vaultID, err
}

func vaultIDParam(r *http.Request) (uint64, error) {
	vaultID, err := strconv.ParseUint(chi.URLParam(r, "vault_id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: vault_id: %s", apiCommon.ErrBadRequest, err)
	}
	return vaultID, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", apiCommon.ErrBadRequest, err)
	}
	return nil
}

// replyVault answers a vault operation. Callers that may not read the vault
// only get a receipt, so mutations never reveal more than GetVault would.
func (h *Handler) replyVault(ctx context.Context, op string, w http.ResponseWriter, status int, rec *vault.VaultRecord, err error) {
	if err != nil {
		h.logAndReply(ctx, op, w, err)
		return
	}
	caller, _ := callerFrom(ctx)
	canRead, err := h.controller.CanRead(ctx, rec, caller)
	switch {
	case err != nil:
		// The operation has committed; only the response is degraded.
		h.logger.Error(op+": read check failed",
			"request_id", ctx.Value(common.RequestIDContextKey),
			"err", err,
		)
		h.reply(ctx, w, status, newVaultReceipt(rec))
	case !canRead:
		h.reply(ctx, w, status, newVaultReceipt(rec))
	default:
		h.reply(ctx, w, status, newVault(rec))
	}
}

func (h *Handler) reply(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write response",
			"request_id", ctx.Value(common.RequestIDContextKey),
			"err", err,
		)
	}
}

// logAndReply logs failures that are not the client's fault and replies with
// the error.
func (h *Handler) logAndReply(ctx context.Context, op string, w http.ResponseWriter, err error) {
	if apiCommon.HttpCodeForError(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed",
			"request_id", ctx.Value(common.RequestIDContextKey),
			"err", err,
		)
	} else {
		h.logger.Debug(op+" rejected",
			"request_id", ctx.Value(common.RequestIDContextKey),
			"err", err,
		)
	}
	apiCommon.ReplyWithError(w, err)
}
