package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/obscura-labs/obscura/delegation"
	"github.com/obscura-labs/obscura/delegation/remote"
	"github.com/obscura-labs/obscura/vault"
)

var (
	// ErrBadRequest is returned when the provided HTTP request
	// is malformed.
	ErrBadRequest = errors.New("invalid request parameters")
	// ErrMissingCaller is returned when an operation needs a caller identity
	// and the request carries none.
	ErrMissingCaller = errors.New("missing caller identity")
	// ErrForbidden is returned when the caller may not read a private vault.
	ErrForbidden = errors.New("vault is private")
	// ErrFaucetDisabled is returned by the faucet when it is not configured.
	ErrFaucetDisabled = errors.New("faucet is disabled")
)

// ErrorResponse is a JSON error. Code and Name are set for vault errors.
type ErrorResponse struct {
	Msg  string `json:"msg"`
	Code uint32 `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

// HttpCodeForError maps an operation failure to an HTTP status.
func HttpCodeForError(err error) int {
	var vErr *vault.Error
	var rErr *remote.RemoteError

	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, delegation.ErrBadValidator),
		errors.Is(err, delegation.ErrBadSeeds):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingCaller):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, vault.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, vault.ErrVaultNotFound),
		errors.Is(err, vault.ErrPermissionNotFound),
		errors.Is(err, ErrFaucetDisabled):
		return http.StatusNotFound
	case errors.Is(err, vault.ErrAccountInUse), errors.Is(err, delegation.ErrNotDelegated):
		return http.StatusConflict
	case errors.As(err, &vErr),
		errors.Is(err, vault.ErrInsufficientFunds),
		errors.Is(err, vault.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ReplyWithError replies to an HTTP request with an error
// as JSON.
func ReplyWithError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Msg: err.Error()}
	var vErr *vault.Error
	if errors.As(err, &vErr) {
		resp.Code = vErr.Code
		resp.Name = vErr.Name
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(HttpCodeForError(err))
	_ = json.NewEncoder(w).Encode(resp)
}
