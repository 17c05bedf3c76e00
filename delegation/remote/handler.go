package remote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obscura-labs/obscura/delegation"
	"github.com/obscura-labs/obscura/log"
	"github.com/obscura-labs/obscura/vault"
)

// NewHandler serves `svc` over the protocol spoken by Client.
func NewHandler(svc vault.DelegationService, logger *log.Logger) http.Handler {
	h := &handler{svc: svc, logger: logger.WithModule(moduleName)}
	r := chi.NewRouter()
	r.Post(delegatePath, h.delegate)
	r.Post(commitPath, h.commit)
	r.Post(commitAndUndelegatePath, h.commitAndUndelegate)
	return r
}

type handler struct {
	svc    vault.DelegationService
	logger *log.Logger
}

func (h *handler) delegate(w http.ResponseWriter, r *http.Request) {
	var body delegateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	h.respond(w, h.svc.Delegate(r.Context(), &vault.DelegateRequest{
		Owner:     body.Owner,
		Seeds:     body.Seeds,
		Validator: body.Validator,
		Account:   body.Account.snapshot(),
	}))
}

func (h *handler) commit(w http.ResponseWriter, r *http.Request) {
	var body snapshotBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	h.respond(w, h.svc.Commit(r.Context(), body.snapshot()))
}

func (h *handler) commitAndUndelegate(w http.ResponseWriter, r *http.Request) {
	var body snapshotBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	h.respond(w, h.svc.CommitAndUndelegate(r.Context(), body.snapshot()))
}

func (h *handler) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, delegation.ErrNotDelegated):
		h.fail(w, http.StatusConflict, err)
	case errors.Is(err, delegation.ErrBadSeeds), errors.Is(err, delegation.ErrBadValidator):
		h.fail(w, http.StatusBadRequest, err)
	default:
		h.fail(w, http.StatusInternalServerError, err)
	}
}

func (h *handler) fail(w http.ResponseWriter, status int, err error) {
	h.logger.Debug("delegation request failed", "status", status, "err", err)
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Msg: err.Error()})
}
