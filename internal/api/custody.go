package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/zadolzitve/internal/auth"
	"github.com/erazemk/zadolzitve/internal/metrics"
	"github.com/erazemk/zadolzitve/internal/model"
	"github.com/erazemk/zadolzitve/internal/store"
)

// CustodyHandler handles holds, signings and credits.
type CustodyHandler struct {
	DB *sql.DB
}

type signingAccessRequest struct {
	Password  string `json:"password"`
	ClientPID int64  `json:"client_pid"`
}

type workflowResponse struct {
	Workflow  string    `json:"workflow"`
	ExpiresAt time.Time `json:"expires_at"`
}

type holdRequest struct {
	Workflow    string              `json:"workflow"`
	Items       []model.HoldRequest `json:"items"`
	Description string              `json:"description"`
}

type idsRequest struct {
	IDs []int64 `json:"ids"`
}

type creditRequest struct {
	Signings []model.QuantityRequest `json:"signings"`
}

// SigningAccess handles POST /api/master/signing-access. The master re-enters
// their password and picks the client to issue to; the returned workflow
// token is passed to PlaceOnHold.
func (h *CustodyHandler) SigningAccess(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	var req signingAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !auth.CheckPassword(master, req.Password) {
		slog.Warn("signing access denied", "master", master.PersonalID)
		jsonError(w, http.StatusUnauthorized, "the given master password is incorrect")
		return
	}

	client, err := store.GetUserByPersonalID(r.Context(), h.DB, req.ClientPID)
	if err != nil {
		storeError(w, err, "start signing")
		return
	}
	if client == nil || client.Role != model.RoleClient {
		jsonError(w, http.StatusBadRequest, "a client with the given personal id doesn't exist")
		return
	}

	wf, err := store.CreateWorkflow(r.Context(), h.DB, &model.Workflow{
		OwnerPID:  master.PersonalID,
		Purpose:   model.WorkflowNewSigning,
		TargetPID: client.PersonalID,
	}, store.DefaultWorkflowTTL)
	if err != nil {
		storeError(w, err, "start signing")
		return
	}

	jsonResponse(w, http.StatusCreated, workflowResponse{Workflow: wf.ID, ExpiresAt: wf.ExpiresAt})
}

// PlaceOnHold handles POST /api/master/pending.
func (h *CustodyHandler) PlaceOnHold(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	var req holdRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		jsonError(w, http.StatusBadRequest, "no items selected")
		return
	}

	wf, err := store.GetWorkflow(r.Context(), h.DB, req.Workflow, master.PersonalID, model.WorkflowNewSigning, time.Now())
	if err != nil {
		storeError(w, err, "place items on hold")
		return
	}

	placed, err := store.PlaceOnHold(r.Context(), h.DB, master.PersonalID, wf.TargetPID, req.Items, req.Description)
	if err != nil {
		jsonResponse(w, errorStatus(err), map[string]any{
			"error":  errorMessage(err, "place items on hold"),
			"placed": emptyIfNil(placed),
		})
		return
	}

	slog.Info("items placed on hold", "master", master.PersonalID, "client", wf.TargetPID, "count", len(placed))
	jsonResponse(w, http.StatusCreated, placed)
}

// ListPending handles GET /api/master/pending. ?mine=1 limits the list to
// holds placed by the caller.
func (h *CustodyHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	var masterPID int64
	if r.URL.Query().Get("mine") == "1" {
		masterPID = GetIdentity(r.Context()).Account().PersonalID
	}

	pending, err := store.ListPending(r.Context(), h.DB, masterPID)
	if err != nil {
		storeError(w, err, "list pending signings")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(pending))
}

// ReleaseHold handles DELETE /api/master/pending/{id}.
func (h *CustodyHandler) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid pending signing id")
		return
	}

	if err := store.ReleaseHold(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "release hold")
		return
	}

	slog.Info("hold released", "pending", id, "master", GetIdentity(r.Context()).Account().PersonalID)
	w.WriteHeader(http.StatusNoContent)
}

// CommitPending handles POST /api/master/pending/commit.
func (h *CustodyHandler) CommitPending(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		jsonError(w, http.StatusBadRequest, "no pending signings selected")
		return
	}

	committed, err := store.CommitPendingBatch(r.Context(), h.DB, req.IDs)
	metrics.CustodyEvent(model.ActionNewSigning, len(committed))
	if err != nil {
		jsonResponse(w, errorStatus(err), map[string]any{
			"error":     errorMessage(err, "commit pending signings"),
			"committed": emptyIfNil(committed),
		})
		return
	}

	slog.Info("signings committed", "master", GetIdentity(r.Context()).Account().PersonalID, "count", len(committed))
	jsonResponse(w, http.StatusCreated, committed)
}

// ListSignings handles GET /api/master/signings. ?client_pid narrows the list.
func (h *CustodyHandler) ListSignings(w http.ResponseWriter, r *http.Request) {
	clientPID, ok := queryInt64(r, "client_pid")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid client_pid")
		return
	}

	signings, err := store.ListSignings(r.Context(), h.DB, clientPID)
	if err != nil {
		storeError(w, err, "list signings")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(signings))
}

// MySignings handles GET /api/client/signings.
func (h *CustodyHandler) MySignings(w http.ResponseWriter, r *http.Request) {
	client := GetIdentity(r.Context()).Account()

	signings, err := store.ListSignings(r.Context(), h.DB, client.PersonalID)
	if err != nil {
		storeError(w, err, "list signings")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(signings))
}

// Credit handles POST /api/master/credit.
func (h *CustodyHandler) Credit(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	var req creditRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Signings) == 0 {
		jsonError(w, http.StatusBadRequest, "no signings selected")
		return
	}

	n, err := store.CreditSigningBatch(r.Context(), h.DB, master.PersonalID, req.Signings)
	metrics.CustodyEvent(model.ActionCredit, n)
	if err != nil {
		jsonResponse(w, errorStatus(err), map[string]any{
			"error":    errorMessage(err, "credit signings"),
			"credited": n,
		})
		return
	}

	slog.Info("signings credited", "master", master.PersonalID, "count", n)
	jsonResponse(w, http.StatusOK, map[string]int{"credited": n})
}
