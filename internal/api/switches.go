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

// SwitchesHandler handles signing switch requests between clients.
type SwitchesHandler struct {
	DB *sql.DB
}

type masterSwitchAccessRequest struct {
	Password string `json:"password"`
	OldPID   int64  `json:"old_pid"`
	NewPID   int64  `json:"new_pid"`
}

type clientSwitchAccessRequest struct {
	Password string `json:"password"`
	NewPID   int64  `json:"new_pid"`
}

type fileSwitchRequest struct {
	Workflow    string                  `json:"workflow"`
	Signings    []model.QuantityRequest `json:"signings"`
	Description string                  `json:"description"`
}

type clientSwitchesResponse struct {
	Outgoing []model.SwitchRequest `json:"outgoing"`
	Incoming []model.SwitchRequest `json:"incoming"`
}

// stepUp re-checks the caller's password before a workflow is opened.
func stepUp(w http.ResponseWriter, r *http.Request, password string) (*model.User, bool) {
	user := GetIdentity(r.Context()).Account()
	if !auth.CheckPassword(user, password) {
		slog.Warn("step-up authentication failed", "personal_id", user.PersonalID, "path", r.URL.Path)
		jsonError(w, http.StatusUnauthorized, "incorrect password")
		return nil, false
	}
	return user, true
}

// requireClientPID checks that pid belongs to a client, writing a 400 if not.
func (h *SwitchesHandler) requireClientPID(w http.ResponseWriter, r *http.Request, pid int64, who string) bool {
	u, err := store.GetUserByPersonalID(r.Context(), h.DB, pid)
	if err != nil {
		storeError(w, err, "start switch")
		return false
	}
	if u == nil || u.Role != model.RoleClient {
		jsonError(w, http.StatusBadRequest, who+" must be an existing client")
		return false
	}
	return true
}

// MasterAccess handles POST /api/master/switch-access.
func (h *SwitchesHandler) MasterAccess(w http.ResponseWriter, r *http.Request) {
	var req masterSwitchAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	master, ok := stepUp(w, r, req.Password)
	if !ok {
		return
	}
	if req.OldPID == req.NewPID {
		jsonError(w, http.StatusBadRequest, "old and new signer are the same")
		return
	}
	if !h.requireClientPID(w, r, req.OldPID, "current signer") || !h.requireClientPID(w, r, req.NewPID, "new signer") {
		return
	}

	wf, err := store.CreateWorkflow(r.Context(), h.DB, &model.Workflow{
		OwnerPID:  master.PersonalID,
		Purpose:   model.WorkflowMasterSwitch,
		SourcePID: req.OldPID,
		TargetPID: req.NewPID,
	}, store.DefaultWorkflowTTL)
	if err != nil {
		storeError(w, err, "start switch")
		return
	}
	jsonResponse(w, http.StatusCreated, workflowResponse{Workflow: wf.ID, ExpiresAt: wf.ExpiresAt})
}

// MasterFile handles POST /api/master/switch-requests.
func (h *SwitchesHandler) MasterFile(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	var req fileSwitchRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Signings) == 0 {
		jsonError(w, http.StatusBadRequest, "no signings selected")
		return
	}

	wf, err := store.GetWorkflow(r.Context(), h.DB, req.Workflow, master.PersonalID, model.WorkflowMasterSwitch, time.Now())
	if err != nil {
		storeError(w, err, "file switch requests")
		return
	}

	filed, err := store.FileMasterSwitch(r.Context(), h.DB, master.PersonalID, wf.SourcePID, wf.TargetPID, req.Signings, req.Description)
	if err != nil {
		storeError(w, err, "file switch requests")
		return
	}
	if err := store.DeleteWorkflow(r.Context(), h.DB, wf.ID); err != nil {
		slog.Warn("deleting switch workflow", "workflow", wf.ID, "error", err)
	}

	slog.Info("switch requests filed", "master", master.PersonalID, "old", wf.SourcePID, "new", wf.TargetPID, "count", len(filed))
	jsonResponse(w, http.StatusCreated, filed)
}

// MasterList handles GET /api/master/switch-requests. By default only
// requests awaiting a master are listed; ?all=1 lists everything.
func (h *SwitchesHandler) MasterList(w http.ResponseWriter, r *http.Request) {
	filter := store.SwitchFilter{AwaitsMaster: r.URL.Query().Get("all") != "1"}
	requests, err := store.ListSwitchRequests(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, err, "list switch requests")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(requests))
}

// MasterApprove handles POST /api/master/switch-requests/approve.
func (h *SwitchesHandler) MasterApprove(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		jsonError(w, http.StatusBadRequest, "no switch requests selected")
		return
	}

	outcomes, err := store.ApproveSwitchRequests(r.Context(), h.DB, master.PersonalID, req.IDs)
	for _, o := range outcomes {
		switch {
		case o.Approved:
			metrics.SwitchOutcome("approved")
		case o.Status == model.SwitchImpossible:
			metrics.SwitchOutcome("impossible")
		default:
			metrics.SwitchOutcome("skipped")
		}
	}
	if err != nil {
		jsonResponse(w, errorStatus(err), map[string]any{
			"error":    errorMessage(err, "approve switch requests"),
			"outcomes": emptyIfNil(outcomes),
		})
		return
	}

	slog.Info("switch requests processed", "master", master.PersonalID, "count", len(outcomes))
	jsonResponse(w, http.StatusOK, outcomes)
}

// Reject handles POST /api/{master,client}/switch-requests/reject.
func (h *SwitchesHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor := GetIdentity(r.Context())

	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		jsonError(w, http.StatusBadRequest, "no switch requests selected")
		return
	}

	n, err := store.RejectSwitchRequests(r.Context(), h.DB, actor, req.IDs)
	for range n {
		metrics.SwitchOutcome("rejected")
	}
	if err != nil {
		jsonResponse(w, errorStatus(err), map[string]any{
			"error":    errorMessage(err, "reject switch requests"),
			"rejected": n,
		})
		return
	}

	slog.Info("switch requests rejected", "personal_id", actor.Account().PersonalID, "count", n)
	jsonResponse(w, http.StatusOK, map[string]int{"rejected": n})
}

// ClientAccess handles POST /api/client/switch-access.
func (h *SwitchesHandler) ClientAccess(w http.ResponseWriter, r *http.Request) {
	var req clientSwitchAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	client, ok := stepUp(w, r, req.Password)
	if !ok {
		return
	}
	if req.NewPID == client.PersonalID {
		jsonError(w, http.StatusBadRequest, "cannot switch signings to yourself")
		return
	}
	if !h.requireClientPID(w, r, req.NewPID, "new signer") {
		return
	}

	wf, err := store.CreateWorkflow(r.Context(), h.DB, &model.Workflow{
		OwnerPID:  client.PersonalID,
		Purpose:   model.WorkflowClientSwitch,
		SourcePID: client.PersonalID,
		TargetPID: req.NewPID,
	}, store.DefaultWorkflowTTL)
	if err != nil {
		storeError(w, err, "start switch")
		return
	}
	jsonResponse(w, http.StatusCreated, workflowResponse{Workflow: wf.ID, ExpiresAt: wf.ExpiresAt})
}

// ClientFile handles POST /api/client/switch-requests.
func (h *SwitchesHandler) ClientFile(w http.ResponseWriter, r *http.Request) {
	client := GetIdentity(r.Context()).Account()

	var req fileSwitchRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Signings) == 0 {
		jsonError(w, http.StatusBadRequest, "no signings selected")
		return
	}

	wf, err := store.GetWorkflow(r.Context(), h.DB, req.Workflow, client.PersonalID, model.WorkflowClientSwitch, time.Now())
	if err != nil {
		storeError(w, err, "file switch requests")
		return
	}

	filed, err := store.FileClientSwitch(r.Context(), h.DB, client.PersonalID, wf.TargetPID, req.Signings, req.Description)
	if err != nil {
		storeError(w, err, "file switch requests")
		return
	}
	if err := store.DeleteWorkflow(r.Context(), h.DB, wf.ID); err != nil {
		slog.Warn("deleting switch workflow", "workflow", wf.ID, "error", err)
	}

	slog.Info("switch requests filed", "client", client.PersonalID, "new", wf.TargetPID, "count", len(filed))
	jsonResponse(w, http.StatusCreated, filed)
}

// ClientList handles GET /api/client/switch-requests.
func (h *SwitchesHandler) ClientList(w http.ResponseWriter, r *http.Request) {
	client := GetIdentity(r.Context()).Account()

	outgoing, err := store.ListSwitchRequests(r.Context(), h.DB, store.SwitchFilter{OldPID: client.PersonalID})
	if err != nil {
		storeError(w, err, "list switch requests")
		return
	}
	incoming, err := store.ListSwitchRequests(r.Context(), h.DB, store.SwitchFilter{NewPID: client.PersonalID})
	if err != nil {
		storeError(w, err, "list switch requests")
		return
	}

	jsonResponse(w, http.StatusOK, clientSwitchesResponse{
		Outgoing: emptyIfNil(outgoing),
		Incoming: emptyIfNil(incoming),
	})
}

// ClientApprove handles POST /api/client/switch-requests/approve, where the
// new signer accepts requests addressed to them.
func (h *SwitchesHandler) ClientApprove(w http.ResponseWriter, r *http.Request) {
	client := GetIdentity(r.Context()).Account()

	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		jsonError(w, http.StatusBadRequest, "no switch requests selected")
		return
	}

	n, err := store.ApproveAsNewSigner(r.Context(), h.DB, client.PersonalID, req.IDs)
	if err != nil {
		jsonResponse(w, errorStatus(err), map[string]any{
			"error":    errorMessage(err, "approve switch requests"),
			"approved": n,
		})
		return
	}

	slog.Info("switch requests accepted", "client", client.PersonalID, "count", n)
	jsonResponse(w, http.StatusOK, map[string]int{"approved": n})
}
