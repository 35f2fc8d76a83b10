package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/zadolzitve/internal/model"
	"github.com/erazemk/zadolzitve/internal/store"
)

// KitsHandler handles kit endpoints.
type KitsHandler struct {
	DB *sql.DB
}

type finalizeKitRequest struct {
	Draft       string                  `json:"draft"`
	Items       []model.QuantityRequest `json:"items"`
	Description string                  `json:"description"`
}

type kitItemsRequest struct {
	Items []model.QuantityRequest `json:"items"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type kitResponse struct {
	*model.Kit
	Items []model.KitItem `json:"items"`
}

// List handles GET /api/master/kits.
func (h *KitsHandler) List(w http.ResponseWriter, r *http.Request) {
	kits, err := store.ListKits(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "list kits")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(kits))
}

// CreateDraft handles POST /api/master/kits/drafts.
func (h *KitsHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	var req model.KitDraft
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wf, err := store.CreateKitDraft(r.Context(), h.DB, master.PersonalID, req)
	if err != nil {
		storeError(w, err, "create kit draft")
		return
	}
	jsonResponse(w, http.StatusCreated, workflowResponse{Workflow: wf.ID, ExpiresAt: wf.ExpiresAt})
}

// Finalize handles POST /api/master/kits.
func (h *KitsHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	var req finalizeKitRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kit, err := store.FinalizeKit(r.Context(), h.DB, master.PersonalID, req.Draft, req.Items, req.Description)
	if err != nil {
		storeError(w, err, "create kit")
		return
	}

	slog.Info("kit created", "kit", kit.ID, "name", kit.Name, "master", master.PersonalID)
	jsonResponse(w, http.StatusCreated, kit)
}

// Get handles GET /api/master/kits/{id}.
func (h *KitsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid kit id")
		return
	}

	kit, err := store.GetKit(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get kit")
		return
	}
	if kit == nil {
		jsonError(w, http.StatusNotFound, "kit not found")
		return
	}

	items, err := store.ListKitItems(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get kit")
		return
	}
	jsonResponse(w, http.StatusOK, kitResponse{Kit: kit, Items: emptyIfNil(items)})
}

// AddItems handles POST /api/master/kits/{id}/items.
func (h *KitsHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid kit id")
		return
	}

	var req kitItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.AddToKit(r.Context(), h.DB, master.PersonalID, id, req.Items); err != nil {
		storeError(w, err, "add items to kit")
		return
	}

	items, err := store.ListKitItems(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "add items to kit")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(items))
}

// RemoveItem handles DELETE /api/master/kit-items/{id}. The body names the
// quantity to return to the pool.
func (h *KitsHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid kit item id")
		return
	}

	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.RemoveKitItem(r.Context(), h.DB, master.PersonalID, id, req.Quantity); err != nil {
		storeError(w, err, "remove kit item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/master/kits/{id}.
func (h *KitsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	master := GetIdentity(r.Context()).Account()

	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid kit id")
		return
	}

	if err := store.DeleteKit(r.Context(), h.DB, master.PersonalID, id); err != nil {
		storeError(w, err, "delete kit")
		return
	}

	slog.Info("kit deleted", "kit", id, "master", master.PersonalID)
	w.WriteHeader(http.StatusNoContent)
}
