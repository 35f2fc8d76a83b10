package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/zadolzitve/internal/store"
)

// AmplifiersHandler handles maintenance test tracking.
type AmplifiersHandler struct {
	DB *sql.DB
}

type addAmplifierRequest struct {
	ItemID       int64  `json:"item_id"`
	TestType     string `json:"test_type"`
	IntervalDays int    `json:"interval_days"`
}

type amplifierResultsRequest struct {
	Results string `json:"results"`
}

type amplifierIntervalRequest struct {
	IntervalDays int `json:"interval_days"`
}

// List handles GET /api/master/amplifiers. ?due=1 lists only overdue tests.
func (h *AmplifiersHandler) List(w http.ResponseWriter, r *http.Request) {
	var dueAt *time.Time
	if r.URL.Query().Get("due") == "1" {
		now := time.Now()
		dueAt = &now
	}

	list, err := store.ListAmplifierTracking(r.Context(), h.DB, dueAt)
	if err != nil {
		storeError(w, err, "list tracking")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(list))
}

// Add handles POST /api/master/amplifiers.
func (h *AmplifiersHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addAmplifierRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := store.AddAmplifierTracking(r.Context(), h.DB, req.ItemID, req.TestType, req.IntervalDays)
	if err != nil {
		storeError(w, err, "add tracking")
		return
	}

	slog.Info("tracking added", "tracking", a.ID, "item", a.ItemID)
	jsonResponse(w, http.StatusCreated, a)
}

// RecordResults handles PUT /api/master/amplifiers/{id}/results.
func (h *AmplifiersHandler) RecordResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid tracking id")
		return
	}

	var req amplifierResultsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.RecordAmplifierResults(r.Context(), h.DB, id, req.Results); err != nil {
		storeError(w, err, "record results")
		return
	}
	h.respond(w, r, id)
}

// SetInterval handles PUT /api/master/amplifiers/{id}/interval.
func (h *AmplifiersHandler) SetInterval(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid tracking id")
		return
	}

	var req amplifierIntervalRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetAmplifierInterval(r.Context(), h.DB, id, req.IntervalDays); err != nil {
		storeError(w, err, "set interval")
		return
	}
	h.respond(w, r, id)
}

// Delete handles DELETE /api/master/amplifiers/{id}.
func (h *AmplifiersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid tracking id")
		return
	}

	if err := store.DeleteAmplifierTracking(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "delete tracking")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AmplifiersHandler) respond(w http.ResponseWriter, r *http.Request, id int64) {
	a, err := store.GetAmplifierTracking(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get tracking")
		return
	}
	jsonResponse(w, http.StatusOK, a)
}
