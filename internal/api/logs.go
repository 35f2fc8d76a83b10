package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/erazemk/zadolzitve/internal/export"
	"github.com/erazemk/zadolzitve/internal/store"
)

// LogsHandler handles the audit log and spreadsheet exports.
type LogsHandler struct {
	DB *sql.DB
}

// List handles GET /api/master/logs. ?action filters by log action.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := store.ListLogs(r.Context(), h.DB, r.URL.Query().Get("action"))
	if err != nil {
		storeError(w, err, "list logs")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(entries))
}

// ExportLogs handles GET /api/master/logs/export.
func (h *LogsHandler) ExportLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := store.ListLogs(r.Context(), h.DB, r.URL.Query().Get("action"))
	if err != nil {
		storeError(w, err, "export logs")
		return
	}
	data, err := export.Logs(entries)
	writeExport(w, "logs", data, err)
}

// ExportSignings handles GET /api/master/signings/export.
func (h *LogsHandler) ExportSignings(w http.ResponseWriter, r *http.Request) {
	clientPID, ok := queryInt64(r, "client_pid")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid client_pid")
		return
	}
	signings, err := store.ListSignings(r.Context(), h.DB, clientPID)
	if err != nil {
		storeError(w, err, "export signings")
		return
	}
	data, err := export.Signings(signings)
	writeExport(w, "signings", data, err)
}

// ExportItems handles GET /api/master/items/export.
func (h *LogsHandler) ExportItems(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB, false)
	if err != nil {
		storeError(w, err, "export items")
		return
	}
	data, err := export.Items(items)
	writeExport(w, "items", data, err)
}

func writeExport(w http.ResponseWriter, kind string, data []byte, err error) {
	if err != nil {
		storeError(w, err, "export "+kind)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(kind, time.Now())))
	w.Write(data)
}
