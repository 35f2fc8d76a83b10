package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/zadolzitve/internal/auth"
	"github.com/erazemk/zadolzitve/internal/model"
	"github.com/erazemk/zadolzitve/internal/store"
)

// UsersHandler handles account management endpoints (masters only).
type UsersHandler struct {
	DB *sql.DB
}

type updateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Palga     string `json:"palga"`
	Team      string `json:"team"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type registrationCodeRequest struct {
	Code string `json:"code"`
}

// List handles GET /api/master/users. ?role=client narrows the list.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && !model.ValidRole(role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	users, err := store.ListUsers(r.Context(), h.DB, role)
	if err != nil {
		storeError(w, err, "list users")
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(users))
}

// Get handles GET /api/master/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/master/users/{id}.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		jsonError(w, http.StatusBadRequest, "first and last name required")
		return
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, id, req.FirstName, req.LastName, req.Email, req.Palga, req.Team); err != nil {
		storeError(w, err, "update user")
		return
	}

	slog.Info("user updated", "id", id, "by", GetIdentity(r.Context()).Account().PersonalID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user updated"})
}

// ResetPassword handles PUT /api/master/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, id, hash); err != nil {
		storeError(w, err, "reset password")
		return
	}

	slog.Info("password reset", "id", id, "by", GetIdentity(r.Context()).Account().PersonalID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// DeleteClient handles DELETE /api/master/clients/{id}.
func (h *UsersHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := store.DeleteClient(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "delete client")
		return
	}

	slog.Info("client deleted", "id", id, "by", GetIdentity(r.Context()).Account().PersonalID)
	w.WriteHeader(http.StatusNoContent)
}

// GetRegistrationCode handles GET /api/master/registration-code.
func (h *UsersHandler) GetRegistrationCode(w http.ResponseWriter, r *http.Request) {
	code, err := store.GetRegistrationCode(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "get registration code")
		return
	}
	jsonResponse(w, http.StatusOK, registrationCodeRequest{Code: code})
}

// SetRegistrationCode handles PUT /api/master/registration-code.
func (h *UsersHandler) SetRegistrationCode(w http.ResponseWriter, r *http.Request) {
	var req registrationCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := store.SetRegistrationCode(r.Context(), h.DB, req.Code); err != nil {
		storeError(w, err, "set registration code")
		return
	}

	slog.Info("registration code changed", "by", GetIdentity(r.Context()).Account().PersonalID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "registration code updated"})
}
