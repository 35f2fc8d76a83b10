package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/zadolzitve/internal/auth"
	"github.com/erazemk/zadolzitve/internal/model"
	"github.com/erazemk/zadolzitve/internal/store"
)

// AuthHandler handles authentication and registration endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
}

type loginRequest struct {
	PersonalID int64  `json:"personal_id"`
	Password   string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type registerRequest struct {
	RegistrationCode string `json:"registration_code"`
	Role             string `json:"role"`
	PersonalID       int64  `json:"personal_id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	Palga            string `json:"palga"`
	Team             string `json:"team"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PersonalID == 0 || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "personal id and password required")
		return
	}

	user, err := store.GetUserByPersonalID(r.Context(), h.DB, req.PersonalID)
	if err != nil {
		storeError(w, err, "log in")
		return
	}
	if !auth.CheckPassword(user, req.Password) {
		slog.Warn("login failed", "personal_id", req.PersonalID, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.PersonalID, user.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "personal_id", user.PersonalID, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, Role: user.Role})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expires := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expires); err != nil {
		storeError(w, err, "log out")
		return
	}

	slog.Info("user logged out", "personal_id", claims.PersonalID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, GetIdentity(r.Context()).Account())
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := GetIdentity(r.Context()).Account()

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}

	if !auth.CheckPassword(user, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, hash); err != nil {
		storeError(w, err, "update password")
		return
	}

	slog.Info("user changed own password", "personal_id", user.PersonalID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Register handles POST /api/auth/register. New accounts must present the
// registration code masters hand out.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ok, err := store.CheckRegistrationCode(r.Context(), h.DB, req.RegistrationCode)
	if err != nil {
		storeError(w, err, "register")
		return
	}
	if !ok {
		slog.Warn("registration with wrong code", "personal_id", req.PersonalID, "remote", r.RemoteAddr)
		jsonError(w, http.StatusForbidden, "invalid registration code")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, &model.User{
		PersonalID:   req.PersonalID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Palga:        req.Palga,
		Team:         req.Team,
	})
	if err != nil {
		storeError(w, err, "register")
		return
	}

	slog.Info("user registered", "personal_id", user.PersonalID, "role", user.Role)
	jsonResponse(w, http.StatusCreated, user)
}
