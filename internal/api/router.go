package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/zadolzitve/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) *http.ServeMux {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	custodyHandler := &CustodyHandler{DB: db}
	switchesHandler := &SwitchesHandler{DB: db}
	kitsHandler := &KitsHandler{DB: db}
	logsHandler := &LogsHandler{DB: db}
	amplifiersHandler := &AmplifiersHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireMaster := RequireRole(model.RoleMaster)
	requireClient := RequireRole(model.RoleClient)

	master := func(h http.HandlerFunc) http.Handler { return authMW(requireMaster(h)) }
	client := func(h http.HandlerFunc) http.Handler { return authMW(requireClient(h)) }
	anyone := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Public: login and registration.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	// Authenticated routes.
	mux.Handle("GET /api/auth/me", anyone(authHandler.Me))
	mux.Handle("PUT /api/auth/password", anyone(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", anyone(authHandler.Logout))

	// Accounts (masters only).
	mux.Handle("GET /api/master/users", master(usersHandler.List))
	mux.Handle("GET /api/master/users/{id}", master(usersHandler.Get))
	mux.Handle("PUT /api/master/users/{id}", master(usersHandler.Update))
	mux.Handle("PUT /api/master/users/{id}/password", master(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/master/clients/{id}", master(usersHandler.DeleteClient))
	mux.Handle("GET /api/master/registration-code", master(usersHandler.GetRegistrationCode))
	mux.Handle("PUT /api/master/registration-code", master(usersHandler.SetRegistrationCode))

	// Items: read (all roles), write (masters).
	mux.Handle("GET /api/items", anyone(itemsHandler.List))
	mux.Handle("POST /api/items", master(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", anyone(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}", master(itemsHandler.Update))
	mux.Handle("DELETE /api/items/{id}", master(itemsHandler.Delete))
	mux.Handle("PUT /api/items/{id}/image", master(itemsHandler.UploadImage))
	mux.Handle("GET /api/items/{id}/image", anyone(itemsHandler.GetImage))

	// Issuing and crediting.
	mux.Handle("POST /api/master/signing-access", master(custodyHandler.SigningAccess))
	mux.Handle("GET /api/master/pending", master(custodyHandler.ListPending))
	mux.Handle("POST /api/master/pending", master(custodyHandler.PlaceOnHold))
	mux.Handle("POST /api/master/pending/commit", master(custodyHandler.CommitPending))
	mux.Handle("DELETE /api/master/pending/{id}", master(custodyHandler.ReleaseHold))
	mux.Handle("GET /api/master/signings", master(custodyHandler.ListSignings))
	mux.Handle("POST /api/master/credit", master(custodyHandler.Credit))
	mux.Handle("GET /api/client/signings", client(custodyHandler.MySignings))

	// Switch requests.
	mux.Handle("POST /api/master/switch-access", master(switchesHandler.MasterAccess))
	mux.Handle("GET /api/master/switch-requests", master(switchesHandler.MasterList))
	mux.Handle("POST /api/master/switch-requests", master(switchesHandler.MasterFile))
	mux.Handle("POST /api/master/switch-requests/approve", master(switchesHandler.MasterApprove))
	mux.Handle("POST /api/master/switch-requests/reject", master(switchesHandler.Reject))
	mux.Handle("POST /api/client/switch-access", client(switchesHandler.ClientAccess))
	mux.Handle("GET /api/client/switch-requests", client(switchesHandler.ClientList))
	mux.Handle("POST /api/client/switch-requests", client(switchesHandler.ClientFile))
	mux.Handle("POST /api/client/switch-requests/approve", client(switchesHandler.ClientApprove))
	mux.Handle("POST /api/client/switch-requests/reject", client(switchesHandler.Reject))

	// Kits.
	mux.Handle("GET /api/master/kits", master(kitsHandler.List))
	mux.Handle("POST /api/master/kits", master(kitsHandler.Finalize))
	mux.Handle("POST /api/master/kits/drafts", master(kitsHandler.CreateDraft))
	mux.Handle("GET /api/master/kits/{id}", master(kitsHandler.Get))
	mux.Handle("POST /api/master/kits/{id}/items", master(kitsHandler.AddItems))
	mux.Handle("DELETE /api/master/kits/{id}", master(kitsHandler.Delete))
	mux.Handle("DELETE /api/master/kit-items/{id}", master(kitsHandler.RemoveItem))

	// Audit log and exports.
	mux.Handle("GET /api/master/logs", master(logsHandler.List))
	mux.Handle("GET /api/master/logs/export", master(logsHandler.ExportLogs))
	mux.Handle("GET /api/master/signings/export", master(logsHandler.ExportSignings))
	mux.Handle("GET /api/master/items/export", master(logsHandler.ExportItems))

	// Maintenance tracking.
	mux.Handle("GET /api/master/amplifiers", master(amplifiersHandler.List))
	mux.Handle("POST /api/master/amplifiers", master(amplifiersHandler.Add))
	mux.Handle("PUT /api/master/amplifiers/{id}/results", master(amplifiersHandler.RecordResults))
	mux.Handle("PUT /api/master/amplifiers/{id}/interval", master(amplifiersHandler.SetInterval))
	mux.Handle("DELETE /api/master/amplifiers/{id}", master(amplifiersHandler.Delete))

	return mux
}
