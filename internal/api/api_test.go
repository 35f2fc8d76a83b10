package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zadolzitve/internal/auth"
	"github.com/erazemk/zadolzitve/internal/db"
	"github.com/erazemk/zadolzitve/internal/model"
	"github.com/erazemk/zadolzitve/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testPassword  = "password1"

	masterPID  int64 = 1000001
	clientAPID int64 = 2000001
	clientBPID int64 = 2000002
)

type testServer struct {
	*httptest.Server
	db *sql.DB
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	server := httptest.NewServer(LoggingMiddleware(NewRouter(database, testJWTSecret)))
	t.Cleanup(server.Close)

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)

	users := []model.User{
		{PersonalID: masterPID, FirstName: "Noa", LastName: "Master", Role: model.RoleMaster},
		{PersonalID: clientAPID, FirstName: "Avi", LastName: "Cohen", Role: model.RoleClient, Palga: "1", Team: "A"},
		{PersonalID: clientBPID, FirstName: "Bar", LastName: "Levi", Role: model.RoleClient, Palga: "1", Team: "B"},
	}
	for i := range users {
		users[i].PasswordHash = hash
		_, err := store.CreateUser(context.Background(), database, &users[i])
		require.NoError(t, err)
	}

	return &testServer{Server: server, db: database}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func (s *testServer) login(t *testing.T, pid int64) string {
	t.Helper()
	var resp loginResponse
	status := s.do(t, "POST", "/api/auth/login", "", map[string]any{
		"personal_id": pid,
		"password":    testPassword,
	}, &resp)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

// do sends a JSON request and decodes the response into out when non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) createItem(t *testing.T, token, name string, total int) *model.Item {
	t.Helper()
	var item model.Item
	status := s.do(t, "POST", "/api/items", token, map[string]any{
		"name":        name,
		"category":    "optics",
		"total_count": total,
	}, &item)
	require.Equal(t, http.StatusCreated, status)
	return &item
}

// issue signs qty of itemID to clientPID through the full hold and commit flow.
func (s *testServer) issue(t *testing.T, token string, itemID, clientPID int64, qty int) model.Signing {
	t.Helper()

	var wf workflowResponse
	status := s.do(t, "POST", "/api/master/signing-access", token, map[string]any{
		"password":   testPassword,
		"client_pid": clientPID,
	}, &wf)
	require.Equal(t, http.StatusCreated, status)

	var pending []model.PendingSigning
	status = s.do(t, "POST", "/api/master/pending", token, map[string]any{
		"workflow": wf.Workflow,
		"items":    []model.HoldRequest{{ItemID: itemID, Quantity: qty}},
	}, &pending)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, pending, 1)

	var committed []model.Signing
	status = s.do(t, "POST", "/api/master/pending/commit", token, map[string]any{
		"ids": []int64{pending[0].ID},
	}, &committed)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, committed, 1)
	return committed[0]
}

func TestLoginEndpoint(t *testing.T) {
	s := setupTestServer(t)

	status := s.do(t, "POST", "/api/auth/login", "", map[string]any{
		"personal_id": masterPID,
		"password":    "wrong-password",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = s.do(t, "POST", "/api/auth/login", "", map[string]any{
		"personal_id": 9999999,
		"password":    testPassword,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	token := s.login(t, masterPID)
	var me model.User
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/auth/me", token, nil, &me))
	assert.Equal(t, masterPID, me.PersonalID)
	assert.Equal(t, model.RoleMaster, me.Role)
}

func TestRegisterRequiresCode(t *testing.T) {
	s := setupTestServer(t)

	req := map[string]any{
		"registration_code": "wrong",
		"role":              model.RoleClient,
		"personal_id":       3000001,
		"first_name":        "Dana",
		"last_name":         "Golan",
		"password":          testPassword,
		"palga":             "2",
		"team":              "C",
	}
	assert.Equal(t, http.StatusForbidden, s.do(t, "POST", "/api/auth/register", "", req, nil))

	code, err := store.GetRegistrationCode(context.Background(), s.db)
	require.NoError(t, err)
	req["registration_code"] = code

	var user model.User
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/auth/register", "", req, &user))
	assert.Equal(t, model.RoleClient, user.Role)

	// Same personal id again.
	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/auth/register", "", req, nil))

	s.login(t, 3000001)
}

func TestRoleGuards(t *testing.T) {
	s := setupTestServer(t)
	clientToken := s.login(t, clientAPID)
	masterToken := s.login(t, masterPID)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/api/master/users", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/api/master/users", "garbage", nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(t, "GET", "/api/master/users", clientToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, s.do(t, "GET", "/api/client/signings", masterToken, nil, nil))
	assert.Equal(t, http.StatusOK, s.do(t, "GET", "/api/items", clientToken, nil, nil))
}

func TestLogoutRevokesToken(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, masterPID)

	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/auth/logout", token, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(t, "GET", "/api/auth/me", token, nil, nil))
}

func TestIssueAndCreditFlow(t *testing.T) {
	s := setupTestServer(t)
	masterToken := s.login(t, masterPID)
	clientToken := s.login(t, clientAPID)

	item := s.createItem(t, masterToken, "Night vision", 5)

	// Step-up with the wrong password is refused.
	status := s.do(t, "POST", "/api/master/signing-access", masterToken, map[string]any{
		"password":   "wrong-password",
		"client_pid": clientAPID,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	signing := s.issue(t, masterToken, item.ID, clientAPID, 3)
	assert.Equal(t, clientAPID, signing.ClientPID)
	assert.Equal(t, 3, signing.Quantity)

	var got struct {
		Item         model.Item             `json:"item"`
		Distribution model.ItemDistribution `json:"distribution"`
	}
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/items/"+itoa(item.ID), masterToken, nil, &got))
	assert.Equal(t, 2, got.Item.Count)
	assert.Equal(t, 3, got.Distribution.Signed)

	var mine []model.Signing
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/client/signings", clientToken, nil, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Night vision", mine[0].ItemName)

	// Over-crediting is refused and changes nothing.
	status = s.do(t, "POST", "/api/master/credit", masterToken, map[string]any{
		"signings": []model.QuantityRequest{{ID: signing.ID, Quantity: 4}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var credited map[string]int
	status = s.do(t, "POST", "/api/master/credit", masterToken, map[string]any{
		"signings": []model.QuantityRequest{{ID: signing.ID, Quantity: 3}},
	}, &credited)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, credited["credited"])

	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/items/"+itoa(item.ID), masterToken, nil, &got))
	assert.Equal(t, 5, got.Item.Count)

	var logs []model.LogEntry
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/master/logs?action=Credit", masterToken, nil, &logs))
	assert.Len(t, logs, 1)
}

func TestPlaceOnHoldPartialFailure(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, masterPID)

	a := s.createItem(t, token, "Radio", 2)
	b := s.createItem(t, token, "Helmet", 1)

	var wf workflowResponse
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/master/signing-access", token, map[string]any{
		"password":   testPassword,
		"client_pid": clientAPID,
	}, &wf))

	var resp struct {
		Error  string                 `json:"error"`
		Placed []model.PendingSigning `json:"placed"`
	}
	status := s.do(t, "POST", "/api/master/pending", token, map[string]any{
		"workflow": wf.Workflow,
		"items": []model.HoldRequest{
			{ItemID: a.ID, Quantity: 1},
			{ItemID: b.ID, Quantity: 5},
		},
	}, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, resp.Error)
	require.Len(t, resp.Placed, 1)
	assert.Equal(t, a.ID, resp.Placed[0].ItemID)
}

func TestWorkflowIsScopedToOwner(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, masterPID)
	item := s.createItem(t, token, "Radio", 2)

	status := s.do(t, "POST", "/api/master/pending", token, map[string]any{
		"workflow": "not-a-workflow",
		"items":    []model.HoldRequest{{ItemID: item.ID, Quantity: 1}},
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// A client switch workflow cannot be used to issue items.
	clientToken := s.login(t, clientAPID)
	var wf workflowResponse
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/client/switch-access", clientToken, map[string]any{
		"password": testPassword,
		"new_pid":  clientBPID,
	}, &wf))
	status = s.do(t, "POST", "/api/master/pending", token, map[string]any{
		"workflow": wf.Workflow,
		"items":    []model.HoldRequest{{ItemID: item.ID, Quantity: 1}},
	}, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestClientSwitchFlow(t *testing.T) {
	s := setupTestServer(t)
	masterToken := s.login(t, masterPID)
	aToken := s.login(t, clientAPID)
	bToken := s.login(t, clientBPID)

	item := s.createItem(t, masterToken, "Binoculars", 4)
	signing := s.issue(t, masterToken, item.ID, clientAPID, 4)

	var wf workflowResponse
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/client/switch-access", aToken, map[string]any{
		"password": testPassword,
		"new_pid":  clientBPID,
	}, &wf))

	var filed []model.SwitchRequest
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/client/switch-requests", aToken, map[string]any{
		"workflow": wf.Workflow,
		"signings": []model.QuantityRequest{{ID: signing.ID, Quantity: 1}},
	}, &filed))
	require.Len(t, filed, 1)
	assert.Equal(t, model.SwitchPendingNewSigner, filed[0].Status)

	// Not yet visible to masters.
	var awaiting []model.SwitchRequest
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/master/switch-requests", masterToken, nil, &awaiting))
	assert.Empty(t, awaiting)

	var lists clientSwitchesResponse
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/client/switch-requests", bToken, nil, &lists))
	require.Len(t, lists.Incoming, 1)
	assert.Empty(t, lists.Outgoing)

	// The old signer cannot approve on behalf of the new one.
	status := s.do(t, "POST", "/api/client/switch-requests/approve", aToken, map[string]any{"ids": []int64{filed[0].ID}}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/client/switch-requests/approve", bToken,
		map[string]any{"ids": []int64{filed[0].ID}}, nil))

	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/master/switch-requests", masterToken, nil, &awaiting))
	require.Len(t, awaiting, 1)

	var outcomes []model.SwitchOutcome
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/master/switch-requests/approve", masterToken,
		map[string]any{"ids": []int64{filed[0].ID}}, &outcomes))
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Approved)

	var signings []model.Signing
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/master/signings?client_pid="+itoa(clientBPID), masterToken, nil, &signings))
	require.Len(t, signings, 1)
	assert.Equal(t, 1, signings[0].Quantity)

	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/client/signings", aToken, nil, &signings))
	require.Len(t, signings, 1)
	assert.Equal(t, 3, signings[0].Quantity)
}

func TestMasterSwitchFlow(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, masterPID)

	item := s.createItem(t, token, "Compass", 2)
	signing := s.issue(t, token, item.ID, clientAPID, 2)

	var wf workflowResponse
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/master/switch-access", token, map[string]any{
		"password": testPassword,
		"old_pid":  clientAPID,
		"new_pid":  clientBPID,
	}, &wf))

	var filed []model.SwitchRequest
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/master/switch-requests", token, map[string]any{
		"workflow": wf.Workflow,
		"signings": []model.QuantityRequest{{ID: signing.ID, Quantity: 2}},
	}, &filed))
	require.Len(t, filed, 1)
	assert.True(t, filed[0].MasterInitiated)

	var outcomes []model.SwitchOutcome
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/api/master/switch-requests/approve", token,
		map[string]any{"ids": []int64{filed[0].ID}}, &outcomes))
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Approved)

	var signings []model.Signing
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/master/signings?client_pid="+itoa(clientBPID), token, nil, &signings))
	require.Len(t, signings, 1)
	assert.Equal(t, signing.ID, signings[0].ID)
}

func TestKitFlow(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, masterPID)

	radio := s.createItem(t, token, "Radio", 3)

	var draft workflowResponse
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/master/kits/drafts", token, map[string]any{
		"name": "Comms kit",
	}, &draft))

	var kit model.Kit
	require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/master/kits", token, map[string]any{
		"draft": draft.Workflow,
		"items": []model.QuantityRequest{{ID: radio.ID, Quantity: 2}},
	}, &kit))
	assert.Equal(t, "Comms kit", kit.Name)

	var got kitResponse
	require.Equal(t, http.StatusOK, s.do(t, "GET", "/api/master/kits/"+itoa(kit.ID), token, nil, &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	// A non-empty kit cannot be deleted.
	assert.Equal(t, http.StatusBadRequest, s.do(t, "DELETE", "/api/master/kits/"+itoa(kit.ID), token, nil, nil))

	require.Equal(t, http.StatusNoContent, s.do(t, "DELETE", "/api/master/kit-items/"+itoa(got.Items[0].ID), token,
		map[string]any{"quantity": 2}, nil))
	assert.Equal(t, http.StatusNoContent, s.do(t, "DELETE", "/api/master/kits/"+itoa(kit.ID), token, nil, nil))
}

func TestStoreErrorMapping(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, masterPID)

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/api/items/999", token, nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/items/abc", token, nil, nil))

	item := s.createItem(t, token, "Radio", 2)
	s.issue(t, token, item.ID, clientAPID, 1)

	var resp map[string]string
	require.Equal(t, http.StatusBadRequest, s.do(t, "DELETE", "/api/items/"+itoa(item.ID), token, nil, &resp))
	assert.NotEmpty(t, resp["error"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/items", token, map[string]any{
		"name":        "Ghost",
		"total_count": 0,
	}, nil))
}

func TestExportItems(t *testing.T) {
	s := setupTestServer(t)
	token := s.login(t, masterPID)
	s.createItem(t, token, "Radio", 2)

	req, err := http.NewRequest("GET", s.URL+"/api/master/items/export", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "items_")
}
