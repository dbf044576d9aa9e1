package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/DidNoDB/didnodb/internal/server/repository/sqlite"
	"github.com/DidNoDB/didnodb/internal/server/service"
	"github.com/DidNoDB/didnodb/internal/server/token"
)

func newTestServer(t *testing.T) (http.Handler, *service.Services) {
	t.Helper()
	repo, err := sqlite.New("file:" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	svcs := service.NewServices(repo, token.NewManager("test-secret", time.Hour))
	return NewRouter(svcs, nil, 1<<20), svcs
}

func doJSON(t *testing.T, ts http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewBuffer(b)
	} else {
		buf = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	ts.ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, ts http.Handler, username, password string) {
	t.Helper()
	rr := doJSON(t, ts, "POST", "/register", map[string]string{"username": username, "password": password}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("register %s: %d %s", username, rr.Code, rr.Body.String())
	}
}

func login(t *testing.T, ts http.Handler, username, password string) map[string]string {
	t.Helper()
	rr := doJSON(t, ts, "POST", "/login", map[string]string{"username": username, "password": password}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, rr.Code, rr.Body.String())
	}
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &tokens)
	if tokens.AccessToken == "" {
		t.Fatalf("empty access token")
	}
	return map[string]string{"Authorization": "Bearer " + tokens.AccessToken}
}

func TestIndex(t *testing.T) {
	ts, _ := newTestServer(t)
	rr := doJSON(t, ts, "GET", "/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status: %d", rr.Code)
	}
}

func TestRegisterLoginAndCRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	register(t, ts, "alice", "pass")
	authz := login(t, ts, "alice", "pass")

	// save
	rr := doJSON(t, ts, "POST", "/data", map[string]any{"data": map[string]any{"name": "widget", "qty": 3}}, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rr.Code, rr.Body.String())
	}
	var saved struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &saved)
	if saved.ID == "" {
		t.Fatalf("missing id in save response")
	}

	// get one
	rr = doJSON(t, ts, "GET", "/data/"+saved.ID, nil, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("get payload: %v", err)
	}
	if payload["name"] != "widget" || payload["qty"] != float64(3) {
		t.Fatalf("payload mismatch: %v", payload)
	}

	// list
	rr = doJSON(t, ts, "GET", "/data", nil, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	var docs map[string]json.RawMessage
	_ = json.Unmarshal(rr.Body.Bytes(), &docs)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if _, ok := docs[saved.ID]; !ok {
		t.Fatalf("document %s missing from listing", saved.ID)
	}

	// delete
	rr = doJSON(t, ts, "DELETE", "/data/"+saved.ID, nil, authz)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, ts, "GET", "/data/"+saved.ID, nil, authz)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rr.Code)
	}
	rr = doJSON(t, ts, "DELETE", "/data/"+saved.ID, nil, authz)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("double delete: %d", rr.Code)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	ts, _ := newTestServer(t)
	register(t, ts, "alice", "pass")
	rr := doJSON(t, ts, "POST", "/register", map[string]string{"username": "alice", "password": "other"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: %d %s", rr.Code, rr.Body.String())
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts, _ := newTestServer(t)
	register(t, ts, "alice", "pass")

	for _, body := range []map[string]string{
		{"username": "alice", "password": "wrong"},
		{"username": "ghost", "password": "pass"},
	} {
		rr := doJSON(t, ts, "POST", "/login", body, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("login %v: %d", body, rr.Code)
		}
	}
}

func TestOwnerIsolation(t *testing.T) {
	ts, _ := newTestServer(t)
	register(t, ts, "alice", "pass")
	register(t, ts, "bob", "pass")
	aliceAuthz := login(t, ts, "alice", "pass")
	bobAuthz := login(t, ts, "bob", "pass")

	rr := doJSON(t, ts, "POST", "/data", map[string]any{"data": map[string]string{"secret": "alice-only"}}, aliceAuthz)
	var saved struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &saved)

	// bob cannot read or delete alice's document
	if rr := doJSON(t, ts, "GET", "/data/"+saved.ID, nil, bobAuthz); rr.Code != http.StatusNotFound {
		t.Fatalf("cross-owner get: %d", rr.Code)
	}
	if rr := doJSON(t, ts, "DELETE", "/data/"+saved.ID, nil, bobAuthz); rr.Code != http.StatusNotFound {
		t.Fatalf("cross-owner delete: %d", rr.Code)
	}

	// bob's listing does not include alice's document
	rr = doJSON(t, ts, "GET", "/data", nil, bobAuthz)
	var docs map[string]json.RawMessage
	_ = json.Unmarshal(rr.Body.Bytes(), &docs)
	if len(docs) != 0 {
		t.Fatalf("bob sees %d foreign documents", len(docs))
	}
}

func TestUnauthenticatedRequests(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{"POST", "/data"},
		{"GET", "/data"},
		{"GET", "/data/some-id"},
		{"DELETE", "/data/some-id"},
		{"GET", "/metrics"},
		{"GET", "/admin/users"},
	} {
		if rr := doJSON(t, ts, tc.method, tc.path, nil, nil); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: %d", tc.method, tc.path, rr.Code)
		}
		garbled := map[string]string{"Authorization": "Bearer not-a-token"}
		if rr := doJSON(t, ts, tc.method, tc.path, nil, garbled); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s with garbage token: %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestExpiredToken(t *testing.T) {
	repo, err := sqlite.New("file:" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	defer repo.Close()
	expired := token.NewManager("test-secret", -time.Minute)
	svcs := service.NewServices(repo, expired)
	ts := NewRouter(svcs, nil, 1<<20)

	register(t, ts, "alice", "pass")
	rr := doJSON(t, ts, "POST", "/login", map[string]string{"username": "alice", "password": "pass"}, nil)
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &tokens)

	authz := map[string]string{"Authorization": "Bearer " + tokens.AccessToken}
	if rr := doJSON(t, ts, "GET", "/data", nil, authz); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expired token accepted: %d", rr.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	ts, svcs := newTestServer(t)
	if err := svcs.Auth.EnsureAdmin(context.Background(), "root", "rootpw"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	register(t, ts, "alice", "pass")
	register(t, ts, "bob", "pass")

	userAuthz := login(t, ts, "alice", "pass")
	adminAuthz := login(t, ts, "root", "rootpw")

	// non-admin is forbidden
	for _, path := range []string{"/metrics", "/admin/users"} {
		if rr := doJSON(t, ts, "GET", path, nil, userAuthz); rr.Code != http.StatusForbidden {
			t.Fatalf("non-admin %s: %d", path, rr.Code)
		}
	}

	// store 3 documents across users
	doJSON(t, ts, "POST", "/data", map[string]any{"data": map[string]int{"n": 1}}, userAuthz)
	doJSON(t, ts, "POST", "/data", map[string]any{"data": map[string]int{"n": 2}}, userAuthz)
	bobAuthz := login(t, ts, "bob", "pass")
	doJSON(t, ts, "POST", "/data", map[string]any{"data": map[string]int{"n": 3}}, bobAuthz)

	rr := doJSON(t, ts, "GET", "/metrics", nil, adminAuthz)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d %s", rr.Code, rr.Body.String())
	}
	var snap struct {
		UserCount     int64 `json:"user_count"`
		DocumentCount int64 `json:"document_count"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &snap)
	if snap.UserCount != 3 || snap.DocumentCount != 3 {
		t.Fatalf("metrics snapshot: %+v", snap)
	}

	rr = doJSON(t, ts, "GET", "/admin/users", nil, adminAuthz)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin users: %d", rr.Code)
	}
	var users []map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &users)
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	for _, u := range users {
		if _, leaked := u["password_hash"]; leaked {
			t.Fatalf("registry response leaks password hashes")
		}
	}
}

func TestLogout(t *testing.T) {
	ts, _ := newTestServer(t)
	if rr := doJSON(t, ts, "POST", "/logout", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("logout: %d", rr.Code)
	}
}

func TestSaveDocument_BadBodies(t *testing.T) {
	ts, _ := newTestServer(t)
	register(t, ts, "alice", "pass")
	authz := login(t, ts, "alice", "pass")

	// missing data field
	if rr := doJSON(t, ts, "POST", "/data", map[string]string{"other": "x"}, authz); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing data field: %d", rr.Code)
	}
	// invalid json
	req, _ := http.NewRequest("POST", "/data", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", authz["Authorization"])
	rr := httptest.NewRecorder()
	ts.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid json: %d", rr.Code)
	}
}

func TestSaveDocument_TooLarge(t *testing.T) {
	repo, err := sqlite.New("file:" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("repo: %v", err)
	}
	defer repo.Close()
	svcs := service.NewServices(repo, token.NewManager("test-secret", time.Hour))
	ts := NewRouter(svcs, nil, 64)

	register(t, ts, "alice", "pass")
	authz := login(t, ts, "alice", "pass")

	big := map[string]any{"data": map[string]string{"blob": string(bytes.Repeat([]byte("x"), 1024))}}
	if rr := doJSON(t, ts, "POST", "/data", big, authz); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: %d", rr.Code)
	}
}
