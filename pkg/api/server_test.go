package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/curateio/curate/pkg/auth"
	"github.com/curateio/curate/pkg/contextkeys"
	"github.com/curateio/curate/pkg/identity"
	"github.com/curateio/curate/pkg/workspace"
)

// newTestServer builds a server over an in-memory database
func newTestServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()

	db := workspace.NewTestDB(t)
	_, err := db.Exec(`
		CREATE TABLE api_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			token_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			scopes TEXT,
			expires_at TIMESTAMP,
			last_used_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			revoked_at TIMESTAMP,
			revoked_by INTEGER,
			revoke_reason TEXT
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create api_tokens table: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(db, 30*time.Minute, log), db
}

// doRequest performs a request against the server as the given user.
// A zero userID sends the request unauthenticated.
func doRequest(t *testing.T, s *Server, method, path string, body interface{}, userID int64) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != 0 {
		authCtx := &auth.AuthContext{
			User:   &identity.User{ID: userID},
			Scopes: []auth.Scope{auth.ScopeAll},
		}
		req = req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals a recorded JSON response
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func TestServer_RequiresAuthentication(t *testing.T) {
	s, _ := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/projects"},
		{"GET", "/api/v1/datasets/drafts"},
		{"GET", "/api/v1/templates"},
		{"GET", "/api/v1/auth/tokens"},
	}
	for _, p := range paths {
		rec := doRequest(t, s, p.method, p.path, nil, 0)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", p.method, p.path, rec.Code)
		}
	}
}

func TestServer_InvalidUUID(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")

	rec := doRequest(t, s, "GET", "/api/v1/projects/not-a-uuid", nil, alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", rec.Code)
	}
}
