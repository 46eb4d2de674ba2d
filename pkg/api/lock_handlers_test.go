package api

import (
	"net/http"
	"testing"

	"github.com/curateio/curate/pkg/locks"
	"github.com/curateio/curate/pkg/workspace"
)

func TestLockHandlers_ProjectLock(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")
	project := createTestProject(t, s, alice, "Locked Project")
	path := "/api/v1/projects/" + project.ID.String() + "/lock"

	// Bob joins as a second admin so both may edit
	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/members",
		map[string]interface{}{
			"user":  map[string]interface{}{"id": bob},
			"flags": map[string]bool{"is_project_admin": true},
		}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add member: expected 201, got %d", rec.Code)
	}

	rec = doRequest(t, s, "POST", path, nil, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Acquire lock: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var status locks.Status
	decodeBody(t, rec, &status)
	if !status.Locked || status.LockedBy == nil || *status.LockedBy != alice {
		t.Errorf("Expected lock held by alice, got %+v", status)
	}

	// Contended acquire reports the resource as locked
	rec = doRequest(t, s, "POST", path, nil, bob)
	if rec.Code != http.StatusLocked {
		t.Errorf("Expected 423 for contended acquire, got %d: %s", rec.Code, rec.Body.String())
	}

	// Holder re-acquire refreshes the lock
	rec = doRequest(t, s, "POST", path, nil, alice)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for holder re-acquire, got %d", rec.Code)
	}

	rec = doRequest(t, s, "GET", path, nil, bob)
	if rec.Code != http.StatusOK {
		t.Fatalf("Lock status: expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &status)
	if !status.Locked {
		t.Error("Expected status to report the lock")
	}

	// Locked projects reject writes from everybody else
	rec = doRequest(t, s, "PUT", "/api/v1/projects/"+project.ID.String(),
		map[string]interface{}{"name": "Bob's rename"}, bob)
	if rec.Code != http.StatusLocked {
		t.Errorf("Expected 423 updating a locked project, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "DELETE", path, nil, alice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Release lock: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "GET", path, nil, alice)
	decodeBody(t, rec, &status)
	if status.Locked {
		t.Error("Expected lock released")
	}
}

func TestLockHandlers_ForceRelease(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")
	project := createTestProject(t, s, alice, "Force Release")
	path := "/api/v1/projects/" + project.ID.String() + "/lock"

	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/members",
		map[string]interface{}{
			"user":  map[string]interface{}{"id": bob},
			"flags": map[string]bool{"is_project_admin": true},
		}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add member: expected 201, got %d", rec.Code)
	}

	rec = doRequest(t, s, "POST", path, nil, bob)
	if rec.Code != http.StatusOK {
		t.Fatalf("Acquire: expected 200, got %d", rec.Code)
	}

	// Alice breaks bob's lock as admin
	rec = doRequest(t, s, "DELETE", path+"/force", nil, alice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Force release: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	var status locks.Status
	rec = doRequest(t, s, "GET", path, nil, alice)
	decodeBody(t, rec, &status)
	if status.Locked {
		t.Error("Expected lock broken after force release")
	}
}

func TestLockHandlers_DatasetDraftLock(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")

	rec := doRequest(t, s, "POST", "/api/v1/datasets", map[string]string{"name": "Draft"}, alice)
	var draft workspace.Dataset
	decodeBody(t, rec, &draft)
	path := "/api/v1/datasets/" + draft.ID.String() + "/lock"

	rec = doRequest(t, s, "POST", path, nil, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Acquire draft lock: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Foreign drafts are invisible, lock routes included
	rec = doRequest(t, s, "POST", path, nil, bob)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for foreign draft lock, got %d", rec.Code)
	}
}
