package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/curateio/curate/pkg/workspace"
)

func TestProjectHandlers_Lifecycle(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")

	rec := doRequest(t, s, "POST", "/api/v1/projects", map[string]string{
		"name":        "Glacier Survey",
		"description": "Ice core measurements",
	}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var project workspace.Project
	decodeBody(t, rec, &project)
	if project.Name != "Glacier Survey" {
		t.Errorf("Expected project name to round-trip, got %q", project.Name)
	}
	if project.MembersCount != 1 {
		t.Errorf("Expected creator membership, got members_count %d", project.MembersCount)
	}

	rec = doRequest(t, s, "GET", "/api/v1/projects/"+project.ID.String(), nil, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET project: expected 200, got %d", rec.Code)
	}

	var listed []workspace.Project
	rec = doRequest(t, s, "GET", "/api/v1/projects", nil, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("List projects: expected 200, got %d", rec.Code)
	}
	decodeBody(t, rec, &listed)
	if len(listed) != 1 {
		t.Fatalf("Expected 1 project, got %d", len(listed))
	}

	rec = doRequest(t, s, "PUT", "/api/v1/projects/"+project.ID.String(), map[string]interface{}{
		"name":        "Glacier Survey 2026",
		"description": "Renamed",
	}, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update project: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated workspace.Project
	decodeBody(t, rec, &updated)
	if updated.Name != "Glacier Survey 2026" {
		t.Errorf("Expected renamed project, got %q", updated.Name)
	}

	rec = doRequest(t, s, "DELETE", "/api/v1/projects/"+project.ID.String(), nil, alice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Delete project: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "GET", "/api/v1/projects/"+project.ID.String(), nil, alice)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestProjectHandlers_HiddenFromNonMembers(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	mallory := workspace.CreateTestUser(t, db, "mallory")

	rec := doRequest(t, s, "POST", "/api/v1/projects", map[string]string{"name": "Secret"}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	var project workspace.Project
	decodeBody(t, rec, &project)

	// Non-members see 404, not 403
	rec = doRequest(t, s, "GET", "/api/v1/projects/"+project.ID.String(), nil, mallory)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for non-member, got %d", rec.Code)
	}
	rec = doRequest(t, s, "GET", "/api/v1/projects/"+project.ID.String()+"/members", nil, mallory)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for member list, got %d", rec.Code)
	}
}

func TestProjectHandlers_Members(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")

	rec := doRequest(t, s, "POST", "/api/v1/projects", map[string]string{"name": "Shared"}, alice)
	var project workspace.Project
	decodeBody(t, rec, &project)
	base := "/api/v1/projects/" + project.ID.String() + "/members"

	// Add bob by ID
	rec = doRequest(t, s, "POST", base, map[string]interface{}{
		"user":  map[string]interface{}{"id": bob},
		"flags": map[string]bool{"can_create_folders": true},
	}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Upsert member: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var membership workspace.ProjectMembership
	decodeBody(t, rec, &membership)
	if membership.MemberID != bob || !membership.CanCreateFolders {
		t.Errorf("Unexpected membership %+v", membership)
	}

	// Invite by email creates a pending user
	rec = doRequest(t, s, "POST", base, map[string]interface{}{
		"user":  map[string]interface{}{"email": "carol@example.com"},
		"flags": map[string]bool{},
	}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Upsert by email: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var members []workspace.ProjectMembership
	rec = doRequest(t, s, "GET", base, nil, alice)
	decodeBody(t, rec, &members)
	if len(members) != 3 {
		t.Fatalf("Expected 3 members, got %d", len(members))
	}

	// Bob cannot manage members
	rec = doRequest(t, s, "DELETE", fmt.Sprintf("%s/%d", base, alice), nil, bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin removal, got %d", rec.Code)
	}

	// Remove bob
	rec = doRequest(t, s, "DELETE", fmt.Sprintf("%s/%d", base, bob), nil, alice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Remove member: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProjectHandlers_ReplaceMembers(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")

	rec := doRequest(t, s, "POST", "/api/v1/projects", map[string]string{"name": "Replace"}, alice)
	var project workspace.Project
	decodeBody(t, rec, &project)
	base := "/api/v1/projects/" + project.ID.String() + "/members"

	rec = doRequest(t, s, "PUT", base, map[string]interface{}{
		"members": []map[string]interface{}{
			{"user": map[string]interface{}{"id": alice}, "flags": map[string]bool{"is_project_admin": true}},
			{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{"can_create_folders": true}},
		},
	}, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Replace members: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var members []workspace.ProjectMembership
	decodeBody(t, rec, &members)
	if len(members) != 2 {
		t.Fatalf("Expected 2 members after replace, got %d", len(members))
	}

	// Once the project holds a dataset, dropping every admin is rejected
	// wholesale
	ctx := context.Background()
	store := workspace.NewStore(db)
	folders, err := store.ListFolders(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListFolders failed: %v", err)
	}
	now := time.Now().UTC()
	ds := &workspace.Dataset{Name: "cores", CreatedBy: alice, FolderID: &folders[0].ID, PublicationDate: &now}
	if err := store.CreateDataset(ctx, ds); err != nil {
		t.Fatalf("CreateDataset failed: %v", err)
	}
	rec = doRequest(t, s, "PUT", base, map[string]interface{}{
		"members": []map[string]interface{}{
			{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{}},
		},
	}, alice)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for adminless replacement over datasets, got %d: %s", rec.Code, rec.Body.String())
	}

	// Without datasets the same replacement goes through
	if err := store.DeleteDataset(ctx, ds.ID); err != nil {
		t.Fatalf("DeleteDataset failed: %v", err)
	}
	rec = doRequest(t, s, "PUT", base, map[string]interface{}{
		"members": []map[string]interface{}{
			{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{}},
		},
	}, alice)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for adminless replacement of a dataset-free project, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProjectHandlers_CreateValidation(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")

	rec := doRequest(t, s, "POST", "/api/v1/projects", map[string]string{"description": "no name"}, alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing name, got %d", rec.Code)
	}
}
