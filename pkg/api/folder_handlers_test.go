package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/curateio/curate/pkg/workspace"
)

// createTestProject drives the API to set up a project for folder tests
func createTestProject(t *testing.T, s *Server, owner int64, name string) workspace.Project {
	t.Helper()
	rec := doRequest(t, s, "POST", "/api/v1/projects", map[string]string{"name": name}, owner)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create project: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var project workspace.Project
	decodeBody(t, rec, &project)
	return project
}

func TestFolderHandlers_Lifecycle(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	project := createTestProject(t, s, alice, "Marine Biology")

	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/folders",
		map[string]interface{}{"name": "Plankton Counts"}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create folder: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var folder workspace.Folder
	decodeBody(t, rec, &folder)
	if folder.Name != "Plankton Counts" || folder.ProjectID != project.ID {
		t.Errorf("Unexpected folder %+v", folder)
	}

	// General plus the new one
	rec = doRequest(t, s, "GET", "/api/v1/projects/"+project.ID.String()+"/folders", nil, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("List folders: expected 200, got %d", rec.Code)
	}
	var folders []workspace.Folder
	decodeBody(t, rec, &folders)
	if len(folders) != 2 {
		t.Fatalf("Expected 2 folders, got %d", len(folders))
	}

	rec = doRequest(t, s, "PUT", "/api/v1/folders/"+folder.ID.String(),
		map[string]interface{}{"name": "Plankton Counts 2026"}, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update folder: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "DELETE", "/api/v1/folders/"+folder.ID.String(), nil, alice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Delete folder: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFolderHandlers_CreateRequiresFlag(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")
	project := createTestProject(t, s, alice, "Restricted")

	// Bob joins without folder creation rights
	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/members",
		map[string]interface{}{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{}}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add member: expected 201, got %d", rec.Code)
	}

	rec = doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/folders",
		map[string]interface{}{"name": "Denied"}, bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without can_create_folders, got %d", rec.Code)
	}

	// Granting the flag opens the door
	rec = doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/members",
		map[string]interface{}{
			"user":  map[string]interface{}{"id": bob},
			"flags": map[string]bool{"can_create_folders": true},
		}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Update member: expected 201, got %d", rec.Code)
	}
	rec = doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/folders",
		map[string]interface{}{"name": "Allowed"}, bob)
	if rec.Code != http.StatusCreated {
		t.Errorf("Expected 201 with can_create_folders, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFolderHandlers_Permissions(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")
	project := createTestProject(t, s, alice, "Permissions")

	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/members",
		map[string]interface{}{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{}}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add member: expected 201, got %d", rec.Code)
	}

	rec = doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/folders",
		map[string]interface{}{"name": "Samples"}, alice)
	var folder workspace.Folder
	decodeBody(t, rec, &folder)
	base := "/api/v1/folders/" + folder.ID.String() + "/permissions"

	// Bob cannot see the folder before getting a permission
	rec = doRequest(t, s, "GET", "/api/v1/folders/"+folder.ID.String(), nil, bob)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before grant, got %d", rec.Code)
	}

	rec = doRequest(t, s, "POST", base, map[string]interface{}{
		"user":  map[string]interface{}{"id": bob},
		"flags": map[string]bool{"can_edit": true},
	}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Grant permission: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "GET", "/api/v1/folders/"+folder.ID.String(), nil, bob)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 after grant, got %d", rec.Code)
	}

	// Bob holds a permission but is no folder admin
	rec = doRequest(t, s, "POST", base, map[string]interface{}{
		"user":  map[string]interface{}{"id": bob},
		"flags": map[string]bool{"is_folder_admin": true},
	}, bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for self-promotion, got %d", rec.Code)
	}

	var perms []workspace.FolderPermission
	rec = doRequest(t, s, "GET", base, nil, alice)
	decodeBody(t, rec, &perms)
	if len(perms) != 2 {
		t.Fatalf("Expected 2 permissions, got %d", len(perms))
	}

	// A project admin's permission row cannot be removed directly
	rec = doRequest(t, s, "DELETE", fmt.Sprintf("%s/%d", base, alice), nil, alice)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 removing a project admin's permission, got %d", rec.Code)
	}

	rec = doRequest(t, s, "DELETE", fmt.Sprintf("%s/%d", base, bob), nil, alice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Remove permission: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, s, "GET", "/api/v1/folders/"+folder.ID.String(), nil, bob)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after revocation, got %d", rec.Code)
	}
}

func TestFolderHandlers_ReplacePermissions(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")
	project := createTestProject(t, s, alice, "Bulk")

	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/members",
		map[string]interface{}{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{}}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add member: expected 201, got %d", rec.Code)
	}
	rec = doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/folders",
		map[string]interface{}{"name": "Bulk Folder"}, alice)
	var folder workspace.Folder
	decodeBody(t, rec, &folder)

	rec = doRequest(t, s, "PUT", "/api/v1/folders/"+folder.ID.String()+"/permissions",
		map[string]interface{}{
			"permissions": []map[string]interface{}{
				{"user": map[string]interface{}{"id": alice}, "flags": map[string]bool{"is_folder_admin": true}},
				{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{"can_edit": true}},
			},
		}, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Replace permissions: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var perms []workspace.FolderPermission
	decodeBody(t, rec, &perms)
	if len(perms) != 2 {
		t.Fatalf("Expected 2 permissions after replace, got %d", len(perms))
	}
}
