package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/curateio/curate/pkg/workspace"
)

func TestTemplateHandlers_GlobalLifecycle(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")

	// Creating a global template takes the global template admin flag
	fields := json.RawMessage(`[{"name":"species","type":"text"}]`)
	body := map[string]interface{}{
		"name":   "Field Observation",
		"fields": fields,
	}
	rec := doRequest(t, s, "POST", "/api/v1/templates", body, alice)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 creating a global template without the flag, got %d: %s", rec.Code, rec.Body.String())
	}

	workspace.MakeGlobalTemplateAdmin(t, db, alice)
	rec = doRequest(t, s, "POST", "/api/v1/templates", body, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create template: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var template workspace.MetadataTemplate
	decodeBody(t, rec, &template)
	if !template.IsGlobal() {
		t.Errorf("Expected global template, got %+v", template)
	}

	// Globals are readable by everyone
	rec = doRequest(t, s, "GET", "/api/v1/templates/"+template.ID.String(), nil, bob)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 reading global template, got %d", rec.Code)
	}
	rec = doRequest(t, s, "GET", "/api/v1/templates", nil, bob)
	var templates []workspace.MetadataTemplate
	decodeBody(t, rec, &templates)
	if len(templates) != 1 {
		t.Fatalf("Expected 1 global template, got %d", len(templates))
	}

	// But only flagged users may change them
	rec = doRequest(t, s, "PUT", "/api/v1/templates/"+template.ID.String(), map[string]interface{}{
		"name":   "Hijacked",
		"fields": fields,
	}, bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for unflagged update, got %d", rec.Code)
	}

	rec = doRequest(t, s, "PUT", "/api/v1/templates/"+template.ID.String(), map[string]interface{}{
		"name":   "Field Observation v2",
		"fields": json.RawMessage(`[{"name":"species","type":"text"},{"name":"count","type":"number"}]`),
	}, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update template: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated workspace.MetadataTemplate
	decodeBody(t, rec, &updated)
	if updated.Name != "Field Observation v2" {
		t.Errorf("Expected updated name, got %q", updated.Name)
	}

	rec = doRequest(t, s, "DELETE", "/api/v1/templates/"+template.ID.String(), nil, bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for unflagged delete, got %d", rec.Code)
	}
	rec = doRequest(t, s, "DELETE", "/api/v1/templates/"+template.ID.String(), nil, alice)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Delete template: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTemplateHandlers_ScopedCreate(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	bob := workspace.CreateTestUser(t, db, "bob")
	project := createTestProject(t, s, alice, "Scoped Templates")

	// Bob joins without template admin rights
	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/members",
		map[string]interface{}{"user": map[string]interface{}{"id": bob}, "flags": map[string]bool{}}, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add member: expected 201, got %d", rec.Code)
	}

	body := map[string]interface{}{
		"name":             "Project Schema",
		"fields":           json.RawMessage(`[]`),
		"assigned_to_kind": workspace.KindProject,
		"assigned_to_id":   project.ID,
	}
	rec = doRequest(t, s, "POST", "/api/v1/templates", body, bob)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 without template admin, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, "POST", "/api/v1/templates", body, alice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Scoped create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var template workspace.MetadataTemplate
	decodeBody(t, rec, &template)
	if template.AssignedToKind == nil || *template.AssignedToKind != workspace.KindProject {
		t.Errorf("Expected project-scoped template, got %+v", template)
	}

	// The project list carries the scoped template
	rec = doRequest(t, s, "GET", "/api/v1/projects/"+project.ID.String()+"/templates", nil, bob)
	if rec.Code != http.StatusOK {
		t.Fatalf("List project templates: expected 200, got %d", rec.Code)
	}
	var templates []workspace.MetadataTemplate
	decodeBody(t, rec, &templates)
	if len(templates) != 1 {
		t.Fatalf("Expected 1 project template, got %d", len(templates))
	}
}

func TestTemplateHandlers_CreateValidation(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	project := createTestProject(t, s, alice, "Validation")

	// Kind without ID is rejected
	rec := doRequest(t, s, "POST", "/api/v1/templates", map[string]interface{}{
		"name":             "Half Scoped",
		"assigned_to_kind": workspace.KindProject,
	}, alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for dangling scope kind, got %d", rec.Code)
	}

	// Datasets cannot carry templates
	rec = doRequest(t, s, "POST", "/api/v1/templates", map[string]interface{}{
		"name":             "Wrong Kind",
		"assigned_to_kind": workspace.KindDataset,
		"assigned_to_id":   project.ID,
	}, alice)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for dataset scope, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTemplateHandlers_FolderTemplates(t *testing.T) {
	s, db := newTestServer(t)
	alice := workspace.CreateTestUser(t, db, "alice")
	workspace.MakeGlobalTemplateAdmin(t, db, alice)
	project := createTestProject(t, s, alice, "Folder Templates")

	rec := doRequest(t, s, "POST", "/api/v1/projects/"+project.ID.String()+"/folders",
		map[string]interface{}{"name": "Scans"}, alice)
	var folder workspace.Folder
	decodeBody(t, rec, &folder)

	// One global, one project-scoped, one folder-scoped
	for _, body := range []map[string]interface{}{
		{"name": "Global"},
		{"name": "Project", "assigned_to_kind": workspace.KindProject, "assigned_to_id": project.ID},
		{"name": "Folder", "assigned_to_kind": workspace.KindFolder, "assigned_to_id": folder.ID},
	} {
		rec = doRequest(t, s, "POST", "/api/v1/templates", body, alice)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Create %v: expected 201, got %d: %s", body["name"], rec.Code, rec.Body.String())
		}
	}

	rec = doRequest(t, s, "GET", "/api/v1/folders/"+folder.ID.String()+"/templates", nil, alice)
	if rec.Code != http.StatusOK {
		t.Fatalf("List folder templates: expected 200, got %d", rec.Code)
	}
	var templates []workspace.MetadataTemplate
	decodeBody(t, rec, &templates)
	if len(templates) != 3 {
		t.Fatalf("Expected 3 templates visible in folder, got %d", len(templates))
	}
}
