package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/octohub/webhook-hub/internal/engine"
	"github.com/octohub/webhook-hub/internal/model"
)

var _ engine.Gateway = (*Client)(nil)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, "bot", "token", "customfield_10050")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestListProjectVersions(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/project/PROJ/versions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]jiraVersion{
			{ID: "1", Name: "1.0.0"},
			{ID: "2", Name: "1.1.0"},
		})
	})

	names, err := client.ListProjectVersions(context.Background(), "PROJ")
	if err != nil {
		t.Fatalf("ListProjectVersions: %v", err)
	}
	if len(names) != 2 || names[0] != "1.0.0" || names[1] != "1.1.0" {
		t.Fatalf("unexpected versions: %v", names)
	}
}

func TestCreateVersion(t *testing.T) {
	var gotBody jiraVersion
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/2/version" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(jiraVersion{ID: "3", Name: gotBody.Name})
	})

	if err := client.CreateVersion(context.Background(), "PROJ", "1.2.0"); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if gotBody.Name != "1.2.0" || gotBody.Project != "PROJ" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestReleaseVersion(t *testing.T) {
	var releasedSeen bool
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]jiraVersion{{ID: "7", Name: "1.0.0"}})
		case r.Method == http.MethodPut:
			var v jiraVersion
			_ = json.NewDecoder(r.Body).Decode(&v)
			releasedSeen = v.Released
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	if err := client.ReleaseVersion(context.Background(), "PROJ", "1.0.0"); err != nil {
		t.Fatalf("ReleaseVersion: %v", err)
	}
	if !releasedSeen {
		t.Fatal("expected released=true in PUT body")
	}
}

func TestGetTransitions(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/HUB-1/transitions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("expand") != "transitions.fields" {
			t.Fatalf("missing expand query param: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(jiraTransitionsResponse{
			Transitions: []jiraTransition{
				{
					ID:   "31",
					Name: "Resolve Issue",
					To:   struct {
						Name string `json:"name"`
					}{Name: "Resolved"},
					Fields: map[string]jiraTransitionField{
						"resolution": {AllowedValues: []jiraResolutionValue{{Name: "Fixed"}, {Name: "Won't Fix"}}},
					},
				},
			},
		})
	})

	options, err := client.GetTransitions(context.Background(), model.IssueKey{Project: "HUB", Number: 1})
	if err != nil {
		t.Fatalf("GetTransitions: %v", err)
	}
	if len(options) != 1 {
		t.Fatalf("got %d options, want 1", len(options))
	}
	opt := options[0]
	if opt.ID != "31" || opt.Name != "Resolve Issue" || opt.ToStatus != "Resolved" {
		t.Fatalf("unexpected option: %+v", opt)
	}
	if len(opt.AllowedResolutions) != 2 || opt.AllowedResolutions[0] != "Fixed" {
		t.Fatalf("unexpected resolutions: %v", opt.AllowedResolutions)
	}
}

func TestApplyTransitionWithResolution(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rest/api/2/issue/HUB-1/transitions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.ApplyTransition(context.Background(), model.IssueKey{Project: "HUB", Number: 1}, "31", "Fixed"); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	transition, _ := gotBody["transition"].(map[string]interface{})
	if transition["id"] != "31" {
		t.Fatalf("unexpected transition id: %v", gotBody)
	}
	fields, _ := gotBody["fields"].(map[string]interface{})
	resolution, _ := fields["resolution"].(map[string]interface{})
	if resolution["name"] != "Fixed" {
		t.Fatalf("unexpected resolution: %v", gotBody)
	}
}

func TestApplyTransitionWithoutResolution(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.ApplyTransition(context.Background(), model.IssueKey{Project: "HUB", Number: 1}, "11", ""); err != nil {
		t.Fatalf("ApplyTransition: %v", err)
	}
	if _, ok := gotBody["fields"]; ok {
		t.Fatalf("expected no fields in body without resolution: %v", gotBody)
	}
}

func TestAssignFixVersion(t *testing.T) {
	var gotBody map[string]interface{}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.AssignFixVersion(context.Background(), model.IssueKey{Project: "HUB", Number: 1}, "1.2.3"); err != nil {
		t.Fatalf("AssignFixVersion: %v", err)
	}
	update, _ := gotBody["update"].(map[string]interface{})
	fixVersions, _ := update["fixVersions"].([]interface{})
	if len(fixVersions) != 1 {
		t.Fatalf("unexpected fixVersions body: %v", gotBody)
	}
}

func TestReorderVersionToFront(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode([]jiraVersion{{ID: "9", Name: "2.0.0"}})
		case r.Method == http.MethodPost:
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			w.WriteHeader(http.StatusOK)
		}
	})

	if err := client.ReorderVersion(context.Background(), "PROJ", "2.0.0", ""); err != nil {
		t.Fatalf("ReorderVersion: %v", err)
	}
	if gotPath != "/rest/api/2/version/9/move" {
		t.Fatalf("unexpected move path: %s", gotPath)
	}
	if gotBody["position"] != "First" {
		t.Fatalf("unexpected move body: %v", gotBody)
	}
}
