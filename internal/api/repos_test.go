package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/octohub/webhook-hub/internal/migrate"
	"github.com/octohub/webhook-hub/internal/store"
)

func newTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrate.Run(db.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newRepoRouter(db *store.DB) http.Handler {
	r := chi.NewRouter()
	RegisterRepoRoutes(r, db)
	return r
}

func TestReposUpsertAndGet(t *testing.T) {
	db := newTestStore(t)
	router := newRepoRouter(db)

	body := repoConfigRequest{
		Owner:          "octocat",
		Name:           "hello-world",
		DefaultChannel: "#general",
		NotifyMode:     "channel",
		JiraBindings: []jiraBindingRequest{
			{Branch: "release/1.0", ProjectKey: "PROJ", Channel: "#release"},
		},
	}
	buf, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/admin/repos", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/repos/octocat/hello-world", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("release/1.0")) {
		t.Fatalf("expected jira binding in response, got %s", rec.Body.String())
	}
}

func TestReposGetMissingReturns404(t *testing.T) {
	db := newTestStore(t)
	router := newRepoRouter(db)

	req := httptest.NewRequest(http.MethodGet, "/admin/repos/nobody/nothing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestReposUpsertRejectsMissingOwner(t *testing.T) {
	db := newTestStore(t)
	router := newRepoRouter(db)

	buf, _ := json.Marshal(repoConfigRequest{Name: "hello-world"})
	req := httptest.NewRequest(http.MethodPost, "/admin/repos", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReposDelete(t *testing.T) {
	db := newTestStore(t)
	router := newRepoRouter(db)

	buf, _ := json.Marshal(repoConfigRequest{Owner: "octocat", Name: "hello-world"})
	req := httptest.NewRequest(http.MethodPost, "/admin/repos", bytes.NewReader(buf))
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodDelete, "/admin/repos/octocat/hello-world", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/repos/octocat/hello-world", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}
