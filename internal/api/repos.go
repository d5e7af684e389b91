package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/octohub/webhook-hub/internal/domain"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/store"
)

// ReposHandler serves the admin CRUD surface over repo configuration and
// jira bindings (spec.md §6.8), grounded on the teacher's project-handler
// shape: decode, validate, call the store, write JSON.
type ReposHandler struct {
	store *store.DB
}

func NewReposHandler(db *store.DB) *ReposHandler {
	return &ReposHandler{store: db}
}

func RegisterRepoRoutes(r chi.Router, db *store.DB) {
	h := NewReposHandler(db)
	r.Get("/admin/repos", h.List)
	r.Post("/admin/repos", h.Upsert)
	r.Get("/admin/repos/{owner}/{name}", h.Get)
	r.Put("/admin/repos/{owner}/{name}", h.Upsert)
	r.Delete("/admin/repos/{owner}/{name}", h.Delete)
}

type jiraBindingRequest struct {
	Branch             string `json:"branch"`
	ProjectKey         string `json:"project_key"`
	Channel            string `json:"channel"`
	ProgressTransition string `json:"progress_transition"`
	ReviewTransition   string `json:"review_transition"`
	ResolvedTransition string `json:"resolved_transition"`
}

type repoConfigRequest struct {
	Owner            string               `json:"owner"`
	Name             string               `json:"name"`
	DefaultChannel   string               `json:"default_channel"`
	NotifyMode       string               `json:"notify_mode"`
	JiraCheckEnabled bool                 `json:"jira_check_enabled"`
	ForcePushNotify  bool                 `json:"force_push_notify"`
	JiraBindings     []jiraBindingRequest `json:"jira_bindings"`
}

func (h *ReposHandler) List(w http.ResponseWriter, r *http.Request) {
	repos, err := h.store.ListRepoConfigs(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, repos)
}

func (h *ReposHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := model.RepoRef{Owner: chi.URLParam(r, "owner"), Name: chi.URLParam(r, "name")}
	rc, err := h.store.GetRepoConfig(r.Context(), ref)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rc)
}

func (h *ReposHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req repoConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, domain.NewInvalidInputError("malformed request body"))
		return
	}

	errs := &ValidationErrors{}
	if nameErrs := ValidateString(req.Owner, "owner", true, 1, 255); nameErrs.HasErrors() {
		errs.Errors = append(errs.Errors, nameErrs.Errors...)
	}
	if nameErrs := ValidateString(req.Name, "name", true, 1, 255); nameErrs.HasErrors() {
		errs.Errors = append(errs.Errors, nameErrs.Errors...)
	}
	if req.NotifyMode != "" {
		if modeErrs := ValidateNotifyMode(req.NotifyMode); modeErrs.HasErrors() {
			errs.Errors = append(errs.Errors, modeErrs.Errors...)
		}
	}
	if errs.HasErrors() {
		WriteError(w, errs.ToAppError())
		return
	}

	rc := model.RepoConfig{
		Repo:             model.RepoRef{Owner: req.Owner, Name: req.Name},
		DefaultChannel:   req.DefaultChannel,
		NotifyMode:       notifyModeFromString(req.NotifyMode),
		JiraCheckEnabled: req.JiraCheckEnabled,
		ForcePushNotify:  req.ForcePushNotify,
	}

	id, err := h.store.UpsertRepoConfig(r.Context(), rc)
	if err != nil {
		WriteError(w, err)
		return
	}

	bindings := make([]model.JiraBinding, 0, len(req.JiraBindings))
	for _, b := range req.JiraBindings {
		bindings = append(bindings, model.JiraBinding{
			Branch:             b.Branch,
			ProjectKey:         b.ProjectKey,
			Channel:            b.Channel,
			ProgressTransition: b.ProgressTransition,
			ReviewTransition:   b.ReviewTransition,
			ResolvedTransition: b.ResolvedTransition,
		})
	}
	if err := h.store.ReplaceJiraBindings(r.Context(), id, bindings); err != nil {
		WriteError(w, err)
		return
	}

	rc, err = h.store.GetRepoConfig(r.Context(), rc.Repo)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rc)
}

func (h *ReposHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ref := model.RepoRef{Owner: chi.URLParam(r, "owner"), Name: chi.URLParam(r, "name")}
	if err := h.store.DeleteRepoConfig(r.Context(), ref); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

func notifyModeFromString(s string) model.NotifyMode {
	switch s {
	case "channel":
		return model.NotifyChannel
	case "owner":
		return model.NotifyOwner
	case "all":
		return model.NotifyAll
	default:
		return model.NotifyNone
	}
}
