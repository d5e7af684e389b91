package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/octohub/webhook-hub/internal/domain"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/store"
)

// UsersHandler serves the admin CRUD surface over user bindings (spec.md
// §6.8), the same shape as ReposHandler.
type UsersHandler struct {
	store *store.DB
}

func NewUsersHandler(db *store.DB) *UsersHandler {
	return &UsersHandler{store: db}
}

func RegisterUserRoutes(r chi.Router, db *store.DB) {
	h := NewUsersHandler(db)
	r.Get("/admin/users", h.List)
	r.Post("/admin/users", h.Upsert)
	r.Get("/admin/users/{login}", h.Get)
	r.Put("/admin/users/{login}", h.Upsert)
	r.Delete("/admin/users/{login}", h.Delete)
}

type userBindingRequest struct {
	HostLogin   string `json:"host_login"`
	TrackerUser string `json:"tracker_user"`
	ChatUserID  string `json:"chat_user_id"`
	MuteDMs     bool   `json:"mute_dms"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUserBindings(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, users)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	binding, err := h.store.GetUserBinding(r.Context(), chi.URLParam(r, "login"))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, binding)
}

func (h *UsersHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req userBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, domain.NewInvalidInputError("malformed request body"))
		return
	}

	if errs := ValidateString(req.HostLogin, "host_login", true, 1, 255); errs.HasErrors() {
		WriteError(w, errs.ToAppError())
		return
	}

	ub := model.UserBinding{
		HostLogin:   req.HostLogin,
		TrackerUser: req.TrackerUser,
		ChatUserID:  req.ChatUserID,
		MuteDMs:     req.MuteDMs,
	}
	if err := h.store.UpsertUserBinding(r.Context(), ub); err != nil {
		WriteError(w, err)
		return
	}

	saved, err := h.store.GetUserBinding(r.Context(), ub.HostLogin)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteUserBinding(r.Context(), chi.URLParam(r, "login")); err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}
