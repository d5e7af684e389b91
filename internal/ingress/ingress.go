// Package ingress is the webhook HTTP entrypoint: it authenticates one
// delivery, de-duplicates it, normalizes it into a model.HookEvent, and
// hands it to the dispatcher. No business logic lives here beyond that
// normalization.
package ingress

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/api"
	"github.com/octohub/webhook-hub/internal/dedup"
	"github.com/octohub/webhook-hub/internal/dispatch"
	"github.com/octohub/webhook-hub/internal/metrics"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/sourcehost"
)

// maxBodyBytes bounds a single webhook delivery's body; the source host's
// own payload size cap is 25MB, rounded up here to stay clear of it.
const maxBodyBytes = 32 << 20

// Handler is the webhook HTTP endpoint.
type Handler struct {
	Secret     string
	Dedup      *dedup.Dedup
	Dispatcher *dispatch.Dispatcher
	Host       sourcehost.Host
}

// RegisterWebhookRoutes mounts the source host's webhook callback.
func RegisterWebhookRoutes(r chi.Router, h *Handler) {
	r.Post("/hooks/source", h.ServeHTTP)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	eventName := r.Header.Get("X-GitHub-Event")
	signature := r.Header.Get("X-Hub-Signature")
	if deliveryID == "" || eventName == "" {
		http.Error(w, "missing delivery id or event header", http.StatusBadRequest)
		metrics.ObserveIngressEvent(eventName, "bad_headers", time.Since(start))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		metrics.ObserveIngressEvent(eventName, "read_error", time.Since(start))
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		metrics.ObserveIngressEvent(eventName, "too_large", time.Since(start))
		return
	}

	if !sourcehost.VerifySignature(h.Secret, body, signature) {
		http.Error(w, "signature mismatch", http.StatusForbidden)
		metrics.ObserveIngressEvent(eventName, "bad_signature", time.Since(start))
		return
	}

	first, err := h.Dedup.Observe(r.Context(), deliveryID, eventName)
	if err != nil {
		log.Error().Err(err).Str("delivery_id", deliveryID).Msg("dedup observe")
		http.Error(w, "internal error", http.StatusInternalServerError)
		metrics.ObserveIngressEvent(eventName, "dedup_error", time.Since(start))
		return
	}
	if !first {
		metrics.IngressDuplicates.Inc()
		http.Error(w, "duplicate delivery", http.StatusConflict)
		metrics.ObserveIngressEvent(eventName, "duplicate", time.Since(start))
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		metrics.ObserveIngressEvent(eventName, "malformed", time.Since(start))
		return
	}

	// Installation-scoped and other repo-less events (e.g. "installation",
	// "ping" is repo-less too but still handled) are acknowledged and
	// dropped: there's nothing for the dispatcher to act on.
	if env.Repository == nil && eventName != "ping" {
		api.WriteJSON(w, http.StatusOK, map[string]string{"tag": "no-repo"})
		metrics.ObserveIngressEvent(eventName, "no_repo", time.Since(start))
		return
	}

	var repo model.RepoRef
	if env.Repository != nil {
		repo = model.RepoRef{Owner: env.Repository.Owner.Login, Name: env.Repository.Name}
	}

	body = h.refetchThinPayloads(r.Context(), repo, eventName, env, body)

	ev := model.HookEvent{
		Kind:       model.EventKind(eventName),
		DeliveryID: deliveryID,
		Repo:       repo,
		Raw:        json.RawMessage(body),
	}

	tag, err := h.Dispatcher.Dispatch(r.Context(), ev)
	if err != nil {
		log.Warn().Err(err).Str("delivery_id", deliveryID).Str("tag", tag).Msg("dispatch")
		api.WriteJSON(w, http.StatusOK, map[string]string{"tag": tag, "warning": err.Error()})
		metrics.ObserveIngressEvent(eventName, "handler_error", time.Since(start))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"tag": tag})
	metrics.ObserveIngressEvent(eventName, "ok", time.Since(start))
}

// envelope is a lenient, partial parse of a webhook body used only to route
// and to detect the two thin-payload cases spec.md §4.1 calls out. Unknown
// fields are ignored by encoding/json automatically.
type envelope struct {
	Repository *struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Issue *struct {
		Number      int             `json:"number"`
		PullRequest json.RawMessage `json:"pull_request"`
	} `json:"issue"`
	PullRequest *struct {
		Number int  `json:"number"`
		Draft  bool `json:"draft"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
		RequestedReviewers json.RawMessage `json:"requested_reviewers"`
	} `json:"pull_request"`
}
