package ingress

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/model"
)

// refetchThinPayloads implements spec.md §4.1's two thin-payload cases: an
// issue_comment whose issue is actually a pull request carries no reviewer
// data on the embedded issue object, and some pull_request-shaped events
// arrive without requested_reviewers. Both are patched by refetching the
// pull request over REST and grafting the missing fields back into the raw
// body, so every downstream dispatch handler can keep assuming a payload is
// as rich as a direct REST fetch would be. A refetch failure is logged and
// the original body is passed through unmodified: a slightly thinner
// notification beats dropping the event.
func (h *Handler) refetchThinPayloads(ctx context.Context, repo model.RepoRef, eventName string, env envelope, body []byte) []byte {
	switch eventName {
	case "issue_comment":
		return h.graftIssueIsPullRequest(ctx, repo, env, body)
	case "pull_request", "pull_request_review", "pull_request_review_comment":
		return h.graftMissingReviewers(ctx, repo, env, body)
	default:
		return body
	}
}

// graftIssueIsPullRequest detects an issue_comment whose issue carries a
// "pull_request" sub-object (the source host's own "this issue is a pull
// request" marker), refetches the pull request and grafts its assignees onto
// issue.assignees, replacing whatever assignee list the payload carried.
func (h *Handler) graftIssueIsPullRequest(ctx context.Context, repo model.RepoRef, env envelope, body []byte) []byte {
	if env.Issue == nil || len(env.Issue.PullRequest) == 0 {
		return body
	}
	pr, err := h.Host.GetPullRequest(ctx, repo, env.Issue.Number)
	if err != nil {
		log.Warn().Err(err).Str("repo", repo.String()).Int("number", env.Issue.Number).Msg("refetch issue-as-pull-request")
		return body
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}
	var issue map[string]json.RawMessage
	if err := json.Unmarshal(doc["issue"], &issue); err != nil {
		return body
	}
	issue["assignees"] = mustMarshalLogins(pr.Assignees)
	issueBody, err := json.Marshal(issue)
	if err != nil {
		return body
	}
	doc["issue"] = issueBody
	out, err := json.Marshal(doc)
	if err != nil {
		return body
	}
	return out
}

// graftMissingReviewers detects a pull_request-shaped payload missing its
// requested_reviewers array (some delivery shapes omit it; see spec.md
// §4.1) and grafts it in from a REST refetch, explicitly preserving the
// original draft flag and head sha rather than trusting the refetch's
// possibly-stale view of either.
func (h *Handler) graftMissingReviewers(ctx context.Context, repo model.RepoRef, env envelope, body []byte) []byte {
	if env.PullRequest == nil || len(env.PullRequest.RequestedReviewers) > 0 {
		return body
	}
	pr, err := h.Host.GetPullRequest(ctx, repo, env.PullRequest.Number)
	if err != nil {
		log.Warn().Err(err).Str("repo", repo.String()).Int("number", env.PullRequest.Number).Msg("refetch thin pull request")
		return body
	}
	if pr.HeadSHA != env.PullRequest.Head.SHA {
		log.Warn().Str("repo", repo.String()).Int("number", env.PullRequest.Number).
			Str("webhook_sha", env.PullRequest.Head.SHA).Str("refetch_sha", pr.HeadSHA).
			Msg("refetched pull request head sha disagrees with webhook payload")
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return body
	}
	var prDoc map[string]json.RawMessage
	if err := json.Unmarshal(doc["pull_request"], &prDoc); err != nil {
		return body
	}
	prDoc["requested_reviewers"] = mustMarshalLogins(pr.Reviewers)
	// The refetch is a point-in-time snapshot; the webhook's own draft flag
	// and head sha are the authoritative record of what actually happened.
	prDoc["draft"], _ = json.Marshal(env.PullRequest.Draft)
	var head map[string]json.RawMessage
	if err := json.Unmarshal(prDoc["head"], &head); err == nil {
		if sha, err := json.Marshal(env.PullRequest.Head.SHA); err == nil {
			head["sha"] = sha
			if headBody, err := json.Marshal(head); err == nil {
				prDoc["head"] = headBody
			}
		}
	}
	prBody, err := json.Marshal(prDoc)
	if err != nil {
		return body
	}
	doc["pull_request"] = prBody
	out, err := json.Marshal(doc)
	if err != nil {
		return body
	}
	return out
}

func mustMarshalLogins(users []model.UserRef) json.RawMessage {
	type login struct {
		Login string `json:"login"`
	}
	logins := make([]login, 0, len(users))
	for _, u := range users {
		logins = append(logins, login{Login: u.Login})
	}
	raw, err := json.Marshal(logins)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}
