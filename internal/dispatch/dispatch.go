// Package dispatch routes a normalized webhook event to its handler: chat
// notifications via internal/messenger, tracker transitions via
// internal/engine, and backport/force-push/version-script jobs via
// internal/worker. Handlers never return an error to the ingress beyond a
// short tag used for logging; a failure mid-fan-out is logged and the
// handler continues with whatever else it can still do.
package dispatch

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/engine"
	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/sourcehost"
	"github.com/octohub/webhook-hub/internal/store"
	"github.com/octohub/webhook-hub/internal/worker"
)

// RepoConfigs resolves a repo's hub configuration. internal/store's
// sqlite-backed DB satisfies this.
type RepoConfigs interface {
	GetRepoConfig(ctx context.Context, repo model.RepoRef) (model.RepoConfig, error)
}

// Notifier is the capability internal/messenger.Messenger provides;
// abstracted so dispatch tests can substitute a recording fake.
type Notifier interface {
	Notify(ctx context.Context, n messenger.Notification) error
}

// Teams resolves team membership, backing the All-notify-mode's "team
// members of requested teams" recipient expansion.
type Teams interface {
	Members(ctx context.Context, repoOwner, teamSlug string) ([]string, error)
}

// BackportRunner runs the backport job described by spec.md §4.4.
type BackportRunner interface {
	Run(ctx context.Context, pr model.PullRequest, label string) error
}

// ForcePushRunner runs the force-push comparison job described by
// spec.md §4.5.
type ForcePushRunner interface {
	Run(ctx context.Context, pr model.PullRequest, before, after string) error
}

// VersionScriptRunner runs the version-cutting job described by spec.md
// §4.6.
type VersionScriptRunner interface {
	Run(ctx context.Context, push model.PushEvent, binding model.JiraBinding) error
}

// Dispatcher wires one webhook event to its chat/tracker/job side effects.
type Dispatcher struct {
	Host     sourcehost.Host
	Tracker  engine.Gateway
	Notifier Notifier
	Repos    RepoConfigs
	Teams    Teams
	Jobs     *worker.Pool

	Backport      BackportRunner
	ForcePush     ForcePushRunner
	VersionScript VersionScriptRunner

	// BotLogin is the hub's own source-host account, excluded from
	// recipient fan-out and from comment-triggered notifications (a
	// comment the bot itself posted never re-notifies).
	BotLogin string
	// IgnoredUsers lists logins whose comments are never notified on,
	// e.g. other bots sharing the repo.
	IgnoredUsers []string
	// ReleaseBranchPrefix names the prefix a branch must carry to be
	// treated as a versioned release branch (spec.md §4.2.4), in addition
	// to the unconditional main branches in model.MainBranches.
	ReleaseBranchPrefix string
}

// Dispatch routes ev to its handler by kind, returning a short tag for
// logging/tests ("ping", "unhandled", "pull_request:opened", ...).
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.HookEvent) (string, error) {
	switch ev.Kind {
	case model.EventPing:
		return "ping", nil
	case model.EventPullRequest:
		return d.dispatchPullRequest(ctx, ev)
	case model.EventPullRequestReview:
		return d.dispatchReview(ctx, ev)
	case model.EventPullRequestReviewComment:
		return d.dispatchReviewComment(ctx, ev)
	case model.EventIssueComment:
		return d.dispatchIssueComment(ctx, ev)
	case model.EventCommitComment:
		return d.dispatchCommitComment(ctx, ev)
	case model.EventPush:
		return d.dispatchPush(ctx, ev)
	default:
		return "unhandled", nil
	}
}

// repoConfig loads ev's repo configuration, falling back to an
// unconfigured-but-usable default when the repo has no admin-bound row: the
// hub still processes webhooks for a repo nobody has configured yet, just
// with no jira binding and no chat channel.
func (d *Dispatcher) repoConfig(ctx context.Context, repo model.RepoRef) model.RepoConfig {
	rc, err := d.Repos.GetRepoConfig(ctx, repo)
	if err == nil {
		return rc
	}
	if err != store.ErrNotFound {
		log.Warn().Err(err).Str("repo", repo.String()).Msg("load repo config")
	}
	return model.RepoConfig{Repo: repo, NotifyMode: model.NotifyAll}
}

// notify sends n through the Notifier, downgrading to silence when the
// repo's configured notify mode is None: the per-action mode table in
// spec.md §4.2.2 picks a send mode per action, but a repo administrator's
// blanket "none" setting overrides every action.
func (d *Dispatcher) notify(ctx context.Context, rc model.RepoConfig, n messenger.Notification) {
	if rc.NotifyMode == model.NotifyNone {
		return
	}
	n.RepoConfig = rc
	if err := d.Notifier.Notify(ctx, n); err != nil {
		log.Warn().Err(err).Str("repo", rc.Repo.String()).Msg("notify")
	}
}

func (d *Dispatcher) isIgnored(login string) bool {
	if strings.EqualFold(login, d.BotLogin) {
		return true
	}
	for _, u := range d.IgnoredUsers {
		if strings.EqualFold(u, login) {
			return true
		}
	}
	return false
}

// isVersionedBranch reports whether name is a main branch or carries the
// configured release-branch prefix, per spec.md §4.2.4.
func (d *Dispatcher) isVersionedBranch(name string) bool {
	if model.IsMainBranch(name) {
		return true
	}
	prefix := d.ReleaseBranchPrefix
	if prefix == "" {
		prefix = "release/"
	}
	return strings.HasPrefix(name, prefix)
}

// submitJob enqueues job on the pool, logging (never propagating) a full
// queue.
func (d *Dispatcher) submitJob(kind worker.Kind, run func(ctx context.Context) error) {
	if d.Jobs == nil {
		return
	}
	if err := d.Jobs.Submit(worker.Job{Kind: kind, Run: run}); err != nil {
		log.Warn().Err(err).Str("kind", string(kind)).Msg("submit job")
	}
}
