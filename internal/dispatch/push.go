package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/engine"
	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/worker"
)

func (d *Dispatcher) dispatchPush(ctx context.Context, ev model.HookEvent) (string, error) {
	var payload github.PushEvent
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return "push:malformed", fmt.Errorf("dispatch push: %w", err)
	}
	push := convertPush(ev.Repo, payload)

	// A branch's own creation or deletion carries no meaningful before/after
	// diff to react to (spec.md §4.2.4).
	if push.Created || push.Deleted {
		return "push:skipped", nil
	}

	rc := d.repoConfig(ctx, ev.Repo)
	branch := push.BranchName()

	if !d.isVersionedBranch(branch) {
		d.dispatchNonVersionedPush(ctx, rc, push, branch)
		return "push:" + branch, nil
	}

	d.dispatchVersionedPush(ctx, rc, push, branch)
	return "push:" + branch, nil
}

// dispatchNonVersionedPush implements spec.md §4.2.4's non-release-branch
// path: any open pull request whose head was rewritten by this push (its
// head sha equals either before or after, tolerating the source host's own
// payload race) gets a commit-list notification and a fresh jira check, and
// a forced push additionally queues a diff-comparison job when the repo
// opted into force-push notifications.
func (d *Dispatcher) dispatchNonVersionedPush(ctx context.Context, rc model.RepoConfig, push model.PushEvent, branch string) {
	if d.Host == nil {
		return
	}
	prs, err := d.Host.ListOpenPullRequests(ctx, push.Repo)
	if err != nil {
		log.Warn().Err(err).Str("repo", push.Repo.String()).Msg("list open pull requests for push")
		return
	}
	for _, pr := range prs {
		if pr.HeadSHA != push.Before && pr.HeadSHA != push.After {
			continue
		}
		if !pr.Draft {
			d.notifyPushCommits(ctx, rc, pr, push)
		}
		d.runJiraCheck(ctx, rc, pr)

		if push.Forced && rc.ForcePushNotify {
			pr := pr
			d.submitJob(worker.KindForcePush, func(ctx context.Context) error {
				if d.ForcePush == nil {
					return nil
				}
				return d.ForcePush.Run(ctx, pr, push.Before, push.After)
			})
		}
	}
}

// notifyPushCommits lists the pushed commits (short sha + first message
// line, linked) against the pull request they landed on.
func (d *Dispatcher) notifyPushCommits(ctx context.Context, rc model.RepoConfig, pr model.PullRequest, push model.PushEvent) {
	lines := make([]string, 0, len(push.Commits))
	for _, c := range push.Commits {
		lines = append(lines, fmt.Sprintf("%s %s (%s)", shortSHA(c.SHA), c.Title(), commitURL(push.Repo, c.SHA)))
	}
	text := fmt.Sprintf("Pull Request #%d: %q received new commits\n%s", pr.Number, pr.Title, strings.Join(lines, "\n"))

	recipients := append([]model.UserRef{pr.Author}, pr.Assignees...)
	recipients = append(recipients, pr.Reviewers...)
	owner := pr.Author
	d.notify(ctx, rc, messenger.Notification{
		Branch:     pr.BaseBranch.Name,
		Mode:       model.NotifyAll,
		Sender:     push.Pusher,
		Owner:      &owner,
		Recipients: recipients,
		Text:       text,
	})
}

// dispatchVersionedPush implements spec.md §4.2.4/§4.3.3's release-branch
// path: every pushed commit's fixed/referenced keys drive resolve_issue
// synchronously (the engine's pure transition logic, no job queue needed),
// and each jira binding scoped to this exact branch additionally queues a
// version-cutting job.
func (d *Dispatcher) dispatchVersionedPush(ctx context.Context, rc model.RepoConfig, push model.PushEvent, branch string) {
	if d.Tracker != nil {
		d.resolvePushCommits(ctx, rc, push, branch)
	}

	referenced := pushReferencedProjects(push)
	for _, binding := range rc.JiraBindings {
		if binding.Branch != branch || binding.VersionScript == "" || !referenced[strings.ToUpper(binding.ProjectKey)] {
			continue
		}
		binding := binding
		d.submitJob(worker.KindVersionScript, func(ctx context.Context) error {
			if d.VersionScript == nil {
				return nil
			}
			return d.VersionScript.Run(ctx, push, binding)
		})
	}
}

// pushReferencedProjects collects the set of jira project keys (uppercased)
// mentioned by any of push's commit messages, fixed or merely referenced:
// spec.md §4.6 only runs a version script for a binding whose project the
// push actually touched.
func pushReferencedProjects(push model.PushEvent) map[string]bool {
	projects := make(map[string]bool)
	for _, c := range push.Commits {
		for _, k := range engine.ExtractAllKeys(c.Message) {
			projects[strings.ToUpper(k.Project)] = true
		}
	}
	return projects
}

// resolvePushCommits implements spec.md §4.3.3: a fixed key on a commit
// merged into a versioned branch resolves the issue; no version is passed
// here, so no pending version is recorded. A merely-referenced key only
// gets a comment. Both
// relations, and the comment text distinguishing them, are ResolveIssue's
// own concern.
func (d *Dispatcher) resolvePushCommits(ctx context.Context, rc model.RepoConfig, push model.PushEvent, branch string) {
	for _, c := range push.Commits {
		keys := engine.ExtractAllKeys(c.Message)
		url := commitURL(push.Repo, c.SHA)

		for _, binding := range bindingsForKeys(rc, keys) {
			if err := engine.ResolveIssue(ctx, d.Tracker, binding, c, branch, url, ""); err != nil {
				log.Warn().Err(err).Str("project", binding.ProjectKey).Msg("resolve issue")
			}
		}
	}
}

func commitURL(repo model.RepoRef, sha string) string {
	return fmt.Sprintf("https://github.com/%s/%s/commit/%s", repo.Owner, repo.Name, sha)
}

func convertPush(repo model.RepoRef, payload github.PushEvent) model.PushEvent {
	var commits []model.Commit
	for _, c := range payload.Commits {
		commits = append(commits, model.Commit{
			SHA:     c.GetID(),
			Message: c.GetMessage(),
			Author:  model.UserRef{Login: c.GetAuthor().GetLogin()},
		})
	}
	return model.PushEvent{
		Repo:    repo,
		Ref:     payload.GetRef(),
		Before:  payload.GetBefore(),
		After:   payload.GetAfter(),
		Pusher:  model.UserRef{Login: payload.GetPusher().GetLogin()},
		Commits: commits,
		Forced:  payload.GetForced(),
		Created: payload.GetCreated(),
		Deleted: payload.GetDeleted(),
	}
}
