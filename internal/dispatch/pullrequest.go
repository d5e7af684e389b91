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
	"github.com/octohub/webhook-hub/internal/sourcehost"
	"github.com/octohub/webhook-hub/internal/worker"
)

// jiraConsiderableActions are the pull_request actions that trigger a
// jira-reference check (spec.md §4.2.2).
var jiraConsiderableActions = map[string]bool{
	"opened": true, "ready_for_review": true, "edited": true, "synchronize": true,
}

func (d *Dispatcher) dispatchPullRequest(ctx context.Context, ev model.HookEvent) (string, error) {
	var payload github.PullRequestEvent
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return "pull_request:malformed", fmt.Errorf("dispatch pull_request: %w", err)
	}
	action := payload.GetAction()
	if payload.PullRequest == nil {
		return "pull_request:" + action, nil
	}

	pr := sourcehost.ConvertPullRequest(ev.Repo, payload.PullRequest)
	rc := d.repoConfig(ctx, ev.Repo)

	verb, mode, ok := d.pullRequestVerb(ctx, action, payload, pr)
	if ok && !pr.Draft {
		d.notifyPullRequest(ctx, rc, pr, verb, mode)
	}

	if jiraConsiderableActions[action] {
		d.runJiraCheck(ctx, rc, pr)
	}

	if action == "opened" || action == "ready_for_review" {
		d.maybeSubmitForReview(ctx, rc, pr)
	}

	if action == "labeled" && pr.Merged && payload.Label != nil {
		d.triggerBackport(ctx, pr, payload.Label.GetName())
	}
	if verb == "merged" {
		d.triggerBackportsForLabels(ctx, pr)
	}

	return "pull_request:" + action, nil
}

// pullRequestVerb implements spec.md §4.2.2's action -> (verb, mode) table.
// ok is false for actions that produce no notification at all.
func (d *Dispatcher) pullRequestVerb(ctx context.Context, action string, payload github.PullRequestEvent, pr model.PullRequest) (verb string, mode model.NotifyMode, ok bool) {
	switch action {
	case "opened":
		return "opened by " + pr.Author.Login, model.NotifyChannel, true
	case "closed":
		if pr.Merged {
			return "merged", model.NotifyAll, true
		}
		return "closed", model.NotifyAll, true
	case "reopened":
		return "reopened", model.NotifyChannel, true
	case "edited":
		return "edited", model.NotifyNone, true
	case "ready_for_review":
		return "is ready for review", model.NotifyAll, true
	case "assigned":
		names := make([]string, len(pr.Assignees))
		for i, a := range pr.Assignees {
			names[i] = a.Login
		}
		return "assigned to " + joinOrNobody(names), model.NotifyAll, true
	case "unassigned":
		return "unassigned", model.NotifyChannel, true
	case "review_requested":
		names := d.requestedReviewerNames(ctx, pr.Repo, payload)
		return "by " + pr.Author.Login + " submitted for review to " + joinOrNobody(names), model.NotifyAll, true
	case "synchronize":
		return "synchronize", model.NotifyNone, true
	default:
		return "", 0, false
	}
}

func joinOrNobody(names []string) string {
	if len(names) == 0 {
		return "<nobody>"
	}
	return strings.Join(names, ", ")
}

// requestedReviewerNames resolves review_requested's target list: the
// directly requested user, plus (if a team was requested instead) that
// team's current membership.
func (d *Dispatcher) requestedReviewerNames(ctx context.Context, repo model.RepoRef, payload github.PullRequestEvent) []string {
	var names []string
	if payload.RequestedReviewer != nil {
		names = append(names, payload.RequestedReviewer.GetLogin())
	}
	if payload.RequestedTeam != nil && d.Teams != nil {
		members, err := d.Teams.Members(ctx, repo.Owner, payload.RequestedTeam.GetSlug())
		if err != nil {
			log.Warn().Err(err).Str("team", payload.RequestedTeam.GetSlug()).Msg("resolve requested team")
		} else {
			names = append(names, members...)
		}
	}
	return names
}

func (d *Dispatcher) notifyPullRequest(ctx context.Context, rc model.RepoConfig, pr model.PullRequest, verb string, mode model.NotifyMode) {
	text := fmt.Sprintf("Pull Request #%d: %q %s\n%s", pr.Number, pr.Title, verb, pullRequestURL(pr))
	keys := engine.ExtractAllKeys(pr.Title + "\n" + pr.Body)
	referenced := projectsOf(keys)

	recipients := append([]model.UserRef{pr.Author}, pr.Assignees...)
	recipients = append(recipients, pr.Reviewers...)
	for _, login := range extractMentions(pr.Title + " " + pr.Body) {
		recipients = append(recipients, model.UserRef{Login: login})
	}

	owner := pr.Author
	d.notify(ctx, rc, messenger.Notification{
		Branch:             pr.BaseBranch.Name,
		ReferencedProjects: referenced,
		Mode:               mode,
		Sender:             pr.Author,
		Owner:              &owner,
		Recipients:         recipients,
		Text:               text,
	})
}

func pullRequestURL(pr model.PullRequest) string {
	return fmt.Sprintf("https://github.com/%s/%s/pull/%d", pr.Repo.Owner, pr.Repo.Name, pr.Number)
}

func projectsOf(keys []model.IssueKey) []string {
	seen := make(map[string]bool, len(keys))
	var out []string
	for _, k := range keys {
		if !seen[k.Project] {
			seen[k.Project] = true
			out = append(out, k.Project)
		}
	}
	return out
}

// runJiraCheck posts the "jira" check-run on the PR's head commit per
// spec.md §4.3.4, skipped entirely when the repo has no jira bindings to
// check against.
func (d *Dispatcher) runJiraCheck(ctx context.Context, rc model.RepoConfig, pr model.PullRequest) {
	if len(rc.JiraBindings) == 0 {
		return
	}
	commits, err := d.Host.ListCommits(ctx, pr.Repo, pr.Number)
	if err != nil {
		log.Warn().Err(err).Str("repo", pr.Repo.String()).Int("pr", pr.Number).Msg("list commits for jira check")
	}
	conclusion, summary := engine.CheckJiraRefs(pr, commits, len(commits) <= engine.MaxCommitsForJiraConsideration)
	run := model.CheckRun{Repo: pr.Repo, HeadSHA: pr.HeadSHA, Name: "jira", Conclusion: conclusion, Summary: summary}
	if err := d.Host.SetCheckRun(ctx, pr.Repo, run); err != nil {
		log.Warn().Err(err).Str("repo", pr.Repo.String()).Int("pr", pr.Number).Msg("set jira check run")
	}
}

// maybeSubmitForReview drives fixed-relation issues into their review
// transition, per spec.md §4.2.2/§4.3.2, warning the channel and PR author
// instead when the PR has too many commits to safely inspect.
func (d *Dispatcher) maybeSubmitForReview(ctx context.Context, rc model.RepoConfig, pr model.PullRequest) {
	if len(rc.JiraBindings) == 0 || d.Tracker == nil {
		return
	}
	commits, err := d.Host.ListCommits(ctx, pr.Repo, pr.Number)
	if err != nil {
		log.Warn().Err(err).Str("repo", pr.Repo.String()).Int("pr", pr.Number).Msg("list commits for submit_for_review")
		return
	}
	if len(commits) > engine.MaxCommitsForJiraConsideration {
		owner := pr.Author
		d.notify(ctx, rc, messenger.Notification{
			Branch: pr.BaseBranch.Name,
			Mode:   model.NotifyOwner,
			Sender: pr.Author,
			Owner:  &owner,
			Text:   fmt.Sprintf("Pull request #%d has too many commits (%d) to check for JIRA references; skipping submit-for-review.", pr.Number, len(commits)),
		})
		return
	}

	var commitMessages []string
	for _, c := range commits {
		commitMessages = append(commitMessages, c.Message)
	}
	allKeys := engine.ExtractAllKeys(pr.Title + "\n" + pr.Body)
	for _, c := range commits {
		allKeys = append(allKeys, engine.ExtractAllKeys(c.Message)...)
	}

	prURL := pullRequestURL(pr)
	for _, binding := range bindingsForKeys(rc, allKeys) {
		if err := engine.SubmitForReview(ctx, d.Tracker, binding, commitMessages, pr.BaseBranch.Name, prURL); err != nil {
			log.Warn().Err(err).Str("project", binding.ProjectKey).Msg("submit for review")
		}
	}
}

// bindingsForKeys returns, for each distinct project referenced by keys, the
// first JiraBinding in rc.JiraBindings whose project matches. The binding's
// Branch is not consulted: a branch-scoped binding is not preferred over a
// repo-wide one.
func bindingsForKeys(rc model.RepoConfig, keys []model.IssueKey) []model.JiraBinding {
	seen := make(map[string]bool)
	var out []model.JiraBinding
	for _, k := range keys {
		if seen[k.Project] {
			continue
		}
		for _, b := range rc.JiraBindings {
			if strings.EqualFold(b.ProjectKey, k.Project) {
				seen[k.Project] = true
				out = append(out, b)
				break
			}
		}
	}
	return out
}

func (d *Dispatcher) triggerBackport(ctx context.Context, pr model.PullRequest, label string) {
	if _, ok := model.BackportLabelTarget(label); !ok {
		return
	}
	d.submitJob(worker.KindBackport, func(ctx context.Context) error {
		if d.Backport == nil {
			return nil
		}
		return d.Backport.Run(ctx, pr, label)
	})
}

func (d *Dispatcher) triggerBackportsForLabels(ctx context.Context, pr model.PullRequest) {
	for _, l := range pr.Labels {
		if _, ok := model.BackportLabelTarget(l.Name); ok {
			d.triggerBackport(ctx, pr, l.Name)
		}
	}
}
