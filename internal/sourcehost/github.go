package sourcehost

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"

	"github.com/octohub/webhook-hub/internal/metrics"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/retry"
)

// GitHubHost implements Host against the real GitHub API via go-github,
// authenticating as a GitHub App installation.
type GitHubHost struct {
	client *github.Client
	creds  AppCredentials
	token  string // static PAT fallback, used when creds.AppID == 0
}

// NewAppHost builds a Host that authenticates as a GitHub App installation,
// refreshing its installation token automatically as it nears expiry.
func NewAppHost(ctx context.Context, creds AppCredentials) *GitHubHost {
	ts := oauth2.ReuseTokenSource(nil, &installationTokenSource{ctx: ctx, creds: creds})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	return &GitHubHost{client: client, creds: creds}
}

// NewTokenHost builds a Host authenticated with a static personal access
// token, used in development or for hosts without App support configured.
func NewTokenHost(ctx context.Context, token string) *GitHubHost {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	return &GitHubHost{client: client, token: token}
}

func call(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := retry.Do(ctx, retry.DefaultConfig(), fn)
	metrics.ObserveAdapterCall(name, err, time.Since(start))
	return err
}

func (h *GitHubHost) GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (model.PullRequest, error) {
	var pr *github.PullRequest
	err := call(ctx, "sourcehost.get_pull_request", func(ctx context.Context) error {
		var err error
		pr, _, err = h.client.PullRequests.Get(ctx, repo.Owner, repo.Name, number)
		return classifyErr(err)
	})
	if err != nil {
		return model.PullRequest{}, err
	}
	return ConvertPullRequest(repo, pr), nil
}

func (h *GitHubHost) ListCommits(ctx context.Context, repo model.RepoRef, number int) ([]model.Commit, error) {
	var out []model.Commit
	err := call(ctx, "sourcehost.list_commits", func(ctx context.Context) error {
		opt := &github.ListOptions{PerPage: 100}
		out = nil
		for {
			commits, resp, err := h.client.PullRequests.ListCommits(ctx, repo.Owner, repo.Name, number, opt)
			if err != nil {
				return classifyErr(err)
			}
			for _, c := range commits {
				out = append(out, ConvertCommit(c))
			}
			if resp.NextPage == 0 {
				return nil
			}
			opt.Page = resp.NextPage
		}
	})
	return out, err
}

func (h *GitHubHost) ListReviews(ctx context.Context, repo model.RepoRef, number int) ([]model.Review, error) {
	var out []model.Review
	err := call(ctx, "sourcehost.list_reviews", func(ctx context.Context) error {
		opt := &github.ListOptions{PerPage: 100}
		out = nil
		for {
			reviews, resp, err := h.client.PullRequests.ListReviews(ctx, repo.Owner, repo.Name, number, opt)
			if err != nil {
				return classifyErr(err)
			}
			for _, r := range reviews {
				out = append(out, ConvertReview(r))
			}
			if resp.NextPage == 0 {
				return nil
			}
			opt.Page = resp.NextPage
		}
	})
	return out, err
}

func (h *GitHubHost) ListOpenPullRequests(ctx context.Context, repo model.RepoRef) ([]model.PullRequest, error) {
	var prs []model.PullRequest
	err := call(ctx, "sourcehost.list_open_pull_requests", func(ctx context.Context) error {
		opt := &github.PullRequestListOptions{State: "open", ListOptions: github.ListOptions{PerPage: 100}}
		prs = nil
		for {
			page, resp, err := h.client.PullRequests.List(ctx, repo.Owner, repo.Name, opt)
			if err != nil {
				return classifyErr(err)
			}
			for _, pr := range page {
				prs = append(prs, ConvertPullRequest(repo, pr))
			}
			if resp.NextPage == 0 {
				return nil
			}
			opt.Page = resp.NextPage
		}
	})
	return prs, err
}

func (h *GitHubHost) AddAssignees(ctx context.Context, repo model.RepoRef, number int, logins []string) error {
	if len(logins) == 0 {
		return nil
	}
	return call(ctx, "sourcehost.add_assignees", func(ctx context.Context) error {
		_, _, err := h.client.Issues.AddAssignees(ctx, repo.Owner, repo.Name, number, logins)
		return classifyErr(err)
	})
}

func (h *GitHubHost) CreateComment(ctx context.Context, repo model.RepoRef, number int, body string) error {
	return call(ctx, "sourcehost.create_comment", func(ctx context.Context) error {
		_, _, err := h.client.Issues.CreateComment(ctx, repo.Owner, repo.Name, number, &github.IssueComment{
			Body: github.String(body),
		})
		return classifyErr(err)
	})
}

func (h *GitHubHost) SetCheckRun(ctx context.Context, repo model.RepoRef, run model.CheckRun) error {
	return call(ctx, "sourcehost.set_check_run", func(ctx context.Context) error {
		conclusion := string(run.Conclusion)
		_, _, err := h.client.Checks.CreateCheckRun(ctx, repo.Owner, repo.Name, github.CreateCheckRunOptions{
			Name:       run.Name,
			HeadSHA:    run.HeadSHA,
			Status:     github.String("completed"),
			Conclusion: github.String(conclusion),
			Output: &github.CheckRunOutput{
				Title:   github.String(run.Name),
				Summary: github.String(run.Summary),
			},
		})
		return classifyErr(err)
	})
}

func (h *GitHubHost) AddLabel(ctx context.Context, repo model.RepoRef, number int, label string) error {
	return call(ctx, "sourcehost.add_label", func(ctx context.Context) error {
		_, _, err := h.client.Issues.AddLabelsToIssue(ctx, repo.Owner, repo.Name, number, []string{label})
		return classifyErr(err)
	})
}

func (h *GitHubHost) RemoveLabel(ctx context.Context, repo model.RepoRef, number int, label string) error {
	return call(ctx, "sourcehost.remove_label", func(ctx context.Context) error {
		resp, err := h.client.Issues.RemoveLabelForIssue(ctx, repo.Owner, repo.Name, number, label)
		if resp != nil && resp.StatusCode == 404 {
			return nil
		}
		return classifyErr(err)
	})
}

func (h *GitHubHost) DismissReview(ctx context.Context, repo model.RepoRef, number int, reviewID int64, message string) error {
	return call(ctx, "sourcehost.dismiss_review", func(ctx context.Context) error {
		_, _, err := h.client.PullRequests.DismissReview(ctx, repo.Owner, repo.Name, number, reviewID, &github.PullRequestReviewDismissalRequest{
			Message: github.String(message),
		})
		return classifyErr(err)
	})
}

func (h *GitHubHost) RequestReviewers(ctx context.Context, repo model.RepoRef, number int, logins []string) error {
	if len(logins) == 0 {
		return nil
	}
	return call(ctx, "sourcehost.request_reviewers", func(ctx context.Context) error {
		_, _, err := h.client.PullRequests.RequestReviewers(ctx, repo.Owner, repo.Name, number, github.ReviewersRequest{
			Reviewers: logins,
		})
		return classifyErr(err)
	})
}

func (h *GitHubHost) CreatePullRequest(ctx context.Context, repo model.RepoRef, title, body, head, base string) (model.PullRequest, error) {
	var pr *github.PullRequest
	err := call(ctx, "sourcehost.create_pull_request", func(ctx context.Context) error {
		var err error
		pr, _, err = h.client.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
			Title: github.String(title),
			Body:  github.String(body),
			Head:  github.String(head),
			Base:  github.String(base),
		})
		return classifyErr(err)
	})
	if err != nil {
		return model.PullRequest{}, err
	}
	return ConvertPullRequest(repo, pr), nil
}

func (h *GitHubHost) BranchExists(ctx context.Context, repo model.RepoRef, branch string) (bool, error) {
	var exists bool
	err := call(ctx, "sourcehost.branch_exists", func(ctx context.Context) error {
		_, resp, err := h.client.Repositories.GetBranch(ctx, repo.Owner, repo.Name, branch, 0)
		if resp != nil && resp.StatusCode == 404 {
			exists = false
			return nil
		}
		if err != nil {
			return classifyErr(err)
		}
		exists = true
		return nil
	})
	return exists, err
}

func (h *GitHubHost) CreateBranch(ctx context.Context, repo model.RepoRef, branch, sha string) error {
	return call(ctx, "sourcehost.create_branch", func(ctx context.Context) error {
		ref := "refs/heads/" + branch
		_, _, err := h.client.Git.CreateRef(ctx, repo.Owner, repo.Name, &github.Reference{
			Ref:    github.String(ref),
			Object: &github.GitObject{SHA: github.String(sha)},
		})
		return classifyErr(err)
	})
}

func (h *GitHubHost) DeleteBranch(ctx context.Context, repo model.RepoRef, branch string) error {
	return call(ctx, "sourcehost.delete_branch", func(ctx context.Context) error {
		resp, err := h.client.Git.DeleteRef(ctx, repo.Owner, repo.Name, "refs/heads/"+branch)
		if resp != nil && resp.StatusCode == 404 {
			return nil
		}
		return classifyErr(err)
	})
}

func (h *GitHubHost) ApprovePullRequest(ctx context.Context, repo model.RepoRef, number int, commitSHA, body string) error {
	return call(ctx, "sourcehost.approve_pull_request", func(ctx context.Context) error {
		_, _, err := h.client.PullRequests.CreateReview(ctx, repo.Owner, repo.Name, number, &github.PullRequestReviewRequest{
			CommitID: github.String(commitSHA),
			Body:     github.String(body),
			Event:    github.String("APPROVE"),
		})
		return classifyErr(err)
	})
}

func (h *GitHubHost) GetTimeline(ctx context.Context, repo model.RepoRef, number int) ([]model.TimelineEvent, error) {
	var out []model.TimelineEvent
	err := call(ctx, "sourcehost.get_timeline", func(ctx context.Context) error {
		opt := &github.ListOptions{PerPage: 100}
		out = nil
		for {
			events, resp, err := h.client.Issues.ListIssueTimeline(ctx, repo.Owner, repo.Name, number, opt)
			if err != nil {
				return classifyErr(err)
			}
			for _, e := range events {
				if ev, ok := convertTimelineEvent(e); ok {
					out = append(out, ev)
				}
			}
			if resp.NextPage == 0 {
				return nil
			}
			opt.Page = resp.NextPage
		}
	})
	return out, err
}

func convertTimelineEvent(e *github.Timeline) (model.TimelineEvent, bool) {
	switch e.GetEvent() {
	case "reviewed":
		return model.TimelineEvent{
			Type:      model.TimelineReviewed,
			Actor:     model.UserRef{Login: e.GetActor().GetLogin()},
			ReviewID:  e.GetID(),
			CommitSHA: e.GetCommitID(),
			CreatedAt: e.GetCreatedAt().Time,
		}, true
	case "review_dismissed":
		return model.TimelineEvent{
			Type:      model.TimelineReviewDismissed,
			Actor:     model.UserRef{Login: e.GetActor().GetLogin()},
			ReviewID:  int64(e.GetDismissedReview().GetReviewID()),
			CreatedAt: e.GetCreatedAt().Time,
		}, true
	case "head_ref_force_pushed":
		return model.TimelineEvent{
			Type:      model.TimelineHeadRefForcePushed,
			Actor:     model.UserRef{Login: e.GetActor().GetLogin()},
			CreatedAt: e.GetCreatedAt().Time,
		}, true
	default:
		return model.TimelineEvent{}, false
	}
}

func (h *GitHubHost) TeamMembers(ctx context.Context, owner, teamSlug string) ([]string, error) {
	var logins []string
	err := call(ctx, "sourcehost.team_members", func(ctx context.Context) error {
		opt := &github.TeamListTeamMembersOptions{ListOptions: github.ListOptions{PerPage: 100}}
		logins = nil
		for {
			members, resp, err := h.client.Teams.ListTeamMembersBySlug(ctx, owner, teamSlug, opt)
			if err != nil {
				return classifyErr(err)
			}
			for _, m := range members {
				logins = append(logins, m.GetLogin())
			}
			if resp.NextPage == 0 {
				return nil
			}
			opt.Page = resp.NextPage
		}
	})
	return logins, err
}

func (h *GitHubHost) CloneURL(repo model.RepoRef) string {
	token := h.token
	if token == "" {
		token = "x-access-token"
	}
	return fmt.Sprintf("https://%s@github.com/%s/%s.git", token, repo.Owner, repo.Name)
}

// classifyErr marks rate-limit and 5xx responses retryable; everything else
// (404, 422, bad auth) is terminal.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*github.RateLimitError); ok {
		return retry.NewRetryableError(err)
	}
	if ghErr, ok := err.(*github.ErrorResponse); ok && ghErr.Response != nil && ghErr.Response.StatusCode >= 500 {
		return retry.NewRetryableError(err)
	}
	return err
}
