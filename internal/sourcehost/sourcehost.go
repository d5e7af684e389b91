// Package sourcehost is the hub's capability interface onto the GitHub-shaped
// source host: pull requests, reviews, checks, comments, and team
// membership. internal/dispatch, internal/engine's callers, internal/backport
// and internal/forcepush all depend on the Host interface, not on go-github
// directly, so the concrete adapter can be swapped in tests.
package sourcehost

import (
	"context"

	"github.com/octohub/webhook-hub/internal/model"
)

// Host is everything the hub needs from the source host.
type Host interface {
	// GetPullRequest fetches the current state of a pull request, used to
	// refetch a thin webhook payload before acting on it.
	GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (model.PullRequest, error)

	// ListCommits lists the commits that make up a pull request, oldest
	// first.
	ListCommits(ctx context.Context, repo model.RepoRef, number int) ([]model.Commit, error)

	// ListReviews lists reviews on a pull request in submission order,
	// used by the force-push runner's timeline walk.
	ListReviews(ctx context.Context, repo model.RepoRef, number int) ([]model.Review, error)

	// ListOpenPullRequests lists a repo's currently open pull requests, used
	// by the push dispatcher to find PRs whose head matches a push's before
	// or after sha.
	ListOpenPullRequests(ctx context.Context, repo model.RepoRef) ([]model.PullRequest, error)

	// AddAssignees adds logins to a pull request's assignee set, used by the
	// backport runner to carry over the original PR's assignees and author.
	AddAssignees(ctx context.Context, repo model.RepoRef, number int, logins []string) error

	// CreateComment posts a comment on a pull request or issue.
	CreateComment(ctx context.Context, repo model.RepoRef, number int, body string) error

	// SetCheckRun creates or updates a check run for a commit SHA.
	SetCheckRun(ctx context.Context, repo model.RepoRef, run model.CheckRun) error

	// AddLabel and RemoveLabel manage a pull request's label set.
	AddLabel(ctx context.Context, repo model.RepoRef, number int, label string) error
	RemoveLabel(ctx context.Context, repo model.RepoRef, number int, label string) error

	// DismissReview withdraws a stale approval after a force-push, per
	// spec.md's review-reset policy.
	DismissReview(ctx context.Context, repo model.RepoRef, number int, reviewID int64, message string) error

	// RequestReviewers re-requests review from the given logins, used
	// after a force-push dismissal to nudge the original reviewers.
	RequestReviewers(ctx context.Context, repo model.RepoRef, number int, logins []string) error

	// CreatePullRequest opens a new pull request, used by the backport
	// runner once a cherry-picked branch is pushed.
	CreatePullRequest(ctx context.Context, repo model.RepoRef, title, body, head, base string) (model.PullRequest, error)

	// BranchExists reports whether branch exists on the remote, used by the
	// backport runner to refuse creating a branch name that's already
	// taken.
	BranchExists(ctx context.Context, repo model.RepoRef, branch string) (bool, error)

	// CreateBranch and DeleteBranch manage a ref directly through the host
	// API; the force-push runner uses a throwaway branch to fetch the
	// objects behind a since-rewritten "before" sha.
	CreateBranch(ctx context.Context, repo model.RepoRef, branch, sha string) error
	DeleteBranch(ctx context.Context, repo model.RepoRef, branch string) error

	// ApprovePullRequest submits an approving review at the given commit
	// sha, used by the force-push runner to re-approve a force-push whose
	// diff against the prior approved commit is identical.
	ApprovePullRequest(ctx context.Context, repo model.RepoRef, number int, commitSHA, body string) error

	// GetTimeline lists a pull request's activity timeline, used by the
	// force-push runner to find a review-dismissal and the approval it
	// dismissed.
	GetTimeline(ctx context.Context, repo model.RepoRef, number int) ([]model.TimelineEvent, error)

	// TeamMembers lists the logins belonging to a team; this is the
	// function wired into teamcache.New as its Fetcher.
	TeamMembers(ctx context.Context, owner, teamSlug string) ([]string, error)

	// CloneURL returns the authenticated clone URL for repo, suitable for
	// internal/gitshell.Clone.
	CloneURL(repo model.RepoRef) string
}
