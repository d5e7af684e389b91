package model

import "time"

// PullRequestState mirrors the source host's open/closed/merged lifecycle.
type PullRequestState string

const (
	PullRequestOpen   PullRequestState = "open"
	PullRequestClosed PullRequestState = "closed"
	PullRequestMerged PullRequestState = "merged"
)

// Label is a source-host label attached to a pull request or issue.
type Label struct {
	Name string
}

// BackportLabelTarget returns the target branch name encoded by a
// "backport-<branch>" label, and whether name matched that convention.
func BackportLabelTarget(name string) (string, bool) {
	const prefix = "backport-"
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return "", false
	}
	return name[len(prefix):], true
}

// Review is a single pull-request review submission.
type Review struct {
	ID        int64
	Author    UserRef
	State     string // "approved", "changes_requested", "commented", "dismissed"
	SubmittedAt time.Time
}

// TimelineEventType narrows a TimelineEvent to the kinds the force-push
// runner cares about: did a review land, and was one later dismissed.
type TimelineEventType string

const (
	TimelineReviewed          TimelineEventType = "reviewed"
	TimelineReviewDismissed   TimelineEventType = "review_dismissed"
	TimelineHeadRefForcePushed TimelineEventType = "head_ref_force_pushed"
)

// TimelineEvent is one entry of a pull request's activity timeline, pared
// down to what's needed to detect a review dismissal that followed an
// approval at a specific commit sha.
type TimelineEvent struct {
	Type       TimelineEventType
	Actor      UserRef
	ReviewID   int64  // set on TimelineReviewed and TimelineReviewDismissed
	CommitSHA  string // the sha a TimelineReviewed event approved
	CreatedAt  time.Time
}

// PullRequest is the hub's normalized view of a pull request, assembled from
// webhook payloads and, when the payload is thin, a REST refetch.
type PullRequest struct {
	Repo       RepoRef
	Number     int
	Title      string
	Body       string
	Author     UserRef
	HeadBranch BranchRef
	BaseBranch BranchRef
	HeadSHA    string
	// MergeCommitSHA is the merge commit's sha once State is
	// PullRequestMerged; empty otherwise. The backport runner cherry-picks
	// this commit onto the target branch.
	MergeCommitSHA string
	State          PullRequestState
	Merged         bool
	Draft          bool
	Labels         []Label
	Assignees      []UserRef
	Reviewers      []UserRef
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasLabel reports whether the pull request carries a label with the given
// name.
func (pr PullRequest) HasLabel(name string) bool {
	for _, l := range pr.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// BackportTargets returns the branch names named by the PR's backport-*
// labels.
func (pr PullRequest) BackportTargets() []string {
	var targets []string
	for _, l := range pr.Labels {
		if target, ok := BackportLabelTarget(l.Name); ok {
			targets = append(targets, target)
		}
	}
	return targets
}

// Commentable is the capability shared by everything the hub can post a
// comment against: pull requests and plain issues.
type Commentable interface {
	CommentTarget() (repo RepoRef, number int)
}

func (pr PullRequest) CommentTarget() (RepoRef, int) {
	return pr.Repo, pr.Number
}

// PullRequestLike is implemented by anything carrying enough pull-request
// shape to run through the dispatcher's PR handlers: real PullRequests and,
// in tests, lightweight stand-ins.
type PullRequestLike interface {
	Commentable
	GetHeadSHA() string
	GetBaseBranch() BranchRef
	GetAuthor() UserRef
}

func (pr PullRequest) GetHeadSHA() string        { return pr.HeadSHA }
func (pr PullRequest) GetBaseBranch() BranchRef  { return pr.BaseBranch }
func (pr PullRequest) GetAuthor() UserRef        { return pr.Author }
