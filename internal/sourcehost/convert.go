package sourcehost

import (
	"strings"

	"github.com/google/go-github/v60/github"

	"github.com/octohub/webhook-hub/internal/model"
)

// isWIPTitle reports whether title marks a pull request as work-in-progress
// by convention, independent of the source host's own draft flag.
func isWIPTitle(title string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(title)), "wip:")
}

// ConvertPullRequest normalizes a go-github pull request, whether fetched
// over REST or embedded in a webhook payload (both use *github.PullRequest).
func ConvertPullRequest(repo model.RepoRef, pr *github.PullRequest) model.PullRequest {
	state := model.PullRequestOpen
	switch pr.GetState() {
	case "closed":
		if pr.GetMerged() {
			state = model.PullRequestMerged
		} else {
			state = model.PullRequestClosed
		}
	}

	var labels []model.Label
	for _, l := range pr.Labels {
		labels = append(labels, model.Label{Name: l.GetName()})
	}
	var assignees []model.UserRef
	for _, a := range pr.Assignees {
		assignees = append(assignees, model.UserRef{Login: a.GetLogin()})
	}
	var reviewers []model.UserRef
	if pr.RequestedReviewers != nil {
		for _, r := range pr.RequestedReviewers {
			reviewers = append(reviewers, model.UserRef{Login: r.GetLogin()})
		}
	}

	return model.PullRequest{
		Repo:           repo,
		Number:         pr.GetNumber(),
		Title:          pr.GetTitle(),
		Body:           pr.GetBody(),
		Author:         model.UserRef{Login: pr.GetUser().GetLogin()},
		HeadBranch:     model.BranchRef{Repo: repo, Name: pr.GetHead().GetRef()},
		BaseBranch:     model.BranchRef{Repo: repo, Name: pr.GetBase().GetRef()},
		HeadSHA:        pr.GetHead().GetSHA(),
		MergeCommitSHA: pr.GetMergeCommitSHA(),
		State:          state,
		Merged:         pr.GetMerged(),
		Draft:          pr.GetDraft() || isWIPTitle(pr.GetTitle()),
		Labels:         labels,
		Assignees:      assignees,
		Reviewers:      reviewers,
		CreatedAt:      pr.GetCreatedAt().Time,
		UpdatedAt:      pr.GetUpdatedAt().Time,
	}
}

// ConvertCommit normalizes a REST-fetched commit.
func ConvertCommit(c *github.RepositoryCommit) model.Commit {
	return model.Commit{
		SHA:       c.GetSHA(),
		Message:   c.GetCommit().GetMessage(),
		Author:    model.UserRef{Login: c.GetAuthor().GetLogin()},
		Timestamp: c.GetCommit().GetAuthor().GetDate().Time,
	}
}

// ConvertReview normalizes a review, whether fetched over REST or embedded
// in a pull_request_review webhook payload.
func ConvertReview(r *github.PullRequestReview) model.Review {
	return model.Review{
		ID:          r.GetID(),
		Author:      model.UserRef{Login: r.GetUser().GetLogin()},
		State:       r.GetState(),
		SubmittedAt: r.GetSubmittedAt().Time,
	}
}
