package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-github/v60/github"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/sourcehost"
)

func (d *Dispatcher) dispatchReview(ctx context.Context, ev model.HookEvent) (string, error) {
	var payload github.PullRequestReviewEvent
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return "pull_request_review:malformed", fmt.Errorf("dispatch pull_request_review: %w", err)
	}
	if payload.Review == nil || payload.PullRequest == nil {
		return "pull_request_review:" + payload.GetAction(), nil
	}

	pr := sourcehost.ConvertPullRequest(ev.Repo, payload.PullRequest)
	review := sourcehost.ConvertReview(payload.Review)
	rc := d.repoConfig(ctx, ev.Repo)

	if d.isIgnored(review.Author.Login) {
		return "pull_request_review:" + payload.GetAction(), nil
	}

	switch strings.ToLower(review.State) {
	case "approved":
		d.notifyReviewVerdict(ctx, rc, pr, review, "good", "approved")
	case "changes_requested":
		d.notifyReviewVerdict(ctx, rc, pr, review, "danger", "requested changes")
	default:
		d.notifyComment(ctx, rc, pr.Author, pr.Assignees, pr.Reviewers, pr.Title, pullRequestURL(pr), review.Author, "")
	}
	return "pull_request_review:" + payload.GetAction(), nil
}

// notifyReviewVerdict renders an approved/changes_requested review as a
// distinct colored message rather than a plain comment (spec.md §4.2.3).
// color is carried in the text since internal/chat has no rich-attachment
// capability of its own.
func (d *Dispatcher) notifyReviewVerdict(ctx context.Context, rc model.RepoConfig, pr model.PullRequest, review model.Review, color, verb string) {
	text := fmt.Sprintf("[%s] %s %s pull request #%d: %q\n%s", color, review.Author.Login, verb, pr.Number, pr.Title, pullRequestURL(pr))
	recipients := append([]model.UserRef{pr.Author}, pr.Assignees...)
	recipients = append(recipients, pr.Reviewers...)
	owner := pr.Author
	d.notify(ctx, rc, messenger.Notification{
		Branch:     pr.BaseBranch.Name,
		Mode:       model.NotifyAll,
		Sender:     review.Author,
		Owner:      &owner,
		Recipients: recipients,
		Text:       text,
	})
}

func (d *Dispatcher) dispatchReviewComment(ctx context.Context, ev model.HookEvent) (string, error) {
	var payload github.PullRequestReviewCommentEvent
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return "pull_request_review_comment:malformed", fmt.Errorf("dispatch pull_request_review_comment: %w", err)
	}
	if payload.Comment == nil || payload.PullRequest == nil {
		return "pull_request_review_comment:" + payload.GetAction(), nil
	}
	pr := sourcehost.ConvertPullRequest(ev.Repo, payload.PullRequest)
	rc := d.repoConfig(ctx, ev.Repo)
	commenter := model.UserRef{Login: payload.Comment.GetUser().GetLogin()}
	body := payload.Comment.GetBody()

	if d.isIgnored(commenter.Login) || strings.TrimSpace(body) == "" {
		return "pull_request_review_comment:" + payload.GetAction(), nil
	}
	d.notifyComment(ctx, rc, pr.Author, pr.Assignees, pr.Reviewers, pr.Title, pullRequestURL(pr), commenter, body)
	return "pull_request_review_comment:" + payload.GetAction(), nil
}

func (d *Dispatcher) dispatchIssueComment(ctx context.Context, ev model.HookEvent) (string, error) {
	var payload github.IssueCommentEvent
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return "issue_comment:malformed", fmt.Errorf("dispatch issue_comment: %w", err)
	}
	if payload.Comment == nil || payload.Issue == nil {
		return "issue_comment:" + payload.GetAction(), nil
	}
	rc := d.repoConfig(ctx, ev.Repo)
	commenter := model.UserRef{Login: payload.Comment.GetUser().GetLogin()}
	body := payload.Comment.GetBody()

	if d.isIgnored(commenter.Login) || strings.TrimSpace(body) == "" {
		return "issue_comment:" + payload.GetAction(), nil
	}

	author := model.UserRef{Login: payload.Issue.GetUser().GetLogin()}
	url := payload.Issue.GetHTMLURL()
	title := payload.Issue.GetTitle()
	d.notifyComment(ctx, rc, author, nil, nil, title, url, commenter, body)
	return "issue_comment:" + payload.GetAction(), nil
}

func (d *Dispatcher) dispatchCommitComment(ctx context.Context, ev model.HookEvent) (string, error) {
	var payload github.CommitCommentEvent
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		return "commit_comment:malformed", fmt.Errorf("dispatch commit_comment: %w", err)
	}
	if payload.Comment == nil {
		return "commit_comment:" + payload.GetAction(), nil
	}
	rc := d.repoConfig(ctx, ev.Repo)
	commenter := model.UserRef{Login: payload.Comment.GetUser().GetLogin()}
	body := payload.Comment.GetBody()

	if d.isIgnored(commenter.Login) || strings.TrimSpace(body) == "" {
		return "commit_comment:" + payload.GetAction(), nil
	}

	sha := payload.Comment.GetCommitID()
	label := shortSHA(sha)
	if path := payload.Comment.GetPath(); path != "" {
		label = path
	}
	url := payload.Comment.GetHTMLURL()
	var assignees, reviewers []model.UserRef
	if pr, ok := d.findPullRequestForCommit(ctx, ev.Repo, sha); ok {
		assignees, reviewers = pr.Assignees, pr.Reviewers
	}
	d.notifyComment(ctx, rc, model.UserRef{}, assignees, reviewers, label, url, commenter, body)
	return "commit_comment:" + payload.GetAction(), nil
}

// findPullRequestForCommit looks up the open pull request (if any) that
// carries sha among its commits, used to fold a commit comment's
// notification into the same assignee/reviewer audience as its pull
// request's other notifications.
func (d *Dispatcher) findPullRequestForCommit(ctx context.Context, repo model.RepoRef, sha string) (model.PullRequest, bool) {
	if d.Host == nil {
		return model.PullRequest{}, false
	}
	prs, err := d.Host.ListOpenPullRequests(ctx, repo)
	if err != nil {
		log.Warn().Err(err).Str("repo", repo.String()).Msg("list open pull requests for commit comment")
		return model.PullRequest{}, false
	}
	for _, pr := range prs {
		commits, err := d.Host.ListCommits(ctx, repo, pr.Number)
		if err != nil {
			continue
		}
		for _, c := range commits {
			if c.SHA == sha {
				return pr, true
			}
		}
	}
	return model.PullRequest{}, false
}

// notifyComment implements the shared comment-notification shape described
// in spec.md §4.2.3: All-mode fan-out to the item's participants plus any
// @mentions in the comment body.
func (d *Dispatcher) notifyComment(ctx context.Context, rc model.RepoConfig, author model.UserRef, assignees, reviewers []model.UserRef, linkedTitle, url string, commenter model.UserRef, body string) {
	title := fmt.Sprintf("Comment on %q", linkedTitle)
	text := title
	if url != "" {
		text += "\n" + url
	}
	if body != "" {
		text += "\n" + body
	}

	recipients := []model.UserRef{author, commenter}
	recipients = append(recipients, assignees...)
	recipients = append(recipients, reviewers...)
	for _, login := range extractMentions(body) {
		recipients = append(recipients, model.UserRef{Login: login})
	}

	d.notify(ctx, rc, messenger.Notification{
		Mode:       model.NotifyAll,
		Sender:     commenter,
		Recipients: recipients,
		Text:       text,
	})
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
