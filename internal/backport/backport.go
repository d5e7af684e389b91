// Package backport runs spec.md §4.4's backport job: cherry-pick a merged
// pull request's merge commit onto another branch and open a new pull
// request carrying it, preserving the original author, assignees and
// reviewers. Grounded on original_source/src/pr_merge.rs's Merger, adapted
// to go-github/gitshell and to the richer title-rewrite rules spec.md adds
// on top of the original's plain "base->target: title".
package backport

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/dirpool"
	"github.com/octohub/webhook-hub/internal/engine"
	"github.com/octohub/webhook-hub/internal/gitshell"
	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/sourcehost"
)

const failedBackportLabel = "failed-backport"

// Notifier is the capability internal/messenger.Messenger provides.
type Notifier interface {
	Notify(ctx context.Context, n messenger.Notification) error
}

// Runner implements dispatch.BackportRunner.
type Runner struct {
	DirPool             *dirpool.Pool
	HostName            string // dirpool key prefix, e.g. "github.com"
	Host                sourcehost.Host
	Notifier            Notifier
	ReleaseBranchPrefix string // defaults to "release/" if empty, matching dispatch's own default
}

// Run cherry-picks pr's merge commit onto the branch label names and opens a
// new pull request carrying it.
func (r *Runner) Run(ctx context.Context, pr model.PullRequest, label string) error {
	target, ok := r.deriveTarget(label)
	if !ok {
		return nil
	}
	if pr.MergeCommitSHA == "" {
		return r.fail(ctx, pr, fmt.Errorf("pull request #%d has no merge commit", pr.Number))
	}

	lease, err := r.DirPool.Acquire(ctx, dirpool.KeyFor(r.HostName, pr.Repo))
	if err != nil {
		return r.fail(ctx, pr, fmt.Errorf("acquire working directory: %w", err))
	}
	defer lease.Release()

	repo, err := r.ensureClone(ctx, lease.Dir, pr.Repo)
	if err != nil {
		return r.fail(ctx, pr, fmt.Errorf("clone: %w", err))
	}
	if err := repo.Fetch(ctx); err != nil {
		return r.fail(ctx, pr, fmt.Errorf("fetch: %w", err))
	}

	headTail := tail(pr.HeadBranch.Name)
	targetTail := tail(target)
	newBranch := headTail + "-" + targetTail

	exists, err := r.Host.BranchExists(ctx, pr.Repo, newBranch)
	if err != nil {
		return r.fail(ctx, pr, fmt.Errorf("check branch existence: %w", err))
	}
	if exists {
		return r.fail(ctx, pr, fmt.Errorf("branch %q already exists on origin", newBranch))
	}

	if err := repo.Checkout(ctx, "origin/"+target); err != nil {
		return r.fail(ctx, pr, fmt.Errorf("checkout origin/%s: %w", target, err))
	}
	if err := repo.CreateBranch(ctx, newBranch); err != nil {
		return r.fail(ctx, pr, fmt.Errorf("create branch %s: %w", newBranch, err))
	}

	authorName, authorEmail, err := repo.CommitAuthor(ctx, pr.MergeCommitSHA)
	if err != nil {
		return r.fail(ctx, pr, fmt.Errorf("read merge commit author: %w", err))
	}
	identity := &gitshell.Identity{Name: authorName, Email: authorEmail}

	strategy, err := repo.CherryPick(ctx, pr.MergeCommitSHA, identity)
	if err != nil {
		return r.fail(ctx, pr, fmt.Errorf("cherry-pick %s: %w", pr.MergeCommitSHA, err))
	}

	origMessage, err := repo.CommitMessage(ctx, pr.MergeCommitSHA)
	if err != nil {
		return r.fail(ctx, pr, fmt.Errorf("read merge commit message: %w", err))
	}
	title, body := rewriteMessage(origMessage, pr.HeadBranch.Name, target, pr.MergeCommitSHA, pr.Number)
	if err := repo.AmendMessage(ctx, title+"\n\n"+body, identity); err != nil {
		return r.fail(ctx, pr, fmt.Errorf("amend commit message: %w", err))
	}

	if err := repo.Push(ctx, "origin", newBranch, false); err != nil {
		return r.fail(ctx, pr, fmt.Errorf("push %s: %w", newBranch, err))
	}

	newPR, err := r.Host.CreatePullRequest(ctx, pr.Repo, title, body, newBranch, target)
	if err != nil {
		return r.fail(ctx, pr, fmt.Errorf("create pull request: %w", err))
	}

	assignees := dedupeLogins(append([]model.UserRef{pr.Author}, pr.Assignees...))
	if err := r.Host.AddAssignees(ctx, pr.Repo, newPR.Number, loginsOf(assignees)); err != nil {
		log.Warn().Err(err).Int("pr", newPR.Number).Msg("backport: assign")
	}
	reviewers := excludeLogin(pr.Reviewers, pr.Author.Login)
	if err := r.Host.RequestReviewers(ctx, pr.Repo, newPR.Number, loginsOf(reviewers)); err != nil {
		log.Warn().Err(err).Int("pr", newPR.Number).Msg("backport: request reviewers")
	}

	if strategy != gitshell.CherryPickPlain {
		note := fmt.Sprintf("Cherry-picked with `-X %s` due to whitespace-only conflicts.", strategy)
		if err := r.Host.CreateComment(ctx, pr.Repo, newPR.Number, note); err != nil {
			log.Warn().Err(err).Int("pr", newPR.Number).Msg("backport: whitespace-mode comment")
		}
	}
	return nil
}

// deriveTarget implements spec.md §4.4 step 2: a label's captured target
// that names a main branch is used verbatim, else it's treated as a release
// train name and prefixed accordingly.
func (r *Runner) deriveTarget(label string) (string, bool) {
	captured, ok := model.BackportLabelTarget(label)
	if !ok {
		return "", false
	}
	if model.IsMainBranch(captured) {
		return captured, true
	}
	return r.releaseBranchPrefix() + captured, true
}

func (r *Runner) releaseBranchPrefix() string {
	if r.ReleaseBranchPrefix == "" {
		return "release/"
	}
	return r.ReleaseBranchPrefix
}

// fail implements spec.md §4.4 step 9: notify the author, comment on the
// original pull request, and label it failed-backport.
func (r *Runner) fail(ctx context.Context, pr model.PullRequest, cause error) error {
	log.Error().Err(cause).Int("pr", pr.Number).Str("repo", pr.Repo.String()).Msg("backport failed")
	if r.Notifier != nil {
		owner := pr.Author
		text := fmt.Sprintf("Backport of Pull Request #%d failed: %s", pr.Number, cause.Error())
		if err := r.Notifier.Notify(ctx, messenger.Notification{
			Mode:  model.NotifyOwner,
			Owner: &owner,
			Text:  text,
		}); err != nil {
			log.Warn().Err(err).Msg("backport: notify failure")
		}
	}
	if r.Host != nil {
		if err := r.Host.CreateComment(ctx, pr.Repo, pr.Number, "Backport failed: "+cause.Error()); err != nil {
			log.Warn().Err(err).Msg("backport: comment failure on original pr")
		}
		if err := r.Host.AddLabel(ctx, pr.Repo, pr.Number, failedBackportLabel); err != nil {
			log.Warn().Err(err).Msg("backport: label failed-backport")
		}
	}
	return cause
}

func (r *Runner) ensureClone(ctx context.Context, dir string, repoRef model.RepoRef) (gitshell.Repo, error) {
	repo := gitshell.Repo{Dir: dir}
	if _, err := repo.HeadSHA(ctx); err == nil {
		return repo, nil
	}
	return gitshell.Clone(ctx, r.Host.CloneURL(repoRef), dir)
}

// tail strips everything up to and including the last "/" of name.
func tail(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

var trailingPRNumber = regexp.MustCompile(`(\s*\(#\d+\))+\s*$`)
var priorBackportPrefix = regexp.MustCompile(`^[^\s:]+->[^\s:]+:\s*`)

// rewriteMessage implements spec.md §4.4 step 7.
func rewriteMessage(origMessage, headBranch, target, sha string, prNumber int) (title, body string) {
	lines := strings.Split(strings.TrimRight(origMessage, "\n"), "\n")
	origTitle := strings.TrimSpace(lines[0])
	var origBody string
	if len(lines) > 2 {
		origBody = strings.TrimSpace(strings.Join(lines[2:], "\n"))
	}

	origTitle = trailingPRNumber.ReplaceAllString(origTitle, "")
	for {
		stripped := priorBackportPrefix.ReplaceAllString(origTitle, "")
		if stripped == origTitle {
			break
		}
		origTitle = stripped
	}

	prefix, rest, hasConv := engine.ConventionalCommitPrefix(origTitle)
	strippedTitle := origTitle
	if hasConv {
		strippedTitle = rest
		for {
			stripped := priorBackportPrefix.ReplaceAllString(strippedTitle, "")
			if stripped == strippedTitle {
				break
			}
			strippedTitle = stripped
		}
	} else {
		prefix = ""
	}

	title = fmt.Sprintf("%s%s->%s: %s", prefix, tail(headBranch), tail(target), strippedTitle)

	body = origBody
	if body != "" {
		body += "\n\n"
	}
	shortSHA := sha
	if len(shortSHA) > 7 {
		shortSHA = shortSHA[:7]
	}
	body += fmt.Sprintf("(cherry-picked from %s, PR #%d)", shortSHA, prNumber)
	return title, body
}

func dedupeLogins(users []model.UserRef) []model.UserRef {
	seen := make(map[string]bool, len(users))
	var out []model.UserRef
	for _, u := range users {
		key := strings.ToLower(u.Login)
		if u.Login == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}

func excludeLogin(users []model.UserRef, login string) []model.UserRef {
	var out []model.UserRef
	for _, u := range users {
		if !strings.EqualFold(u.Login, login) {
			out = append(out, u)
		}
	}
	return out
}

func loginsOf(users []model.UserRef) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Login)
	}
	return out
}
