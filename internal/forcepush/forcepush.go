// Package forcepush runs spec.md §4.5's force-push comparison job: it
// decides whether a rewritten pull-request branch actually changed its
// effective diff against the base branch, and if not, carries forward a
// dismissed approval instead of making reviewers re-review a pure rebase.
package forcepush

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/dirpool"
	"github.com/octohub/webhook-hub/internal/gitshell"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/sourcehost"
)

// Runner implements dispatch.ForcePushRunner.
type Runner struct {
	DirPool  *dirpool.Pool
	HostName string // dirpool key prefix, e.g. "github.com"
	Host     sourcehost.Host
}

// Run compares the pull request's diff before and after a force-push and
// comments on or re-approves the pull request accordingly.
func (r *Runner) Run(ctx context.Context, pr model.PullRequest, before, after string) error {
	lease, err := r.DirPool.Acquire(ctx, dirpool.KeyFor(r.HostName, pr.Repo))
	if err != nil {
		return fmt.Errorf("acquire working directory: %w", err)
	}
	defer lease.Release()

	repo, err := r.ensureClone(ctx, lease.Dir, pr.Repo)
	if err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	if err := repo.Fetch(ctx); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := repo.Checkout(ctx, "origin/"+pr.BaseBranch.Name); err != nil {
		return fmt.Errorf("checkout origin/%s: %w", pr.BaseBranch.Name, err)
	}

	if err := r.fetchHistoricalCommit(ctx, repo, pr.Repo, before); err != nil {
		return fmt.Errorf("fetch before-sha %s: %w", before, err)
	}

	beforeBase, err := repo.MergeBase(ctx, pr.BaseBranch.Name, before)
	if err != nil {
		return fmt.Errorf("merge-base before: %w", err)
	}
	afterBase, err := repo.MergeBase(ctx, pr.BaseBranch.Name, after)
	if err != nil {
		return fmt.Errorf("merge-base after: %w", err)
	}

	diffBefore, err := repo.Diff(ctx, beforeBase, before)
	if err != nil {
		return fmt.Errorf("diff before: %w", err)
	}
	diffAfter, err := repo.Diff(ctx, afterBase, after)
	if err != nil {
		return fmt.Errorf("diff after: %w", err)
	}

	identical, changedFiles := patchesEqual(diffBefore, diffAfter)

	if identical {
		if reviewer, ok, err := r.findCarryableApproval(ctx, pr, before, after); err != nil {
			log.Warn().Err(err).Int("pr", pr.Number).Msg("forcepush: timeline lookup")
		} else if ok {
			body := fmt.Sprintf(
				"Re-approved after force-push (identical diff post-rebase); carrying forward %s's review from %s.",
				reviewer.Login, shortSHA(before))
			return r.Host.ApprovePullRequest(ctx, pr.Repo, pr.Number, after, body)
		}
	}

	return r.Host.CreateComment(ctx, pr.Repo, pr.Number, buildComment(before, after, identical, changedFiles))
}

// fetchHistoricalCommit makes sha's objects available locally by briefly
// creating a remote branch at sha and fetching it — needed because a
// force-push can orphan the commit from every ref the clone already knows.
func (r *Runner) fetchHistoricalCommit(ctx context.Context, repo gitshell.Repo, repoRef model.RepoRef, sha string) error {
	tempBranch := "hub-forcepush-" + sha
	if err := r.Host.CreateBranch(ctx, repoRef, tempBranch, sha); err != nil {
		return err
	}
	defer func() {
		if err := r.Host.DeleteBranch(ctx, repoRef, tempBranch); err != nil {
			log.Warn().Err(err).Str("branch", tempBranch).Msg("forcepush: delete temp branch")
		}
	}()
	return repo.Fetch(ctx)
}

// findCarryableApproval looks for a review-dismissal at after whose
// dismissed review was submitted at before, returning the reviewer whose
// approval should be carried forward.
func (r *Runner) findCarryableApproval(ctx context.Context, pr model.PullRequest, before, after string) (model.UserRef, bool, error) {
	timeline, err := r.Host.GetTimeline(ctx, pr.Repo, pr.Number)
	if err != nil {
		return model.UserRef{}, false, err
	}
	approvalsByReviewID := map[int64]model.TimelineEvent{}
	for _, ev := range timeline {
		if ev.Type == model.TimelineReviewed && ev.CommitSHA == before {
			approvalsByReviewID[ev.ReviewID] = ev
		}
	}
	for _, ev := range timeline {
		if ev.Type != model.TimelineReviewDismissed || ev.CommitSHA != after {
			continue
		}
		if approval, ok := approvalsByReviewID[ev.ReviewID]; ok {
			return approval.Actor, true, nil
		}
	}
	return model.UserRef{}, false, nil
}

func (r *Runner) ensureClone(ctx context.Context, dir string, repoRef model.RepoRef) (gitshell.Repo, error) {
	repo := gitshell.Repo{Dir: dir}
	if _, err := repo.HeadSHA(ctx); err == nil {
		return repo, nil
	}
	return gitshell.Clone(ctx, r.Host.CloneURL(repoRef), dir)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func buildComment(before, after string, identical bool, changedFiles []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Force-push detected: before: %s, after: %s: ", shortSHA(before), shortSHA(after))
	if identical {
		b.WriteString("Identical diff post-rebase.")
		return b.String()
	}
	b.WriteString("Diff changed post-rebase.")
	for _, f := range changedFiles {
		fmt.Fprintf(&b, "\n- %s", f)
	}
	return b.String()
}

var fileHeaderPattern = regexp.MustCompile(`^diff --git a/.+ b/(.+)$`)
var hunkHeaderPattern = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@(.*)$`)

// patchSet maps a changed file to its normalized hunk lines: hunk headers
// keep any trailing context text but drop the line-number ranges.
type patchSet map[string][]string

// parsePatch splits a unified diff into per-file normalized hunks. ok is
// false when diff is non-empty but no file header was recognized, signaling
// the caller should fall back to a raw-string compare.
func parsePatch(diff string) (set patchSet, ok bool) {
	set = patchSet{}
	if strings.TrimSpace(diff) == "" {
		return set, true
	}

	var currentFile string
	var currentLines []string
	flush := func() {
		if currentFile != "" {
			set[currentFile] = currentLines
		}
	}
	for _, line := range strings.Split(diff, "\n") {
		if m := fileHeaderPattern.FindStringSubmatch(line); m != nil {
			flush()
			currentFile = m[1]
			currentLines = nil
			continue
		}
		if currentFile == "" {
			continue
		}
		if strings.HasPrefix(line, "index ") || strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") {
			continue
		}
		if m := hunkHeaderPattern.FindStringSubmatch(line); m != nil {
			currentLines = append(currentLines, "@@"+m[1])
			continue
		}
		currentLines = append(currentLines, line)
	}
	flush()

	if len(set) == 0 {
		return set, false
	}
	return set, true
}

// patchesEqual reports whether a and b represent the same set of changed
// files with the same hunk content, and if not, which files differ.
func patchesEqual(a, b string) (equal bool, changedFiles []string) {
	setA, okA := parsePatch(a)
	setB, okB := parsePatch(b)
	if !okA || !okB {
		return a == b, nil
	}

	files := map[string]bool{}
	for f := range setA {
		files[f] = true
	}
	for f := range setB {
		files[f] = true
	}
	for f := range files {
		if !linesEqual(setA[f], setB[f]) {
			changedFiles = append(changedFiles, f)
		}
	}
	sort.Strings(changedFiles)
	return len(changedFiles) == 0, changedFiles
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
