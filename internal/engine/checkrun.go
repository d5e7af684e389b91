package engine

import (
	"strings"

	"github.com/octohub/webhook-hub/internal/model"
)

// MaxCommitsForJiraConsideration bounds how many of a pull request's commits
// the jira-reference check inspects for an exempting conventional-commit
// type: a PR with more commits than this is judged on its title/body alone,
// the same cutoff the original per-commit scan used to avoid pathological
// API fan-out on PRs built from long, unsquashed branches.
const MaxCommitsForJiraConsideration = 20

// CheckJiraRefs decides whether a pull request needs a linked tracker issue,
// and if so, whether it has one. It returns the check's conclusion and a
// human-readable summary suitable for a CheckRun.
func CheckJiraRefs(pr model.PullRequest, commits []model.Commit, bound bool) (model.CheckConclusion, string) {
	if isExempt(pr, commits) {
		return model.ConclusionNeutral, "No JIRA reference required for this change."
	}
	text := pr.Title + "\n" + pr.Body
	keys := ExtractAllKeys(text)
	if len(keys) == 0 {
		return model.ConclusionFailure, "No JIRA issue key found in the pull request title or description."
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return model.ConclusionSuccess, "Found JIRA reference(s): " + strings.Join(names, ", ")
}

// isExempt reports whether the pull request as a whole should skip the
// jira-reference requirement: its title is an exempt conventional-commit
// type, or (when within the inspection bound) every one of its commits is.
func isExempt(pr model.PullRequest, commits []model.Commit) bool {
	if IsExemptConventionalCommit(pr.Title) {
		return true
	}
	if len(commits) == 0 || len(commits) > MaxCommitsForJiraConsideration {
		return false
	}
	for _, c := range commits {
		if !IsExemptConventionalCommit(c.Title()) {
			return false
		}
	}
	return true
}
