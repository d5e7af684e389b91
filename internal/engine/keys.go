// Package engine implements the issue-tracker workflow: extracting issue
// keys from pull request text, driving the progress/review/resolved
// transition state machine, and the pending-version bookkeeping that decides
// which unreleased version a fix lands against.
package engine

import (
	"regexp"
	"sort"
	"strings"

	"github.com/octohub/webhook-hub/internal/model"
)

// keyPattern matches a bare tracker key like "HUB-142" anywhere in text.
// Project keys are 2-10 characters: an uppercase letter followed by uppercase
// letters or digits, matching the tracker's own key validation rule.
var keyPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})-([0-9]+)\b`)

// fixedVerb matches a "Fix"/"Fixes"/"Fixed" clause, optionally followed by
// a colon, then a run of comma/bracket-separated keys: "Fix [ABC-123][OTHER-567], [YEAH-999]".
var fixedVerb = regexp.MustCompile(`(?i)(?:Fix(?:e[sd])?):?\s*(?-i:(?:\[?[A-Z0-9]+-[0-9]+(?:\]|\b)[\s,]*)+)`)

// mentionedVerb matches the same shape after "See", spec.md's secondary
// reference marker: a mentioned key is commented on but never transitioned.
var mentionedVerb = regexp.MustCompile(`(?i)(?:See):?\s*(?-i:(?:\[?[A-Z0-9]+-[0-9]+(?:\]|\b)[\s,]*)+)`)

// ExtractAllKeys returns every tracker key mentioned anywhere in text,
// sorted and deduplicated.
func ExtractAllKeys(text string) []model.IssueKey {
	return sortDedupeKeys(findKeys(text))
}

// ExtractFixedKeys returns the keys named by a "Fix/Fixes/Fixed" clause.
func ExtractFixedKeys(text string) []model.IssueKey {
	return sortDedupeKeys(runKeys(fixedVerb, text))
}

// ExtractMentionedKeys returns the keys named by a "See" clause across a
// set of commit messages: spec.md's "don't start a pending version, don't
// transition" marker.
func ExtractMentionedKeys(commitMessages []string) []model.IssueKey {
	var out []model.IssueKey
	for _, msg := range commitMessages {
		out = append(out, runKeys(mentionedVerb, msg)...)
	}
	return sortDedupeKeys(out)
}

// ExtractReferencedKeys returns every key present in commitMessages that is
// not already claimed as fixed: spec.md's "referenced" relation
// (all_keys ∖ fixed_keys).
func ExtractReferencedKeys(commitMessages []string, fixed []model.IssueKey) []model.IssueKey {
	fixedSet := keySet(fixed)
	var out []model.IssueKey
	for _, msg := range commitMessages {
		for _, k := range findKeys(msg) {
			if !fixedSet[k] {
				out = append(out, k)
			}
		}
	}
	return sortDedupeKeys(out)
}

// runKeys re-scans every run matched by verb for bare tracker keys: the
// verb clause only anchors where a run of keys starts, the keys themselves
// are extracted the same way everywhere.
func runKeys(verb *regexp.Regexp, text string) []model.IssueKey {
	var out []model.IssueKey
	for _, run := range verb.FindAllString(text, -1) {
		out = append(out, findKeys(run)...)
	}
	return out
}

// filterProject restricts keys to those whose project matches, case
// insensitively.
func filterProject(keys []model.IssueKey, project string) []model.IssueKey {
	var out []model.IssueKey
	for _, k := range keys {
		if strings.EqualFold(k.Project, project) {
			out = append(out, k)
		}
	}
	return out
}

// subtractKeys returns the keys in all that are not present in minus.
func subtractKeys(all, minus []model.IssueKey) []model.IssueKey {
	excluded := keySet(minus)
	var out []model.IssueKey
	for _, k := range all {
		if !excluded[k] {
			out = append(out, k)
		}
	}
	return out
}

func findKeys(text string) []model.IssueKey {
	matches := keyPattern.FindAllStringSubmatch(text, -1)
	out := make([]model.IssueKey, 0, len(matches))
	for _, m := range matches {
		out = append(out, model.IssueKey{Project: m[1], Number: atoiSafe(m[2])})
	}
	return out
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// sortDedupeKeys sorts keys by project then number and drops duplicates,
// matching spec.md §4.3.1's "sort, dedup" extraction step.
func sortDedupeKeys(keys []model.IssueKey) []model.IssueKey {
	seen := make(map[model.IssueKey]bool, len(keys))
	out := make([]model.IssueKey, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Project != out[j].Project {
			return out[i].Project < out[j].Project
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func keySet(keys []model.IssueKey) map[model.IssueKey]bool {
	s := make(map[model.IssueKey]bool, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}

// conventionalCommitPattern matches a Conventional Commits type prefix, e.g.
// "build:", "chore(deps):".
var conventionalCommitPattern = regexp.MustCompile(`(?i)^(build|chore|docs|refactor|style|test)(\([^)]*\))?:`)

// skipTypes are the conventional-commit types the jira-reference check
// exempts from requiring a linked issue key: these commit kinds don't
// represent user-facing fixes or features.
var skipTypes = map[string]bool{
	"build": true, "chore": true, "docs": true,
	"refactor": true, "style": true, "test": true,
}

// IsExemptConventionalCommit reports whether title begins with one of the
// conventional-commit types the jira check exempts.
func IsExemptConventionalCommit(title string) bool {
	m := conventionalCommitPattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return false
	}
	return skipTypes[strings.ToLower(m[1])]
}

// ConventionalCommitType returns the type prefix of title (e.g. "feat",
// "fix"), and whether one was found. Used when rewriting backported commit
// titles so the prefix survives the `(#N)` suffix strip.
var anyConventionalType = regexp.MustCompile(`(?i)^([a-z]+)(\([^)]*\))?(!)?:\s*`)

func ConventionalCommitType(title string) (string, bool) {
	m := anyConventionalType.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// ConventionalCommitPrefix returns title's conventional-commit prefix
// exactly as written — type, optional "(scope)", optional "!", and the
// trailing ": " — plus the remainder of title with that prefix and any
// leading space stripped. Used by the backport runner to hoist a commit's
// type onto its rewritten title.
func ConventionalCommitPrefix(title string) (prefix, rest string, ok bool) {
	trimmed := strings.TrimSpace(title)
	m := anyConventionalType.FindStringSubmatch(trimmed)
	if m == nil {
		return "", trimmed, false
	}
	return trimmed[:len(m[0])], trimmed[len(m[0]):], true
}
