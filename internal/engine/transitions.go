package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/model"
)

// Default workflow state names used when a JiraBinding leaves the
// corresponding override empty.
var (
	defaultProgressStates   = []string{"In Progress"}
	defaultReviewStates     = []string{"Pending Review"}
	defaultResolvedStates   = []string{"Resolved", "Done"}
	defaultFixedResolutions = []string{"Fixed", "Done"}
)

// statesFor returns override as a single-element list when set, or defaults
// otherwise: a JiraBinding only ever names one transition per step, but the
// tracker's own status names for "already past this step" can vary.
func statesFor(override string, defaults []string) []string {
	if override != "" {
		return []string{override}
	}
	return defaults
}

func progressStates(b model.JiraBinding) []string {
	return statesFor(b.ProgressTransition, defaultProgressStates)
}

func reviewStates(b model.JiraBinding) []string {
	return statesFor(b.ReviewTransition, defaultReviewStates)
}

func resolvedStates(b model.JiraBinding) []string {
	return statesFor(b.ResolvedTransition, defaultResolvedStates)
}

// needsTransition reports whether status still requires moving into target:
// true when status is unknown or not already one of target's names.
func needsTransition(status string, target []string) bool {
	if status == "" {
		return true
	}
	for _, s := range target {
		if strings.EqualFold(status, s) {
			return false
		}
	}
	return true
}

// pickTransition returns the first of options whose name or destination
// status matches one of target's names, trying target's names in order
// before moving to the next option.
func pickTransition(target []string, options []TransitionOption) (TransitionOption, bool) {
	for _, opt := range options {
		for _, name := range target {
			if strings.EqualFold(opt.Name, name) || strings.EqualFold(opt.ToStatus, name) {
				return opt, true
			}
		}
	}
	return TransitionOption{}, false
}

// pickResolution returns the first of opt's allowed resolution values (in
// the tracker's own field order) that also appears in fixedResolutions, or
// "" if opt carries no resolution field or none of its values are allowed.
func pickResolution(opt TransitionOption, fixedResolutions []string) string {
	for _, allowed := range opt.AllowedResolutions {
		for _, fixed := range fixedResolutions {
			if strings.EqualFold(allowed, fixed) {
				return allowed
			}
		}
	}
	return ""
}

// tryTransition moves key into one of target's states if a matching
// transition is available, logging and giving up on any failure rather than
// aborting the surrounding batch.
func tryTransition(ctx context.Context, gw Gateway, key model.IssueKey, target []string) {
	options, err := gw.GetTransitions(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("list transitions")
		return
	}
	opt, ok := pickTransition(target, options)
	if !ok {
		log.Warn().Str("key", key.String()).Strs("target", target).Msg("no matching transition")
		return
	}
	if err := gw.ApplyTransition(ctx, key, opt.ID, ""); err != nil {
		log.Warn().Err(err).Str("key", key.String()).Str("transition", opt.Name).Msg("apply transition")
	}
}

// tryResolvedTransition is tryTransition specialized for the resolved step,
// additionally picking a resolution value from the transition's allowed
// list when its target status declares a resolution field.
func tryResolvedTransition(ctx context.Context, gw Gateway, key model.IssueKey, binding model.JiraBinding) {
	target := resolvedStates(binding)
	options, err := gw.GetTransitions(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("list transitions")
		return
	}
	opt, ok := pickTransition(target, options)
	if !ok {
		log.Warn().Str("key", key.String()).Strs("target", target).Msg("no matching resolved transition")
		return
	}
	resolution := pickResolution(opt, defaultFixedResolutions)
	if err := gw.ApplyTransition(ctx, key, opt.ID, resolution); err != nil {
		log.Warn().Err(err).Str("key", key.String()).Str("transition", opt.Name).Msg("apply resolved transition")
	}
}

// releaseNotePattern extracts the text a commit wants quoted into the
// resolved issue's comment as a release note, bracketed by a pair of
// "Release-Note" markers (any mix of hyphen/space/case between the two
// words, matching every marker spelling the original tooling accepted).
var releaseNotePattern = regexp.MustCompile(`(?is)Release[-\s]*Note\s*(.*?)\s*Release[-\s]*Note`)

const (
	releaseNoteLimit       = 1000
	releaseNoteTruncatedAt = 997
)

// extractReleaseNote pulls the release-note block out of a commit message,
// truncating an overlong note rather than dropping it.
func extractReleaseNote(message string) string {
	m := releaseNotePattern.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	note := strings.TrimSpace(m[1])
	if note == "" {
		return ""
	}
	if len(note) > releaseNoteLimit {
		note = note[:releaseNoteTruncatedAt] + "... [truncated]"
	}
	return note
}

// shortSHA returns sha's first 7 characters, or sha itself if shorter.
func shortSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

// mergedCommentBody builds the comment resolve_issue attaches to a fixed
// key: a link to the merging commit, its title quoted, and, when known, the
// version it shipped in and any release note the commit carried.
func mergedCommentBody(branch string, commit model.Commit, commitURL, version string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merged into branch %s: [%s|%s]\n{quote}%s{quote}", branch, shortSHA(commit.SHA), commitURL, commit.Title())
	if version != "" {
		fmt.Fprintf(&b, "\nIncluded in version %s", version)
	}
	if note := extractReleaseNote(commit.Message); note != "" {
		fmt.Fprintf(&b, "\nRelease-Note\n%s\nRelease Note", note)
	}
	return b.String()
}

// referencedMergedCommentBody is mergedCommentBody's counterpart for a key
// that was merely referenced (not fixed) by the merging commit: no
// release-note block, since the commit never claimed to resolve anything.
func referencedMergedCommentBody(branch string, commit model.Commit, commitURL, version string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Referenced by commit merged into branch %s: [%s|%s]\n{quote}%s{quote}", branch, shortSHA(commit.SHA), commitURL, commit.Title())
	if version != "" {
		fmt.Fprintf(&b, "\nIncluded in version %s", version)
	}
	return b.String()
}

// extractFixedKeysAcross merges ExtractFixedKeys over every message.
func extractFixedKeysAcross(messages []string) []model.IssueKey {
	var out []model.IssueKey
	for _, msg := range messages {
		out = append(out, ExtractFixedKeys(msg)...)
	}
	return sortDedupeKeys(out)
}

// extractAllKeysAcross merges ExtractAllKeys over every message.
func extractAllKeysAcross(messages []string) []model.IssueKey {
	var out []model.IssueKey
	for _, msg := range messages {
		out = append(out, ExtractAllKeys(msg)...)
	}
	return sortDedupeKeys(out)
}

// SubmitForReview moves every fixed-relation issue scoped to binding's
// project into its review transition (progressing through the progress
// transition first if the issue hasn't reached it yet), and comments on
// every referenced-relation issue without transitioning mentioned keys.
// Already-submitted issues are left alone: submitting a PR for review twice
// must not bounce an issue backwards.
func SubmitForReview(ctx context.Context, gw Gateway, binding model.JiraBinding, commitMessages []string, baseBranch, prURL string) error {
	fixed := filterProject(extractFixedKeysAcross(commitMessages), binding.ProjectKey)
	mentioned := keySet(filterProject(ExtractMentionedKeys(commitMessages), binding.ProjectKey))
	all := filterProject(extractAllKeysAcross(commitMessages), binding.ProjectKey)
	referenced := subtractKeys(all, fixed)

	reviewMsg := fmt.Sprintf("Review submitted for branch %s: %s", baseBranch, prURL)
	for _, key := range fixed {
		if err := gw.AddComment(ctx, key, reviewMsg); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("comment submit for review")
			continue
		}
		issue, err := gw.GetIssue(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("get issue for submit for review")
			continue
		}
		if !needsTransition(issue.Status, reviewStates(binding)) {
			continue
		}
		if needsTransition(issue.Status, progressStates(binding)) {
			tryTransition(ctx, gw, key, progressStates(binding))
		}
		tryTransition(ctx, gw, key, reviewStates(binding))
	}

	referencedMsg := fmt.Sprintf("Referenced by review submitted for branch %s: %s", baseBranch, prURL)
	for _, key := range referenced {
		if err := gw.AddComment(ctx, key, referencedMsg); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("comment referenced submit for review")
			continue
		}
		if mentioned[key] {
			continue
		}
		issue, err := gw.GetIssue(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("get issue for referenced submit for review")
			continue
		}
		if !needsTransition(issue.Status, progressStates(binding)) {
			continue
		}
		tryTransition(ctx, gw, key, progressStates(binding))
	}
	return nil
}

// ResolveIssue comments on and transitions every key commit names, scoped to
// binding's project: a fixed key is moved to the resolved transition (if not
// already there) and gets version recorded as a pending version; a merely
// referenced key only gets a comment.
func ResolveIssue(ctx context.Context, gw Gateway, binding model.JiraBinding, commit model.Commit, branch, commitURL, version string) error {
	fixed := filterProject(ExtractFixedKeys(commit.Message), binding.ProjectKey)
	all := filterProject(ExtractAllKeys(commit.Message), binding.ProjectKey)
	referenced := subtractKeys(all, fixed)

	fixedMsg := mergedCommentBody(branch, commit, commitURL, version)
	for _, key := range fixed {
		if err := gw.AddComment(ctx, key, fixedMsg); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("comment resolve issue")
			continue
		}
		issue, err := gw.GetIssue(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("get issue for resolve")
			continue
		}
		if needsTransition(issue.Status, resolvedStates(binding)) {
			tryResolvedTransition(ctx, gw, key, binding)
		}
		if version != "" {
			if err := AddPendingVersion(ctx, gw, issue, version); err != nil {
				log.Warn().Err(err).Str("key", key.String()).Msg("add pending version")
			}
		}
	}

	referencedMsg := referencedMergedCommentBody(branch, commit, commitURL, version)
	for _, key := range referenced {
		if err := gw.AddComment(ctx, key, referencedMsg); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("comment referenced resolve issue")
		}
	}
	return nil
}
