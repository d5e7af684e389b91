package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/version"
)

// pendingSeparator joins the versions recorded in an issue's pending-version
// field: one issue can accumulate several unreleased fix candidates before
// any cut actually claims it.
const pendingSeparator = ", "

// splitPendingVersions parses an issue's pending-version field into its
// component versions, silently dropping any entry that doesn't parse: the
// field is free text a human can also edit.
func splitPendingVersions(field string) []version.Version {
	var out []version.Version
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := version.Parse(part)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func joinPendingVersions(versions []version.Version) string {
	names := make([]string, len(versions))
	for i, v := range versions {
		names[i] = v.String()
	}
	return strings.Join(names, pendingSeparator)
}

func dedupeVersions(versions []version.Version) []version.Version {
	out := versions[:0:0]
	for i, v := range versions {
		if i > 0 && v.Equal(versions[i-1]) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// AddPendingVersion records that issue's fix landed in newVersion but has
// not yet been assigned as a tracker fix-version, appending newVersion to
// the issue's pending-version field if it isn't already present.
func AddPendingVersion(ctx context.Context, gw Gateway, issue Issue, newVersion string) error {
	if newVersion == "" {
		return nil
	}
	v, err := version.Parse(newVersion)
	if err != nil {
		return fmt.Errorf("add pending version: %w", err)
	}
	versions := append(splitPendingVersions(issue.PendingVersion), v)
	versions = dedupeVersions(version.Sort(versions))
	return gw.SetPendingVersion(ctx, issue.Key, joinPendingVersions(versions))
}

// FindRelevantVersions returns, from pending, the versions that target's
// cut should claim: those sharing target's major.minor train, not exceeding
// target, and strictly above the highest already-released version below
// target in that same train (or "0.0.0.0" if none has shipped yet). This
// keeps an already-released version from reclaiming a fix a later cut
// should carry instead.
func FindRelevantVersions(target version.Version, pending []version.Version, real []string) []version.Version {
	floor := version.MustParse("0.0.0.0")
	for _, name := range real {
		v, err := version.Parse(name)
		if err != nil {
			continue
		}
		if v.Major() != target.Major() || v.Minor() != target.Minor() {
			continue
		}
		if !v.Less(target) {
			continue
		}
		if v.After(floor) {
			floor = v
		}
	}

	var relevant []version.Version
	for _, v := range pending {
		if v.Major() != target.Major() || v.Minor() != target.Minor() {
			continue
		}
		if v.After(target) {
			continue
		}
		if !v.After(floor) {
			continue
		}
		relevant = append(relevant, v)
	}
	return version.Sort(relevant)
}

// MergeMode selects whether MergePendingVersions previews its plan or
// applies it.
type MergeMode int

const (
	DryRun MergeMode = iota
	ForReal
)

// PendingAssignment is one issue's resolved pending-version assignment: the
// pending versions that target absorbs.
type PendingAssignment struct {
	Key      model.IssueKey
	Versions []string
}

func parseVersions(names []string) []version.Version {
	var out []version.Version
	for _, name := range names {
		v, err := version.Parse(name)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func containsVersion(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

func removeVersions(all, remove []string) []string {
	excluded := make(map[string]bool, len(remove))
	for _, r := range remove {
		excluded[r] = true
	}
	out := make([]string, 0, len(all))
	for _, n := range all {
		if !excluded[n] {
			out = append(out, n)
		}
	}
	return out
}

// MergePendingVersions resolves every issue's pending versions against
// target, creating target in the project if it doesn't exist yet, assigning
// it as a fix version to every issue with a relevant pending version, and
// removing those pending versions from the issue's bookkeeping field.
// DryRun computes the same plan without calling any of the gateway's
// mutating methods, for admin preview endpoints. pending maps each issue to
// its currently recorded pending versions, as supplied by the caller's own
// project-wide search.
func MergePendingVersions(ctx context.Context, gw Gateway, mode MergeMode, project, target string, pending map[model.IssueKey][]string) ([]PendingAssignment, error) {
	targetVersion, err := version.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("merge pending versions: invalid target version %q: %w", target, err)
	}
	real, err := gw.ListProjectVersions(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("merge pending versions: list versions for %s: %w", project, err)
	}

	keys := make([]model.IssueKey, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Project != keys[j].Project {
			return keys[i].Project < keys[j].Project
		}
		return keys[i].Number < keys[j].Number
	})

	var assignments []PendingAssignment
	for _, key := range keys {
		relevant := FindRelevantVersions(targetVersion, parseVersions(pending[key]), real)
		if len(relevant) == 0 {
			continue
		}
		names := make([]string, len(relevant))
		for i, v := range relevant {
			names[i] = v.String()
		}
		assignments = append(assignments, PendingAssignment{Key: key, Versions: names})
	}

	if mode == DryRun {
		return assignments, nil
	}

	if !containsVersion(real, target) {
		if err := gw.CreateVersion(ctx, project, target); err != nil {
			return nil, fmt.Errorf("merge pending versions: create version %q in %s: %w", target, project, err)
		}
	}

	for _, a := range assignments {
		if err := gw.AssignFixVersion(ctx, a.Key, target); err != nil {
			log.Warn().Err(err).Str("key", a.Key.String()).Str("version", target).Msg("assign fix version")
			continue
		}
		remaining := removeVersions(pending[a.Key], a.Versions)
		if err := gw.SetPendingVersion(ctx, a.Key, strings.Join(remaining, pendingSeparator)); err != nil {
			log.Warn().Err(err).Str("key", a.Key.String()).Msg("clear merged pending versions")
			continue
		}
	}
	return assignments, nil
}
