// Package version implements the dotted release-version ordering the issue
// tracker workflow engine uses to decide which unreleased version a resolved
// issue's fix should be filed against.
package version

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Version is a dotted numeric release version, e.g. "1.4.2". Unlike semver,
// it has no required arity: "1.4" and "1.4.0.1" are both valid and compare
// component-wise, treating missing trailing components as zero.
type Version struct {
	raw        string
	components []int
}

// Parse parses a dotted numeric version string. Non-numeric components
// (pre-release tags like "1.4-rc1") are rejected: the tracker's version
// field is a plain release train, not semver.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Version{}, fmt.Errorf("version: empty string")
	}
	parts := strings.Split(trimmed, ".")
	components := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("version: invalid component %q in %q", p, s)
		}
		components[i] = n
	}
	return Version{raw: trimmed, components: components}, nil
}

// MustParse parses s and panics on error. Only used for literal test
// fixtures and compile-time constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return v.raw
}

func (v Version) IsZero() bool {
	return v.raw == ""
}

// component returns v's i'th dotted component, or 0 if v has fewer than
// i+1 components.
func (v Version) component(i int) int {
	if i < len(v.components) {
		return v.components[i]
	}
	return 0
}

// Major returns v's first dotted component.
func (v Version) Major() int { return v.component(0) }

// Minor returns v's second dotted component.
func (v Version) Minor() int { return v.component(1) }

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater than
// other, comparing components left to right and treating a shorter version
// as zero-padded.
func (v Version) Compare(other Version) int {
	n := len(v.components)
	if len(other.components) > n {
		n = len(other.components)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v.components) {
			a = v.components[i]
		}
		if i < len(other.components) {
			b = other.components[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (v Version) Less(other Version) bool    { return v.Compare(other) < 0 }
func (v Version) Equal(other Version) bool   { return v.Compare(other) == 0 }
func (v Version) After(other Version) bool   { return v.Compare(other) > 0 }

// Sort sorts versions ascending in place and also returns the slice.
func Sort(versions []Version) []Version {
	sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })
	return versions
}

// InsertionPoint describes where a newly-created pending version should be
// placed relative to a project's existing, unreleased version list: at the
// very front of the list, or immediately after a named existing version.
type InsertionPoint struct {
	After string // empty means "First"
}

// First is the insertion point placing a version before every other
// unreleased version.
func First() InsertionPoint { return InsertionPoint{} }

// After returns the insertion point placing a version immediately following
// name in ordering.
func After(name string) InsertionPoint { return InsertionPoint{After: name} }

// SortVersions reorders names according to point: when point is First, name
// moves to the head of names; when point.After is set, name moves to sit
// immediately after that version. names not including name, or not
// including point.After, leave the order for the missing entries as-is.
// This mirrors the tracker's own "move version" semantics, which reorders a
// version's position without changing its release status.
func SortVersions(names []string, name string, point InsertionPoint) []string {
	filtered := make([]string, 0, len(names))
	for _, n := range names {
		if n != name {
			filtered = append(filtered, n)
		}
	}
	if point.After == "" {
		return append([]string{name}, filtered...)
	}
	out := make([]string, 0, len(names))
	inserted := false
	for _, n := range filtered {
		out = append(out, n)
		if n == point.After {
			out = append(out, name)
			inserted = true
		}
	}
	if !inserted {
		out = append(out, name)
	}
	return out
}
