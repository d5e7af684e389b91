// Package model holds the value types shared across the hub: repo/user/branch
// references, pull requests, commits, labels, hook events and check runs.
package model

import "strings"

// RepoRef identifies a repository by its natural key, not by any internal id.
// Two RepoRefs are equal iff owner and name match case-insensitively, per the
// host's own repo-naming rules.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

func (r RepoRef) Equal(other RepoRef) bool {
	return strings.EqualFold(r.Owner, other.Owner) && strings.EqualFold(r.Name, other.Name)
}

// UserRef identifies a user by login, the only stable natural key the source
// host, tracker and chat system all agree on (bindings join across systems on
// it).
type UserRef struct {
	Login string
}

func (u UserRef) Equal(other UserRef) bool {
	return strings.EqualFold(u.Login, other.Login)
}

// BranchRef identifies a branch within a repo.
type BranchRef struct {
	Repo RepoRef
	Name string
}

func (b BranchRef) Equal(other BranchRef) bool {
	return b.Repo.Equal(other.Repo) && b.Name == other.Name
}

func (b BranchRef) String() string {
	return b.Repo.String() + "@" + b.Name
}

// MainBranches is the set of branch names treated as a repo's mainline for
// the purposes of the force-push and backport rules.
var MainBranches = map[string]bool{
	"master":  true,
	"develop": true,
	"main":    true,
}

// IsMainBranch reports whether name is one of the conventional mainline
// branch names.
func IsMainBranch(name string) bool {
	return MainBranches[name]
}
