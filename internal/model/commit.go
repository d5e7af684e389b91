package model

import "time"

// Commit is a single commit as referenced by a pull request or a push event.
type Commit struct {
	SHA       string
	Message   string
	Author    UserRef
	Timestamp time.Time
}

// Title returns the first line of the commit message.
func (c Commit) Title() string {
	for i, r := range c.Message {
		if r == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

// Body returns everything after the first line, trimmed of leading blank
// lines.
func (c Commit) Body() string {
	for i, r := range c.Message {
		if r == '\n' {
			rest := c.Message[i+1:]
			for len(rest) > 0 && rest[0] == '\n' {
				rest = rest[1:]
			}
			return rest
		}
	}
	return ""
}

// PushEvent is a normalized "push" webhook: a ref update carrying zero or
// more commits.
type PushEvent struct {
	Repo    RepoRef
	Ref     string // e.g. "refs/heads/main"
	Before  string
	After   string
	Pusher  UserRef
	Commits []Commit
	Forced  bool
	// Created and Deleted mirror the webhook's own ref-lifecycle flags: a
	// branch's first push (Created) or its removal (Deleted). Both are
	// skipped by the push dispatcher, which only reacts to updates of an
	// existing branch.
	Created bool
	Deleted bool
}

// BranchName strips the refs/heads/ prefix from Ref, or returns "" if Ref
// does not name a branch.
func (p PushEvent) BranchName() string {
	const prefix = "refs/heads/"
	if len(p.Ref) <= len(prefix) || p.Ref[:len(prefix)] != prefix {
		return ""
	}
	return p.Ref[len(prefix):]
}
