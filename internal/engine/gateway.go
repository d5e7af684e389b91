package engine

import (
	"context"

	"github.com/octohub/webhook-hub/internal/model"
)

// Issue is the workflow engine's view of a tracker issue: just enough to
// drive transitions and pending-version bookkeeping.
type Issue struct {
	Key            model.IssueKey
	Status         string // tracker's current status name
	PendingVersion string // custom-field value recording resolved-but-unreleased fix versions
	FixVersions    []string
}

// TransitionOption is one workflow transition currently available on an
// issue: its id (what a caller submits back to move the issue), the
// transition's own name, the status it lands on, and the resolution values
// allowed if its target status carries a resolution field.
type TransitionOption struct {
	ID                 string
	Name               string
	ToStatus           string
	AllowedResolutions []string
}

// Gateway is the subset of tracker capability the engine needs. The
// concrete implementation lives in internal/tracker and wraps go-jira; tests
// use an in-memory fake.
type Gateway interface {
	GetIssue(ctx context.Context, key model.IssueKey) (Issue, error)
	GetTransitions(ctx context.Context, key model.IssueKey) ([]TransitionOption, error)
	// ApplyTransition submits transitionID, attaching resolution when
	// non-empty. A transition whose target status carries no resolution
	// field ignores a non-empty resolution.
	ApplyTransition(ctx context.Context, key model.IssueKey, transitionID, resolution string) error
	AddComment(ctx context.Context, key model.IssueKey, body string) error
	SetPendingVersion(ctx context.Context, key model.IssueKey, pendingField string) error
	AssignFixVersion(ctx context.Context, key model.IssueKey, version string) error
	ListProjectVersions(ctx context.Context, project string) ([]string, error)
	CreateVersion(ctx context.Context, project, name string) error
	ReorderVersion(ctx context.Context, project, name string, after string) error
	ReleaseVersion(ctx context.Context, project, name string) error
}
