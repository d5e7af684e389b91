package engine

import (
	"context"

	"github.com/octohub/webhook-hub/internal/model"
)

// fakeGateway is an in-memory Gateway used by the engine's own tests. It is
// intentionally not exported: adapters test against the real tracker
// client in internal/tracker.
type fakeGateway struct {
	issues      map[model.IssueKey]Issue
	versions    map[string][]string
	comments    map[model.IssueKey][]string
	transitions map[model.IssueKey][]string // (transitionID, resolution) pairs applied, flattened
	fixVersions map[model.IssueKey][]string

	// available is the set of transitions GetTransitions reports for a key.
	// Tests populate it directly; a key with no entry reports none.
	available map[model.IssueKey][]TransitionOption
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		issues:      make(map[model.IssueKey]Issue),
		versions:    make(map[string][]string),
		comments:    make(map[model.IssueKey][]string),
		transitions: make(map[model.IssueKey][]string),
		fixVersions: make(map[model.IssueKey][]string),
		available:   make(map[model.IssueKey][]TransitionOption),
	}
}

func (f *fakeGateway) GetIssue(ctx context.Context, key model.IssueKey) (Issue, error) {
	issue, ok := f.issues[key]
	if !ok {
		issue = Issue{Key: key, Status: "open"}
		f.issues[key] = issue
	}
	return issue, nil
}

func (f *fakeGateway) GetTransitions(ctx context.Context, key model.IssueKey) ([]TransitionOption, error) {
	return f.available[key], nil
}

func (f *fakeGateway) ApplyTransition(ctx context.Context, key model.IssueKey, transitionID, resolution string) error {
	var opt TransitionOption
	for _, o := range f.available[key] {
		if o.ID == transitionID {
			opt = o
			break
		}
	}
	issue := f.issues[key]
	if opt.ToStatus != "" {
		issue.Status = opt.ToStatus
	} else {
		issue.Status = transitionID
	}
	f.issues[key] = issue
	f.transitions[key] = append(f.transitions[key], transitionID+"/"+resolution)
	return nil
}

func (f *fakeGateway) AddComment(ctx context.Context, key model.IssueKey, body string) error {
	f.comments[key] = append(f.comments[key], body)
	return nil
}

func (f *fakeGateway) SetPendingVersion(ctx context.Context, key model.IssueKey, v string) error {
	issue := f.issues[key]
	issue.PendingVersion = v
	f.issues[key] = issue
	return nil
}

func (f *fakeGateway) AssignFixVersion(ctx context.Context, key model.IssueKey, version string) error {
	f.fixVersions[key] = append(f.fixVersions[key], version)
	return nil
}

func (f *fakeGateway) ListProjectVersions(ctx context.Context, project string) ([]string, error) {
	return f.versions[project], nil
}

func (f *fakeGateway) CreateVersion(ctx context.Context, project, name string) error {
	f.versions[project] = append(f.versions[project], name)
	return nil
}

func (f *fakeGateway) ReorderVersion(ctx context.Context, project, name string, after string) error {
	return nil
}

func (f *fakeGateway) ReleaseVersion(ctx context.Context, project, name string) error {
	var kept []string
	for _, v := range f.versions[project] {
		if v != name {
			kept = append(kept, v)
		}
	}
	f.versions[project] = kept
	return nil
}
