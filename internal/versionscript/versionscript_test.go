package versionscript

import (
	"context"
	"errors"
	"testing"

	"github.com/octohub/webhook-hub/internal/engine"
	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/model"
)

type fakeGateway struct {
	issues     map[model.IssueKey]engine.Issue
	transition map[model.IssueKey][]string
	pending    map[model.IssueKey]string
	available  map[model.IssueKey][]engine.TransitionOption
	failGet    bool
	failSet    bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		issues:     map[model.IssueKey]engine.Issue{},
		transition: map[model.IssueKey][]string{},
		pending:    map[model.IssueKey]string{},
		available:  map[model.IssueKey][]engine.TransitionOption{},
	}
}

func (g *fakeGateway) GetIssue(ctx context.Context, key model.IssueKey) (engine.Issue, error) {
	if g.failGet {
		return engine.Issue{}, errors.New("get issue failed")
	}
	issue, ok := g.issues[key]
	if !ok {
		issue = engine.Issue{Key: key, Status: "In Progress"}
		g.issues[key] = issue
	}
	return issue, nil
}
func (g *fakeGateway) GetTransitions(ctx context.Context, key model.IssueKey) ([]engine.TransitionOption, error) {
	return g.available[key], nil
}
func (g *fakeGateway) ApplyTransition(ctx context.Context, key model.IssueKey, transitionID, resolution string) error {
	g.transition[key] = append(g.transition[key], transitionID)
	issue := g.issues[key]
	for _, opt := range g.available[key] {
		if opt.ID == transitionID {
			issue.Status = opt.ToStatus
		}
	}
	g.issues[key] = issue
	return nil
}
func (g *fakeGateway) AddComment(ctx context.Context, key model.IssueKey, body string) error {
	return nil
}
func (g *fakeGateway) SetPendingVersion(ctx context.Context, key model.IssueKey, version string) error {
	if g.failSet {
		return errors.New("set pending version failed")
	}
	g.pending[key] = version
	return nil
}
func (g *fakeGateway) AssignFixVersion(ctx context.Context, key model.IssueKey, version string) error {
	return nil
}
func (g *fakeGateway) ListProjectVersions(ctx context.Context, project string) ([]string, error) {
	return nil, nil
}
func (g *fakeGateway) CreateVersion(ctx context.Context, project, name string) error { return nil }
func (g *fakeGateway) ReorderVersion(ctx context.Context, project, name, after string) error {
	return nil
}
func (g *fakeGateway) ReleaseVersion(ctx context.Context, project, name string) error { return nil }

type fakeNotifier struct {
	sent []messenger.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, n messenger.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

func binding() model.JiraBinding {
	return model.JiraBinding{
		ProjectKey:         "HUB",
		Branch:             "release/1.0",
		ResolvedTransition: "Done",
		VersionScript:      "echo 1.2.3",
	}
}

func testPush() model.PushEvent {
	return model.PushEvent{
		Repo:  model.RepoRef{Owner: "octo", Name: "hub"},
		Ref:   "refs/heads/release/1.0",
		After: "cafef00d",
		Commits: []model.Commit{
			{SHA: "cafef00d", Message: "fix: crash on startup\n\nFixes HUB-142"},
		},
	}
}

func TestResolveCommitsRecordsConcreteVersionOnSuccess(t *testing.T) {
	gw := newFakeGateway()
	key := model.IssueKey{Project: "HUB", Number: 142}
	gw.available[key] = []engine.TransitionOption{{ID: "31", Name: "Done", ToStatus: "Done"}}
	r := &Runner{Tracker: gw}
	push := testPush()

	if err := r.resolveCommits(context.Background(), push, binding(), "release/1.0", "1.2.3"); err != nil {
		t.Fatalf("resolveCommits: %v", err)
	}
	if len(gw.transition[key]) != 1 || gw.transition[key][0] != "31" {
		t.Fatalf("transition = %v, want [31]", gw.transition[key])
	}
	if gw.pending[key] != "1.2.3" {
		t.Fatalf("pending version = %q, want 1.2.3", gw.pending[key])
	}
}

func TestResolveCommitsNoVersionLeavesPendingUntouched(t *testing.T) {
	gw := newFakeGateway()
	key := model.IssueKey{Project: "HUB", Number: 142}
	gw.available[key] = []engine.TransitionOption{{ID: "31", Name: "Done", ToStatus: "Done"}}
	r := &Runner{Tracker: gw}
	push := testPush()

	if err := r.resolveCommits(context.Background(), push, binding(), "release/1.0", ""); err != nil {
		t.Fatalf("resolveCommits: %v", err)
	}
	if len(gw.transition[key]) != 1 || gw.transition[key][0] != "31" {
		t.Fatalf("transition = %v, want [31]", gw.transition[key])
	}
	if _, ok := gw.pending[key]; ok {
		t.Fatalf("expected no pending version set, got %q", gw.pending[key])
	}
}

func TestNotifyFailureSendsChannelMessage(t *testing.T) {
	n := &fakeNotifier{}
	r := &Runner{Notifier: n}
	r.notifyFailure(context.Background(), binding(), "release/1.0", errors.New("exit status 1"))

	if len(n.sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(n.sent))
	}
	if n.sent[0].Mode != model.NotifyChannel {
		t.Fatalf("mode = %v, want NotifyChannel", n.sent[0].Mode)
	}
}

func TestNotifyFailureNoopsWithoutNotifier(t *testing.T) {
	r := &Runner{}
	r.notifyFailure(context.Background(), binding(), "release/1.0", errors.New("boom"))
}

func TestStripOverlayBanner(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1.2.3\n", "1.2.3\n"},
		{"OverlayFS: something\n1.2.3\n", "1.2.3\n"},
		{"OverlayFS: something", ""},
	}
	for _, c := range cases {
		if got := stripOverlayBanner(c.in); got != c.want {
			t.Fatalf("stripOverlayBanner(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCommitURL(t *testing.T) {
	got := commitURL(model.RepoRef{Owner: "octo", Name: "hub"}, "cafef00d")
	want := "https://github.com/octo/hub/commit/cafef00d"
	if got != want {
		t.Fatalf("commitURL = %q, want %q", got, want)
	}
}

func TestRunSkipsWhenVersionScriptEmpty(t *testing.T) {
	r := &Runner{}
	b := binding()
	b.VersionScript = ""
	if err := r.Run(context.Background(), testPush(), b); err != nil {
		t.Fatalf("Run with empty version script: %v", err)
	}
}
