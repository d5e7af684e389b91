package backport

import (
	"context"
	"testing"

	"github.com/octohub/webhook-hub/internal/model"
)

func TestTail(t *testing.T) {
	cases := map[string]string{
		"feature/foo": "foo",
		"release/1.2": "1.2",
		"main":        "main",
	}
	for in, want := range cases {
		if got := tail(in); got != want {
			t.Errorf("tail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRewriteMessageAddsTailsAndCherryPickTrailer(t *testing.T) {
	msg := "fix(auth): reject expired tokens (#42)\n\nCloses HUB-9."
	title, body := rewriteMessage(msg, "feature/auth-fix", "release/2.0", "abcdef1234567", 42)

	wantTitle := "fix(auth): auth-fix->2.0: reject expired tokens"
	if title != wantTitle {
		t.Errorf("title = %q, want %q", title, wantTitle)
	}
	wantBody := "Closes HUB-9.\n\n(cherry-picked from abcdef1, PR #42)"
	if body != wantBody {
		t.Errorf("body = %q, want %q", body, wantBody)
	}
}

func TestRewriteMessageWithoutConventionalPrefix(t *testing.T) {
	title, _ := rewriteMessage("reject expired tokens", "fix-auth", "main", "deadbeef", 7)
	want := "fix-auth->main: reject expired tokens"
	if title != want {
		t.Errorf("title = %q, want %q", title, want)
	}
}

func TestRewriteMessageStripsPriorBackportPrefix(t *testing.T) {
	msg := "foo->bar: fix(auth): reject expired tokens"
	title, _ := rewriteMessage(msg, "foo", "baz", "deadbeef", 7)
	want := "fix(auth): foo->baz: reject expired tokens"
	if title != want {
		t.Errorf("title = %q, want %q", title, want)
	}
}

func TestRewriteMessageNoBody(t *testing.T) {
	_, body := rewriteMessage("fix it", "a", "b", "123456789", 1)
	want := "(cherry-picked from 1234567, PR #1)"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestDeriveTargetMainBranchUsedVerbatim(t *testing.T) {
	r := &Runner{}
	got, ok := r.deriveTarget("backport-main")
	if !ok || got != "main" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestDeriveTargetReleaseTrainGetsPrefixed(t *testing.T) {
	r := &Runner{ReleaseBranchPrefix: "release/"}
	got, ok := r.deriveTarget("backport-2.4")
	if !ok || got != "release/2.4" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestDeriveTargetRejectsNonBackportLabel(t *testing.T) {
	r := &Runner{}
	if _, ok := r.deriveTarget("bug"); ok {
		t.Fatal("expected no match for non-backport label")
	}
}

func TestDedupeLoginsCaseInsensitive(t *testing.T) {
	users := []model.UserRef{{Login: "Alice"}, {Login: "alice"}, {Login: "bob"}, {Login: ""}}
	got := dedupeLogins(users)
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestExcludeLogin(t *testing.T) {
	users := []model.UserRef{{Login: "alice"}, {Login: "Bob"}}
	got := excludeLogin(users, "bob")
	if len(got) != 1 || got[0].Login != "alice" {
		t.Fatalf("got %v", got)
	}
}

func TestRunNoOpsOnNonBackportLabel(t *testing.T) {
	r := &Runner{}
	pr := model.PullRequest{Number: 1}
	if err := r.Run(context.Background(), pr, "bug"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunFailsWithoutMergeCommit(t *testing.T) {
	host := newFakeHost()
	r := &Runner{Host: host}
	pr := model.PullRequest{Number: 1, Author: model.UserRef{Login: "alice"}}
	err := r.Run(context.Background(), pr, "backport-main")
	if err == nil {
		t.Fatal("expected error for missing merge commit")
	}
	if len(host.comments) != 1 {
		t.Fatalf("expected one failure comment, got %v", host.comments)
	}
	if host.labels[1] != failedBackportLabel {
		t.Fatalf("expected failed-backport label, got %v", host.labels)
	}
}

type fakeHost struct {
	comments []string
	labels   map[int]string
}

func newFakeHost() *fakeHost {
	return &fakeHost{labels: map[int]string{}}
}

func (f *fakeHost) GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (model.PullRequest, error) {
	return model.PullRequest{}, nil
}
func (f *fakeHost) ListCommits(ctx context.Context, repo model.RepoRef, number int) ([]model.Commit, error) {
	return nil, nil
}
func (f *fakeHost) ListReviews(ctx context.Context, repo model.RepoRef, number int) ([]model.Review, error) {
	return nil, nil
}
func (f *fakeHost) ListOpenPullRequests(ctx context.Context, repo model.RepoRef) ([]model.PullRequest, error) {
	return nil, nil
}
func (f *fakeHost) AddAssignees(ctx context.Context, repo model.RepoRef, number int, logins []string) error {
	return nil
}
func (f *fakeHost) CreateComment(ctx context.Context, repo model.RepoRef, number int, body string) error {
	f.comments = append(f.comments, body)
	return nil
}
func (f *fakeHost) SetCheckRun(ctx context.Context, repo model.RepoRef, run model.CheckRun) error {
	return nil
}
func (f *fakeHost) AddLabel(ctx context.Context, repo model.RepoRef, number int, label string) error {
	f.labels[number] = label
	return nil
}
func (f *fakeHost) RemoveLabel(ctx context.Context, repo model.RepoRef, number int, label string) error {
	return nil
}
func (f *fakeHost) DismissReview(ctx context.Context, repo model.RepoRef, number int, reviewID int64, message string) error {
	return nil
}
func (f *fakeHost) RequestReviewers(ctx context.Context, repo model.RepoRef, number int, logins []string) error {
	return nil
}
func (f *fakeHost) CreatePullRequest(ctx context.Context, repo model.RepoRef, title, body, head, base string) (model.PullRequest, error) {
	return model.PullRequest{}, nil
}
func (f *fakeHost) BranchExists(ctx context.Context, repo model.RepoRef, branch string) (bool, error) {
	return false, nil
}
func (f *fakeHost) CreateBranch(ctx context.Context, repo model.RepoRef, branch, sha string) error {
	return nil
}
func (f *fakeHost) DeleteBranch(ctx context.Context, repo model.RepoRef, branch string) error {
	return nil
}
func (f *fakeHost) ApprovePullRequest(ctx context.Context, repo model.RepoRef, number int, commitSHA, body string) error {
	return nil
}
func (f *fakeHost) GetTimeline(ctx context.Context, repo model.RepoRef, number int) ([]model.TimelineEvent, error) {
	return nil, nil
}
func (f *fakeHost) TeamMembers(ctx context.Context, owner, teamSlug string) ([]string, error) {
	return nil, nil
}
func (f *fakeHost) CloneURL(repo model.RepoRef) string { return "https://example.invalid/" + repo.String() }
