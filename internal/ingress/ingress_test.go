package ingress

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/octohub/webhook-hub/internal/dedup"
	"github.com/octohub/webhook-hub/internal/dispatch"
	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/model"
)

type fakeHost struct {
	pr model.PullRequest
}

func (f *fakeHost) GetPullRequest(ctx context.Context, repo model.RepoRef, number int) (model.PullRequest, error) {
	return f.pr, nil
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
	return nil
}
func (f *fakeHost) SetCheckRun(ctx context.Context, repo model.RepoRef, run model.CheckRun) error {
	return nil
}
func (f *fakeHost) AddLabel(ctx context.Context, repo model.RepoRef, number int, label string) error {
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
func (f *fakeHost) TeamMembers(ctx context.Context, owner, teamSlug string) ([]string, error) {
	return nil, nil
}
func (f *fakeHost) CloneURL(repo model.RepoRef) string { return "" }
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

type fakeRepos struct{}

func (fakeRepos) GetRepoConfig(ctx context.Context, repo model.RepoRef) (model.RepoConfig, error) {
	return model.RepoConfig{Repo: repo, NotifyMode: model.NotifyAll}, nil
}

type fakeNotifier struct {
	sent []messenger.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, n messenger.Notification) error {
	f.sent = append(f.sent, n)
	return nil
}

type fakeDedupStore struct {
	seen map[string]bool
}

func (f *fakeDedupStore) RecordDelivery(ctx context.Context, deliveryID, eventKind string) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[deliveryID] {
		return false, nil
	}
	f.seen[deliveryID] = true
	return true, nil
}

const secret = "sekrit"

func sign(body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestHandler(host *fakeHost, notifier *fakeNotifier) *Handler {
	d := &dispatch.Dispatcher{
		Host:     host,
		Notifier: notifier,
		Repos:    fakeRepos{},
		BotLogin: "hub-bot",
	}
	return &Handler{
		Secret:     secret,
		Dedup:      dedup.New(&fakeDedupStore{}),
		Dispatcher: d,
		Host:       host,
	}
}

func post(t *testing.T, h *Handler, event, deliveryID string, body []byte, signed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/hooks/source", strings.NewReader(string(body)))
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", deliveryID)
	if signed {
		req.Header.Set("X-Hub-Signature", sign(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHTTPMissingHeaders(t *testing.T) {
	h := newTestHandler(&fakeHost{}, &fakeNotifier{})
	req := httptest.NewRequest(http.MethodPost, "/hooks/source", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServeHTTPBadSignature(t *testing.T) {
	h := newTestHandler(&fakeHost{}, &fakeNotifier{})
	rec := post(t, h, "ping", "d1", []byte(`{}`), false)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestServeHTTPDuplicateDelivery(t *testing.T) {
	h := newTestHandler(&fakeHost{}, &fakeNotifier{})
	body := []byte(`{}`)
	first := post(t, h, "ping", "d1", body, true)
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d, want %d", first.Code, http.StatusOK)
	}
	second := post(t, h, "ping", "d1", body, true)
	if second.Code != http.StatusConflict {
		t.Fatalf("duplicate delivery status = %d, want %d", second.Code, http.StatusConflict)
	}
}

func TestServeHTTPNoRepoAcksAndDrops(t *testing.T) {
	h := newTestHandler(&fakeHost{}, &fakeNotifier{})
	rec := post(t, h, "installation", "d2", []byte(`{"action": "created"}`), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "no-repo") {
		t.Fatalf("body = %q, want a no-repo tag", rec.Body.String())
	}
}

const issueCommentOnPullRequestPayload = `{
  "action": "created",
  "repository": {"name": "hub", "owner": {"login": "octo"}},
  "issue": {
    "number": 12,
    "title": "Something broke",
    "user": {"login": "bob"},
    "pull_request": {"url": "https://api.github.com/repos/octo/hub/pulls/12"}
  },
  "comment": {"user": {"login": "carol"}, "body": "take a look"}
}`

func TestServeHTTPGraftsIssueIsPullRequestAssignees(t *testing.T) {
	host := &fakeHost{pr: model.PullRequest{
		Assignees: []model.UserRef{{Login: "dave"}},
	}}
	notifier := &fakeNotifier{}
	h := newTestHandler(host, notifier)
	rec := post(t, h, "issue_comment", "d3", []byte(issueCommentOnPullRequestPayload), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
}

const pullRequestOpenedThinPayload = `{
  "action": "opened",
  "repository": {"name": "hub", "owner": {"login": "octo"}},
  "pull_request": {
    "number": 9,
    "title": "Add feature",
    "state": "open",
    "draft": false,
    "user": {"login": "alice"},
    "head": {"ref": "alice/feature", "sha": "f00d"},
    "base": {"ref": "main"}
  }
}`

func TestServeHTTPGraftsMissingReviewers(t *testing.T) {
	host := &fakeHost{pr: model.PullRequest{
		Reviewers: []model.UserRef{{Login: "erin"}},
		HeadSHA:   "f00d",
	}}
	notifier := &fakeNotifier{}
	h := newTestHandler(host, notifier)
	rec := post(t, h, "pull_request", "d4", []byte(pullRequestOpenedThinPayload), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
	found := false
	for _, r := range notifier.sent[0].Recipients {
		if r.Login == "erin" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected grafted reviewer erin among recipients, got %+v", notifier.sent[0].Recipients)
	}
}

func TestServeHTTPPing(t *testing.T) {
	h := newTestHandler(&fakeHost{}, &fakeNotifier{})
	rec := post(t, h, "ping", "d5", []byte(`{"zen": "hello"}`), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"tag":"ping"`) {
		t.Fatalf("body = %q, want ping tag", rec.Body.String())
	}
}
