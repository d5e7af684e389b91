// Package versionscript runs a repo's configured version-cutting script
// against a pushed release branch in a sandboxed subprocess, then records
// the resulting version (or its absence, on failure) against every issue
// the push fixed. Grounded on the original implementation's
// comment_repo_version/run_script pair: same firejail flags, same
// overlay-banner stripping, same "still resolve with no version on
// failure" fallback.
package versionscript

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/octohub/webhook-hub/internal/dirpool"
	"github.com/octohub/webhook-hub/internal/engine"
	"github.com/octohub/webhook-hub/internal/gitshell"
	"github.com/octohub/webhook-hub/internal/messenger"
	"github.com/octohub/webhook-hub/internal/model"
)

// Notifier is the capability internal/messenger.Messenger provides.
type Notifier interface {
	Notify(ctx context.Context, n messenger.Notification) error
}

// Runner implements dispatch.VersionScriptRunner.
type Runner struct {
	DirPool  *dirpool.Pool
	HostName string // dirpool key prefix, e.g. "github.com"
	CloneURL func(repo model.RepoRef) string
	Tracker  engine.Gateway
	Notifier Notifier
}

// Run computes binding's version script result against push's branch and
// records it on every issue the push fixed under binding's project.
func (r *Runner) Run(ctx context.Context, push model.PushEvent, binding model.JiraBinding) error {
	if binding.VersionScript == "" {
		return nil
	}
	if runtime.GOOS != "linux" {
		return fmt.Errorf("versionscript: sandbox requires linux, running on %s", runtime.GOOS)
	}

	branch := push.BranchName()
	lease, err := r.DirPool.Acquire(ctx, dirpool.KeyFor(r.HostName, push.Repo))
	if err != nil {
		return fmt.Errorf("versionscript: acquire working directory: %w", err)
	}
	defer lease.Release()

	repo, err := r.ensureClone(ctx, lease.Dir, push.Repo)
	if err != nil {
		return fmt.Errorf("versionscript: clone: %w", err)
	}
	if err := repo.Checkout(ctx, push.After); err != nil {
		return fmt.Errorf("versionscript: checkout %s: %w", push.After, err)
	}

	version, runErr := runSandboxed(ctx, lease.Dir, binding.VersionScript)
	if runErr != nil {
		log.Error().Err(runErr).Str("project", binding.ProjectKey).Str("branch", branch).Msg("version script failed")
		r.notifyFailure(ctx, binding, branch, runErr)
		return r.resolveCommits(ctx, push, binding, branch, "")
	}
	return r.resolveCommits(ctx, push, binding, branch, version)
}

// ensureClone reuses dir's existing checkout (fetching fresh refs) or
// clones into it if this is the pool slot's first lease.
func (r *Runner) ensureClone(ctx context.Context, dir string, repoRef model.RepoRef) (gitshell.Repo, error) {
	repo := gitshell.Repo{Dir: dir}
	if _, err := repo.HeadSHA(ctx); err == nil {
		return repo, repo.Fetch(ctx)
	}
	return gitshell.Clone(ctx, r.CloneURL(repoRef), dir)
}

// resolveCommits applies spec.md §4.3.3's resolve_issue to every pushed
// commit, scoped to binding's project, passing version through so
// ResolveIssue appends it to each fixed issue's pending-version field; with
// version "" the issues are still resolved and nothing is appended.
func (r *Runner) resolveCommits(ctx context.Context, push model.PushEvent, binding model.JiraBinding, branch, version string) error {
	var firstErr error
	for _, c := range push.Commits {
		url := commitURL(push.Repo, c.SHA)
		if err := engine.ResolveIssue(ctx, r.Tracker, binding, c, branch, url, version); err != nil {
			log.Warn().Err(err).Str("sha", c.SHA).Msg("resolve issue for version script")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Runner) notifyFailure(ctx context.Context, binding model.JiraBinding, branch string, runErr error) {
	if r.Notifier == nil {
		return
	}
	rc := model.RepoConfig{JiraBindings: []model.JiraBinding{binding}}
	text := fmt.Sprintf("Version script failed for project %s on branch %s:\n%s\n%s", binding.ProjectKey, branch, binding.VersionScript, runErr.Error())
	if err := r.Notifier.Notify(ctx, messenger.Notification{
		RepoConfig:         rc,
		Branch:             branch,
		ReferencedProjects: []string{binding.ProjectKey},
		Mode:               model.NotifyChannel,
		Text:               text,
	}); err != nil {
		log.Warn().Err(err).Msg("notify version script failure")
	}
}

func commitURL(repo model.RepoRef, sha string) string {
	return fmt.Sprintf("https://github.com/%s/%s/commit/%s", repo.Owner, repo.Name, sha)
}

// runSandboxed runs script under firejail, isolated to dir with no network
// and a private tmp/dev/etc, mirroring the original implementation's exact
// flag set.
func runSandboxed(ctx context.Context, dir, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "firejail",
		"--overlay-tmpfs",
		"--quiet",
		"--private=.",
		"--private-etc=hostname",
		"--net=none",
		"--private-tmp",
		"--private-dev",
		"-c", "bash", "-c", script,
	)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := strings.TrimSpace(stripOverlayBanner(stdout.String()))
	if runErr != nil {
		msg := out
		if stderr.Len() > 0 {
			msg = strings.TrimSpace(msg + "\n" + stderr.String())
		}
		return "", fmt.Errorf("exit: %w: %s", runErr, msg)
	}
	if out == "" {
		return "", fmt.Errorf("version script produced no output")
	}
	return out, nil
}

// stripOverlayBanner drops firejail's own "OverlayFS" status line, which
// --quiet doesn't suppress.
func stripOverlayBanner(out string) string {
	if !strings.HasPrefix(out, "OverlayFS") {
		return out
	}
	lines := strings.SplitN(out, "\n", 2)
	if len(lines) < 2 {
		return ""
	}
	return strings.TrimLeft(lines[1], "\n")
}
