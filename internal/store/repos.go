package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/octohub/webhook-hub/internal/model"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// GetRepoConfig loads a repo's configuration and its jira bindings. Returns
// ErrNotFound if the repo has no configured row (callers fall back to
// defaults — an unconfigured repo still gets webhook processing, just with
// no jira binding and no chat routing).
func (db *DB) GetRepoConfig(ctx context.Context, repo model.RepoRef) (model.RepoConfig, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, owner, name, default_channel, notify_mode, jira_check_enabled, force_push_notify
		FROM repo_configs WHERE owner = ? AND name = ?`, repo.Owner, repo.Name)

	var rc model.RepoConfig
	var notifyMode string
	var jiraCheckEnabled, forcePushNotify int
	if err := row.Scan(&rc.ID, &rc.Repo.Owner, &rc.Repo.Name, &rc.DefaultChannel, &notifyMode, &jiraCheckEnabled, &forcePushNotify); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RepoConfig{}, ErrNotFound
		}
		return model.RepoConfig{}, fmt.Errorf("get repo config: %w", err)
	}
	rc.NotifyMode = parseNotifyMode(notifyMode)
	rc.JiraCheckEnabled = jiraCheckEnabled != 0
	rc.ForcePushNotify = forcePushNotify != 0

	bindings, err := db.listJiraBindings(ctx, rc.ID)
	if err != nil {
		return model.RepoConfig{}, err
	}
	rc.JiraBindings = bindings
	return rc, nil
}

// ListRepoConfigs returns every configured repo, each with its jira
// bindings populated, ordered by owner/name.
func (db *DB) ListRepoConfigs(ctx context.Context) ([]model.RepoConfig, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, owner, name, default_channel, notify_mode, jira_check_enabled, force_push_notify
		FROM repo_configs ORDER BY owner, name`)
	if err != nil {
		return nil, fmt.Errorf("list repo configs: %w", err)
	}
	defer rows.Close()

	var out []model.RepoConfig
	for rows.Next() {
		var rc model.RepoConfig
		var notifyMode string
		var jiraCheckEnabled, forcePushNotify int
		if err := rows.Scan(&rc.ID, &rc.Repo.Owner, &rc.Repo.Name, &rc.DefaultChannel, &notifyMode, &jiraCheckEnabled, &forcePushNotify); err != nil {
			return nil, fmt.Errorf("scan repo config: %w", err)
		}
		rc.NotifyMode = parseNotifyMode(notifyMode)
		rc.JiraCheckEnabled = jiraCheckEnabled != 0
		rc.ForcePushNotify = forcePushNotify != 0
		out = append(out, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		bindings, err := db.listJiraBindings(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].JiraBindings = bindings
	}
	return out, nil
}

func (db *DB) listJiraBindings(ctx context.Context, repoConfigID int64) ([]model.JiraBinding, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, branch, project_key, channel, progress_transition, review_transition, resolved_transition
		FROM jira_bindings WHERE repo_config_id = ?`, repoConfigID)
	if err != nil {
		return nil, fmt.Errorf("list jira bindings: %w", err)
	}
	defer rows.Close()

	var out []model.JiraBinding
	for rows.Next() {
		var b model.JiraBinding
		if err := rows.Scan(&b.ID, &b.Branch, &b.ProjectKey, &b.Channel, &b.ProgressTransition, &b.ReviewTransition, &b.ResolvedTransition); err != nil {
			return nil, fmt.Errorf("scan jira binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertRepoConfig creates or updates a repo's top-level configuration row
// (not its jira bindings, which are managed separately via
// UpsertJiraBinding/DeleteJiraBinding).
func (db *DB) UpsertRepoConfig(ctx context.Context, rc model.RepoConfig) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO repo_configs (owner, name, default_channel, notify_mode, jira_check_enabled, force_push_notify)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, name) DO UPDATE SET
			default_channel = excluded.default_channel,
			notify_mode = excluded.notify_mode,
			jira_check_enabled = excluded.jira_check_enabled,
			force_push_notify = excluded.force_push_notify`,
		rc.Repo.Owner, rc.Repo.Name, rc.DefaultChannel, rc.NotifyMode.String(), boolToInt(rc.JiraCheckEnabled), boolToInt(rc.ForcePushNotify))
	if err != nil {
		return 0, fmt.Errorf("upsert repo config: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		// ON CONFLICT DO UPDATE doesn't report LastInsertId portably
		// across drivers; re-read the row's id instead of erroring.
		row := db.QueryRowContext(ctx, `SELECT id FROM repo_configs WHERE owner = ? AND name = ?`, rc.Repo.Owner, rc.Repo.Name)
		if scanErr := row.Scan(&id); scanErr != nil {
			return 0, fmt.Errorf("upsert repo config: resolve id: %w", scanErr)
		}
	}
	return id, nil
}

// DeleteRepoConfig removes a repo's configuration, cascading to its jira
// bindings.
func (db *DB) DeleteRepoConfig(ctx context.Context, repo model.RepoRef) error {
	_, err := db.ExecContext(ctx, `DELETE FROM repo_configs WHERE owner = ? AND name = ?`, repo.Owner, repo.Name)
	if err != nil {
		return fmt.Errorf("delete repo config: %w", err)
	}
	return nil
}

// UpsertJiraBinding creates or replaces the binding for (repoConfigID, branch).
func (db *DB) UpsertJiraBinding(ctx context.Context, repoConfigID int64, b model.JiraBinding) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO jira_bindings (repo_config_id, branch, project_key, channel, progress_transition, review_transition, resolved_transition)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_config_id, branch) DO UPDATE SET
			project_key = excluded.project_key,
			channel = excluded.channel,
			progress_transition = excluded.progress_transition,
			review_transition = excluded.review_transition,
			resolved_transition = excluded.resolved_transition`,
		repoConfigID, b.Branch, b.ProjectKey, b.Channel, b.ProgressTransition, b.ReviewTransition, b.ResolvedTransition)
	if err != nil {
		return fmt.Errorf("upsert jira binding: %w", err)
	}
	return nil
}

// DeleteJiraBinding removes the binding for (repoConfigID, branch).
func (db *DB) DeleteJiraBinding(ctx context.Context, repoConfigID int64, branch string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM jira_bindings WHERE repo_config_id = ? AND branch = ?`, repoConfigID, branch)
	if err != nil {
		return fmt.Errorf("delete jira binding: %w", err)
	}
	return nil
}

// ReplaceJiraBindings atomically swaps repoConfigID's jira bindings for the
// given set, used by the admin CRUD surface where a PUT/POST carries the
// full desired binding list rather than one at a time.
func (db *DB) ReplaceJiraBindings(ctx context.Context, repoConfigID int64, bindings []model.JiraBinding) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace jira bindings: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM jira_bindings WHERE repo_config_id = ?`, repoConfigID); err != nil {
		return fmt.Errorf("replace jira bindings: clear: %w", err)
	}
	for _, b := range bindings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO jira_bindings (repo_config_id, branch, project_key, channel, progress_transition, review_transition, resolved_transition)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			repoConfigID, b.Branch, b.ProjectKey, b.Channel, b.ProgressTransition, b.ReviewTransition, b.ResolvedTransition)
		if err != nil {
			return fmt.Errorf("replace jira bindings: insert: %w", err)
		}
	}
	return tx.Commit()
}

func parseNotifyMode(s string) model.NotifyMode {
	switch s {
	case "channel":
		return model.NotifyChannel
	case "none":
		return model.NotifyNone
	case "owner":
		return model.NotifyOwner
	default:
		return model.NotifyAll
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
