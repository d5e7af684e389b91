package store

import (
	"context"
	"fmt"

	"github.com/octohub/webhook-hub/internal/model"
)

// SetPendingVersion records (or clears, when branches is empty) the set of
// branches an issue's fix has landed on, pending a cut release. This is a
// local mirror of the tracker's own pending-version custom field, kept so
// the admin merge-preview endpoint can list candidates without a JQL search
// against every issue in a project.
func (db *DB) SetPendingVersion(ctx context.Context, key model.IssueKey, branches string) error {
	if branches == "" {
		_, err := db.ExecContext(ctx, `DELETE FROM pending_issue_versions WHERE project_key = ? AND issue_number = ?`, key.Project, key.Number)
		if err != nil {
			return fmt.Errorf("clear pending version: %w", err)
		}
		return nil
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO pending_issue_versions (project_key, issue_number, pending_branches)
		VALUES (?, ?, ?)
		ON CONFLICT(project_key, issue_number) DO UPDATE SET pending_branches = excluded.pending_branches`,
		key.Project, key.Number, branches)
	if err != nil {
		return fmt.Errorf("set pending version: %w", err)
	}
	return nil
}

// ListPendingVersions returns every issue in project with a recorded
// pending-version entry, keyed by issue key.
func (db *DB) ListPendingVersions(ctx context.Context, project string) (map[model.IssueKey]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT issue_number, pending_branches FROM pending_issue_versions WHERE project_key = ?`, project)
	if err != nil {
		return nil, fmt.Errorf("list pending versions: %w", err)
	}
	defer rows.Close()

	out := make(map[model.IssueKey]string)
	for rows.Next() {
		var number int
		var branches string
		if err := rows.Scan(&number, &branches); err != nil {
			return nil, fmt.Errorf("scan pending version: %w", err)
		}
		out[model.IssueKey{Project: project, Number: number}] = branches
	}
	return out, rows.Err()
}
