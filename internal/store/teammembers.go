package store

import (
	"context"
	"fmt"
	"time"
)

// PutTeamMembers replaces the cached membership of (repoOwner, teamSlug)
// with members.
func (db *DB) PutTeamMembers(ctx context.Context, repoOwner, teamSlug string, members []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put team members: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members_cache WHERE repo_owner = ? AND team_slug = ?`, repoOwner, teamSlug); err != nil {
		return fmt.Errorf("put team members: clear: %w", err)
	}
	for _, login := range members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO team_members_cache (repo_owner, team_slug, login) VALUES (?, ?, ?)`, repoOwner, teamSlug, login); err != nil {
			return fmt.Errorf("put team members: insert %s: %w", login, err)
		}
	}
	return tx.Commit()
}

// GetTeamMembers returns the cached members of (repoOwner, teamSlug) and the
// cached_at time of the oldest row in the set, or ok=false if nothing is
// cached.
func (db *DB) GetTeamMembers(ctx context.Context, repoOwner, teamSlug string) (members []string, cachedAt time.Time, ok bool, err error) {
	rows, err := db.QueryContext(ctx, `SELECT login, cached_at FROM team_members_cache WHERE repo_owner = ? AND team_slug = ?`, repoOwner, teamSlug)
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("get team members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var login string
		var cachedAtStr string
		if err := rows.Scan(&login, &cachedAtStr); err != nil {
			return nil, time.Time{}, false, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, login)
		parsed, parseErr := time.Parse("2006-01-02 15:04:05", cachedAtStr)
		if parseErr == nil && (cachedAt.IsZero() || parsed.Before(cachedAt)) {
			cachedAt = parsed
		}
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, false, err
	}
	return members, cachedAt, len(members) > 0, nil
}
