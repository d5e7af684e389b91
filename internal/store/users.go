package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/octohub/webhook-hub/internal/model"
)

// GetUserBinding looks up a user binding by the source-host login.
func (db *DB) GetUserBinding(ctx context.Context, hostLogin string) (model.UserBinding, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, host_login, tracker_user, chat_user_id, mute_dms
		FROM user_bindings WHERE host_login = ?`, hostLogin)

	var ub model.UserBinding
	var muteDMs int
	if err := row.Scan(&ub.ID, &ub.HostLogin, &ub.TrackerUser, &ub.ChatUserID, &muteDMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserBinding{}, ErrNotFound
		}
		return model.UserBinding{}, fmt.Errorf("get user binding: %w", err)
	}
	ub.MuteDMs = muteDMs != 0
	return ub, nil
}

// UpsertUserBinding creates or updates the binding for ub.HostLogin.
func (db *DB) UpsertUserBinding(ctx context.Context, ub model.UserBinding) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_bindings (host_login, tracker_user, chat_user_id, mute_dms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(host_login) DO UPDATE SET
			tracker_user = excluded.tracker_user,
			chat_user_id = excluded.chat_user_id,
			mute_dms = excluded.mute_dms`,
		ub.HostLogin, ub.TrackerUser, ub.ChatUserID, boolToInt(ub.MuteDMs))
	if err != nil {
		return fmt.Errorf("upsert user binding: %w", err)
	}
	return nil
}

// DeleteUserBinding removes the binding for hostLogin.
func (db *DB) DeleteUserBinding(ctx context.Context, hostLogin string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM user_bindings WHERE host_login = ?`, hostLogin)
	if err != nil {
		return fmt.Errorf("delete user binding: %w", err)
	}
	return nil
}

// ListUserBindings returns every configured user binding, used by the admin
// surface's listing endpoint.
func (db *DB) ListUserBindings(ctx context.Context) ([]model.UserBinding, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, host_login, tracker_user, chat_user_id, mute_dms FROM user_bindings ORDER BY host_login`)
	if err != nil {
		return nil, fmt.Errorf("list user bindings: %w", err)
	}
	defer rows.Close()

	var out []model.UserBinding
	for rows.Next() {
		var ub model.UserBinding
		var muteDMs int
		if err := rows.Scan(&ub.ID, &ub.HostLogin, &ub.TrackerUser, &ub.ChatUserID, &muteDMs); err != nil {
			return nil, fmt.Errorf("scan user binding: %w", err)
		}
		ub.MuteDMs = muteDMs != 0
		out = append(out, ub)
	}
	return out, rows.Err()
}
