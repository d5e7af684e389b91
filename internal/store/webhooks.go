package store

import (
	"context"
	"fmt"
)

// RecordDelivery attempts to insert a webhook delivery id as seen for the
// first time. It returns (true, nil) when this call is the first to record
// deliveryID — the "first caller wins" dedup semantics spec.md requires —
// and (false, nil) when the id was already present.
func (db *DB) RecordDelivery(ctx context.Context, deliveryID, eventKind string) (bool, error) {
	_, err := db.ExecContext(ctx, `INSERT INTO webhook_deliveries (delivery_id, event_kind) VALUES (?, ?)`, deliveryID, eventKind)
	if err == nil {
		return true, nil
	}
	if isUniqueConstraint(err) {
		return false, nil
	}
	return false, fmt.Errorf("record delivery: %w", err)
}

// isUniqueConstraint reports whether err is a sqlite UNIQUE constraint
// violation. mattn/go-sqlite3 reports these as *sqlite3.Error; matching on
// the message avoids importing the driver package just for its error type.
func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	const marker = "UNIQUE constraint failed"
	msg := err.Error()
	for i := 0; i+len(marker) <= len(msg); i++ {
		if msg[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}

// PruneDeliveriesOlderThan deletes delivery records older than the retention
// window; called periodically so the dedup table doesn't grow unbounded.
func (db *DB) PruneDeliveriesOlderThan(ctx context.Context, cutoffRFC3339 string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM webhook_deliveries WHERE received_at < ?`, cutoffRFC3339)
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	return res.RowsAffected()
}
