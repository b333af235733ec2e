package postgres

import (
	"context"
	"fmt"

	"github.com/samirrijal/geofence/internal/pkg/logging"
)

// TargetsChangedChannel is the NOTIFY channel raised by the targets trigger.
// The payload is the id of the inserted, updated or deleted target.
const TargetsChangedChannel = "targets_changed"

// ListenTargetChanges holds one pooled connection on LISTEN and calls fn for
// every notification until ctx is cancelled. Handler errors are logged and do
// not stop the loop; connection errors are returned.
func (db *DB) ListenTargetChanges(ctx context.Context, fn func(ctx context.Context, targetID string) error) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+TargetsChangedChannel); err != nil {
		return fmt.Errorf("listen %s: %w", TargetsChangedChannel, err)
	}

	log := logging.FromContext(ctx)
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		if err := fn(ctx, n.Payload); err != nil {
			log.Warn("target change handler failed", "target_id", n.Payload, "error", err)
		}
	}
}
