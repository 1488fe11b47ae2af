package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// PurgeExpired permanently removes every message whose retention expiry has
// passed. Attachments and label associations cascade with the rows. Returns
// the number of messages removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM messages
		WHERE auto_delete_at IS NOT NULL AND auto_delete_at <= now()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired messages: %w", mapStorageErr(err))
	}
	return tag.RowsAffected(), nil
}

// RetentionSweeper periodically removes trashed and spam messages whose
// retention window has elapsed.
type RetentionSweeper struct {
	store    *Store
	interval time.Duration
}

// NewRetentionSweeper creates a sweeper over the given store. interval is
// how often the sweep runs.
func NewRetentionSweeper(store *Store, interval time.Duration) *RetentionSweeper {
	return &RetentionSweeper{store: store, interval: interval}
}

// Run sweeps on the configured interval until ctx is cancelled. One sweep
// runs immediately on start.
func (r *RetentionSweeper) Run(ctx context.Context) {
	r.sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *RetentionSweeper) sweep(ctx context.Context) {
	purged, err := r.store.PurgeExpired(ctx)
	if err != nil {
		log.Printf("Retention sweep failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Retention sweep purged %d expired messages", purged)
	}
}
