package queue

import (
	"context"
	"fmt"
	"time"
)

// MarkUploading transitions a dispatchable item into uploading.
func (s *Store) MarkUploading(ctx context.Context, id int64) error {
	return s.transition(ctx,
		`UPDATE upload_queue SET status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		id, StatusUploading, StatusPending, StatusScheduled,
	)
}

// MarkSuccess finalizes an uploading item and records the marketplace
// result payload and processing time.
func (s *Store) MarkSuccess(ctx context.Context, id int64, resultData string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE upload_queue
         SET status = ?, result_data = ?, error_message = NULL,
             processed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusSuccess, nullableString(resultData), now, now, id, StatusUploading,
	)
	if err != nil {
		return fmt.Errorf("mark success: %w", err)
	}
	return requireAffected(res, id)
}

// MarkFailed finalizes an uploading item with the last error message.
// Failed items stay failed until an operator requeues them.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE upload_queue
         SET status = ?, error_message = ?, processed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, nullableString(message), now, now, id, StatusUploading,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireAffected(res, id)
}

// MarkCancelled cancels an item that has not started uploading.
func (s *Store) MarkCancelled(ctx context.Context, id int64) error {
	return s.transition(ctx,
		`UPDATE upload_queue SET status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		id, StatusCancelled, StatusPending, StatusScheduled,
	)
}

// RequeueFailed moves failed items back to pending. With no ids, all failed
// items for the platform are requeued. Returns the number of items moved.
func (s *Store) RequeueFailed(ctx context.Context, platform string, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(ctx,
			`UPDATE upload_queue
             SET status = ?, error_message = NULL, processed_at = NULL, updated_at = ?
             WHERE status = ? AND platform = ?`,
			StatusPending, now, StatusFailed, platform,
		)
		if err != nil {
			return 0, fmt.Errorf("requeue failed items: %w", err)
		}
		return res.RowsAffected()
	}

	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusPending, now, StatusFailed)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE upload_queue
        SET status = ?, error_message = NULL, processed_at = NULL, updated_at = ?
        WHERE status = ? AND id IN (` + makePlaceholders(len(ids)) + `)`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue selected items: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) transition(ctx context.Context, query string, id int64, to Status, from ...Status) error {
	args := make([]any, 0, len(from)+3)
	args = append(args, to, time.Now().UTC().Format(time.RFC3339Nano), id)
	for _, status := range from {
		args = append(args, status)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition to %s: %w", to, err)
	}
	return requireAffected(res, id)
}

func requireAffected(res interface{ RowsAffected() (int64, error) }, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", id, ErrInvalidTransition)
	}
	return nil
}
