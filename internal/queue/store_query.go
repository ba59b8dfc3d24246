package queue

import (
	"context"
	"fmt"
	"time"
)

// DueItems returns dispatchable items whose scheduled time has passed,
// ordered by priority (highest first) then scheduled time (oldest first).
// An empty accountID matches all accounts on the platform.
func (s *Store) DueItems(ctx context.Context, platform, accountID string, now time.Time, limit int) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM upload_queue
        WHERE platform = ? AND status IN (?, ?) AND scheduled_at <= ?`
	args := []any{platform, StatusPending, StatusScheduled, now.UTC().Format(time.RFC3339Nano)}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY priority DESC, scheduled_at ASC LIMIT ?`
	args = append(args, limit)
	return s.queryItems(ctx, query, args...)
}

// PendingItems returns pending items regardless of their scheduled time.
// This is the forced/catch-up selection used after daemon downtime.
func (s *Store) PendingItems(ctx context.Context, platform, accountID string, limit int) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM upload_queue
        WHERE platform = ? AND status = ?`
	args := []any{platform, StatusPending}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY priority DESC, scheduled_at ASC LIMIT ?`
	args = append(args, limit)
	return s.queryItems(ctx, query, args...)
}

// List returns queue items for a platform filtered by an optional status
// set, newest first, capped at limit (0 means no cap).
func (s *Store) List(ctx context.Context, platform string, limit int, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM upload_queue WHERE platform = ?`
	args := []any{platform}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryItems(ctx, query, args...)
}

// Stats returns a count of items grouped by status, optionally filtered to
// one platform.
func (s *Store) Stats(ctx context.Context, platform string) (map[Status]int, error) {
	query := `SELECT status, COUNT(1) FROM upload_queue`
	var args []any
	if platform != "" {
		query += ` WHERE platform = ?`
		args = append(args, platform)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// UploadCountByAccountAndDate returns how many uploads an account has
// assigned for one calendar day (UTC). Failed and cancelled items release
// their quota slot; everything else counts, since quota is charged at
// assignment time rather than re-checked at dispatch.
func (s *Store) UploadCountByAccountAndDate(ctx context.Context, platform, accountID string, day time.Time) (int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `SELECT COUNT(1) FROM upload_queue
        WHERE platform = ? AND account_id = ?
          AND scheduled_at >= ? AND scheduled_at < ?
          AND status IN (` + makePlaceholders(len(activeStatuses)) + `)`
	args := []any{
		platform,
		accountID,
		dayStart.Format(time.RFC3339Nano),
		dayEnd.Format(time.RFC3339Nano),
	}
	for _, status := range activeStatuses {
		args = append(args, status)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("upload count: %w", err)
	}
	return count, nil
}

// HasActiveEntry reports whether an equivalent non-terminal (or succeeded)
// entry already sits in the queue, used as the duplicate-enqueue guard.
func (s *Store) HasActiveEntry(ctx context.Context, asin, platform, accountID string) (bool, error) {
	query := `SELECT COUNT(1) FROM upload_queue
        WHERE asin = ? AND platform = ?
          AND status IN (` + makePlaceholders(len(activeStatuses)) + `)`
	args := []any{asin, platform}
	for _, status := range activeStatuses {
		args = append(args, status)
	}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check active entry: %w", err)
	}
	return count > 0, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
