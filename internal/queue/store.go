package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lister/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.QueueDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Enqueue inserts a new queue item. Status must be pending or scheduled;
// the scheduled time must already be resolved by the caller.
func (s *Store) Enqueue(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if strings.TrimSpace(item.ASIN) == "" {
		return nil, errors.New("asin is required")
	}
	if strings.TrimSpace(item.Platform) == "" {
		return nil, errors.New("platform is required")
	}
	if item.Status != StatusPending && item.Status != StatusScheduled {
		return nil, fmt.Errorf("cannot enqueue with status %q", item.Status)
	}
	if item.ScheduledAt.IsZero() {
		return nil, errors.New("scheduled time is required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO upload_queue (
            asin, platform, account_id, priority, scheduled_at, status,
            batch_id, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ASIN,
		item.Platform,
		item.AccountID,
		item.Priority,
		item.ScheduledAt.UTC().Format(time.RFC3339Nano),
		item.Status,
		nullableString(item.BatchID),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. Missing items return nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM upload_queue WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing queue item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_queue
         SET asin = ?, platform = ?, account_id = ?, priority = ?,
             scheduled_at = ?, status = ?, batch_id = ?, result_data = ?,
             error_message = ?, processed_at = ?, updated_at = ?
         WHERE id = ?`,
		item.ASIN,
		item.Platform,
		item.AccountID,
		item.Priority,
		item.ScheduledAt.UTC().Format(time.RFC3339Nano),
		item.Status,
		nullableString(item.BatchID),
		nullableString(item.ResultData),
		nullableString(item.ErrorMessage),
		nullableTime(item.ProcessedAt),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Reschedule moves a dispatchable item to a new scheduled time. The
// scheduled time is otherwise immutable after creation.
func (s *Store) Reschedule(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE upload_queue SET scheduled_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		at.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
		StatusScheduled,
	)
	if err != nil {
		return fmt.Errorf("reschedule item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", id, ErrInvalidTransition)
	}
	return nil
}

const itemColumns = "id, asin, platform, account_id, priority, scheduled_at, status, batch_id, result_data, error_message, processed_at, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		asin         string
		platform     string
		accountID    string
		priority     int
		scheduledRaw string
		statusStr    string
		batchID      sql.NullString
		resultData   sql.NullString
		errorMessage sql.NullString
		processedRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&asin,
		&platform,
		&accountID,
		&priority,
		&scheduledRaw,
		&statusStr,
		&batchID,
		&resultData,
		&errorMessage,
		&processedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		ASIN:         asin,
		Platform:     platform,
		AccountID:    accountID,
		Priority:     priority,
		Status:       Status(statusStr),
		BatchID:      batchID.String,
		ResultData:   resultData.String,
		ErrorMessage: errorMessage.String,
	}
	if scheduled, err := parseTimeString(scheduledRaw); err == nil {
		item.ScheduledAt = scheduled
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if processedRaw.Valid {
		if processed, err := parseTimeString(processedRaw.String); err == nil {
			item.ProcessedAt = &processed
		}
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
