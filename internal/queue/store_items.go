package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, source_path, status, media_info_json, segments_json,
    output_dir, csv_path, split_files_json, error_message,
    progress_stage, progress_percent, progress_message,
    last_heartbeat, created_at, updated_at`

// NewVideo inserts a new pending item for the given source video.
func (s *Store) NewVideo(ctx context.Context, sourcePath string) (*Item, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO queue_items (source_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?)`,
		sourcePath,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert video: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a single item.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

// FindBySourcePath returns the most recent item for a source path that has not
// failed, or nil when none exists. The watcher uses this to avoid enqueueing
// the same file twice.
func (s *Store) FindBySourcePath(ctx context.Context, sourcePath string) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items
         WHERE source_path = ? AND status != ?
         ORDER BY id DESC LIMIT 1`,
		sourcePath, StatusFailed)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source path: %w", err)
	}
	return item, nil
}

// Update persists all mutable fields of the item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("update: nil item")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE queue_items SET
            source_path = ?, status = ?, media_info_json = ?, segments_json = ?,
            output_dir = ?, csv_path = ?, split_files_json = ?, error_message = ?,
            progress_stage = ?, progress_percent = ?, progress_message = ?,
            last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		item.SourcePath,
		item.Status,
		item.MediaInfoJSON,
		item.SegmentsJSON,
		item.OutputDir,
		item.CSVPath,
		item.SplitFilesJSON,
		item.ErrorMessage,
		item.ProgressStage,
		item.ProgressPercent,
		item.ProgressMessage,
		nullableTime(item.LastHeartbeat),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

// UpdateHeartbeat stamps the item's heartbeat so stall detection can tell an
// active stage from a dead one.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64, at time.Time) error {
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE queue_items SET last_heartbeat = ? WHERE id = ?`,
		at.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat %d: %w", id, err)
	}
	return nil
}

// List returns items filtered by the provided statuses; no statuses means all
// items. Results are ordered by creation.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// NextForStatuses returns the oldest item in one of the given statuses, or nil
// when the queue has nothing to do.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = status
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items
         WHERE status IN (`+strings.Join(placeholders, ", ")+`)
         ORDER BY id LIMIT 1`,
		args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next item: %w", err)
	}
	return item, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item      Item
		heartbeat sql.NullString
		createdAt string
		updatedAt string
	)
	err := scanner.Scan(
		&item.ID,
		&item.SourcePath,
		&item.Status,
		&item.MediaInfoJSON,
		&item.SegmentsJSON,
		&item.OutputDir,
		&item.CSVPath,
		&item.SplitFilesJSON,
		&item.ErrorMessage,
		&item.ProgressStage,
		&item.ProgressPercent,
		&item.ProgressMessage,
		&heartbeat,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if heartbeat.Valid && strings.TrimSpace(heartbeat.String) != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, heartbeat.String); err == nil {
			item.LastHeartbeat = &parsed
		}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		item.UpdatedAt = parsed
	}
	return &item, nil
}
