package queue

import (
	"context"
	"fmt"
	"time"
)

// Remove deletes a single item and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove item %d: %w", id, err)
	}
	return affected > 0, nil
}

// Clear deletes every item and returns the number removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "", nil)
}

// ClearCompleted removes completed items.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "status = ?", []any{StatusCompleted})
}

// ClearFailed removes failed items.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, "status = ?", []any{StatusFailed})
}

func (s *Store) deleteWhere(ctx context.Context, where string, args []any) (int64, error) {
	query := `DELETE FROM queue_items`
	if where != "" {
		query += ` WHERE ` + where
	}
	res, err := s.execWithRetry(ensureContext(ctx), query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete items: %w", err)
	}
	return affected, nil
}

// RetryFailed returns failed items to pending so the pipeline picks them up
// again from the probe stage.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE queue_items SET
            status = ?, error_message = '', progress_stage = '',
            progress_percent = 0, progress_message = '', last_heartbeat = NULL,
            updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return affected, nil
}

// ResetStuckProcessing rolls in-flight items back to the stable status
// preceding their stage. Called on startup so an interrupted run resumes
// instead of leaving items wedged in a processing state.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	var total int64
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for from, to := range processingRollbacks {
		res, err := s.execWithRetry(
			ensureContext(ctx),
			`UPDATE queue_items SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE status = ?`,
			to, timestamp, from,
		)
		if err != nil {
			return total, fmt.Errorf("reset stuck items (%s): %w", from, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("reset stuck items (%s): %w", from, err)
		}
		total += affected
	}
	return total, nil
}

// ReclaimStale rolls back processing items whose heartbeat is older than the
// cutoff (or missing) so another pass can pick them up again.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	for from, to := range processingRollbacks {
		res, err := s.execWithRetry(
			ensureContext(ctx),
			`UPDATE queue_items SET status = ?, last_heartbeat = NULL, updated_at = ?
             WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
			to, timestamp, from, cutoff.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return total, fmt.Errorf("reclaim stale items (%s): %w", from, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("reclaim stale items (%s): %w", from, err)
		}
		total += affected
	}
	return total, nil
}

// StalledSince returns processing items whose heartbeat is older than the
// cutoff (or missing entirely).
func (s *Store) StalledSince(ctx context.Context, cutoff time.Time) ([]*Item, error) {
	items, err := s.List(ctx, StatusProbing, StatusAnalyzing, StatusSplitting, StatusExporting)
	if err != nil {
		return nil, err
	}
	var stalled []*Item
	for _, item := range items {
		if item.LastHeartbeat == nil || item.LastHeartbeat.Before(cutoff) {
			stalled = append(stalled, item)
		}
	}
	return stalled, nil
}

// Health aggregates queue counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("queue health scan: %w", err)
		}
		summary.Total += count
		switch {
		case status == StatusPending:
			summary.Pending += count
		case status == StatusCompleted:
			summary.Completed += count
		case status == StatusFailed:
			summary.Failed += count
		case IsProcessingStatus(status):
			summary.Processing += count
		}
	}
	if err := rows.Err(); err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	return summary, nil
}
