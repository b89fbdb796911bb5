package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/dispatch/internal/domain"
)

const dlqColumns = `id, notification_id, failure_reason, retry_history,
	       moved_to_dlq_at, resolved, resolved_at, resolved_by`

type pgDLQRepository struct {
	pool *pgxpool.Pool
}

// NewPgDLQRepository returns a DLQRepository backed by PostgreSQL.
func NewPgDLQRepository(pool *pgxpool.Pool) DLQRepository {
	return &pgDLQRepository{pool: pool}
}

// Insert writes the DLQ entry and flips the notification to FAILED in
// one transaction, so a crash cannot leave a FAILED notification
// without its DLQ entry or vice versa.
func (r *pgDLQRepository) Insert(ctx context.Context, entry *domain.DLQEntry, failedAt int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin dlq insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO notification_dlq
			(id, notification_id, failure_reason, retry_history, moved_to_dlq_at, resolved)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.NotificationID, entry.FailureReason,
		entry.RetryHistory, entry.MovedToDLQAt, entry.Resolved,
	)
	if err != nil {
		if strings.Contains(err.Error(), "notification_dlq_notification_id") {
			return domain.ErrAlreadyInDLQ
		}
		return fmt.Errorf("insert dlq entry: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE notifications
		SET status = $1, failed_at = $2, updated_at = $2
		WHERE id = $3`, domain.StatusFailed, failedAt, entry.NotificationID)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *pgDLQRepository) GetByID(ctx context.Context, id string) (*domain.DLQEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+dlqColumns+`
		FROM notification_dlq WHERE id = $1`, id)

	e, err := scanDLQEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return e, err
}

func (r *pgDLQRepository) Resolve(ctx context.Context, id string, resolvedAt int64, resolvedBy *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_dlq
		SET resolved = TRUE, resolved_at = $1, resolved_by = $2
		WHERE id = $3`, resolvedAt, resolvedBy, id)
	if err != nil {
		return fmt.Errorf("resolve dlq entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgDLQRepository) List(ctx context.Context, resolved *bool, limit, offset int) ([]*domain.DLQEntry, error) {
	var (
		where string
		args  []any
	)
	if resolved != nil {
		where = " WHERE resolved = $1"
		args = append(args, *resolved)
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT `+dlqColumns+`
		FROM notification_dlq%s
		ORDER BY moved_to_dlq_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dlq entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.DLQEntry
	for rows.Next() {
		e, err := scanDLQEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *pgDLQRepository) DeleteResolvedBefore(ctx context.Context, cutoff int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notification_dlq
		WHERE resolved = TRUE AND resolved_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup dlq entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *pgDLQRepository) Stats(ctx context.Context) (*domain.DLQStats, error) {
	var s domain.DLQStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE NOT resolved)
		FROM notification_dlq`).Scan(&s.Total, &s.Unresolved)
	if err != nil {
		return nil, fmt.Errorf("dlq stats: %w", err)
	}
	s.Resolved = s.Total - s.Unresolved
	return &s, nil
}

func scanDLQEntry(row pgx.Row) (*domain.DLQEntry, error) {
	var e domain.DLQEntry
	err := row.Scan(
		&e.ID, &e.NotificationID, &e.FailureReason, &e.RetryHistory,
		&e.MovedToDLQAt, &e.Resolved, &e.ResolvedAt, &e.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
