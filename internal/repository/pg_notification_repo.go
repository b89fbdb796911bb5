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

const notificationColumns = `id, user_id, idempotency_key, message_type, provider, status,
	       payload, attempt_count, max_retries, created_at, updated_at,
	       last_attempted_at, send_at, sent_at, failed_at, error_message, provider_response`

type pgNotificationRepository struct {
	pool *pgxpool.Pool
}

// NewPgNotificationRepository returns a NotificationRepository backed by PostgreSQL.
func NewPgNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgNotificationRepository{pool: pool}
}

func (r *pgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, user_id, idempotency_key, message_type, provider, status,
			 payload, attempt_count, max_retries, created_at, updated_at, send_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		n.ID, n.UserID, n.IdempotencyKey, n.MessageType, n.Provider, n.Status,
		n.Payload, n.AttemptCount, n.MaxRetries, n.CreatedAt, n.UpdatedAt, n.SendAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idempotency_key") {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications WHERE id = $1`, id)

	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return n, err
}

func (r *pgNotificationRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	f.Normalize()
	where, args := buildListWhere(f)

	var total int
	countQuery := "SELECT COUNT(*) FROM notifications" + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	limitPlaceholder := fmt.Sprintf("$%d", len(args)-1)
	offsetPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT `+notificationColumns+`
		FROM notifications%s
		ORDER BY created_at DESC
		LIMIT %s OFFSET %s`, where, limitPlaceholder, offsetPlaceholder)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications, err := scanNotifications(rows)
	return notifications, total, err
}

// Cancel takes a row-level exclusive lock before checking the status,
// so a worker that is concurrently loading the same notification
// observes either PENDING (and proceeds) or CANCELLED (and drops).
func (r *pgNotificationRepository) Cancel(ctx context.Context, id string, now int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var status domain.Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM notifications WHERE id = $1 FOR UPDATE`, id,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock notification: %w", err)
	}

	if status != domain.StatusPending {
		return domain.ErrNotCancellable
	}

	_, err = tx.Exec(ctx, `
		UPDATE notifications
		SET status = $1, failed_at = $2, updated_at = $2
		WHERE id = $3`, domain.StatusCancelled, now, id)
	if err != nil {
		return fmt.Errorf("cancel notification: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *pgNotificationRepository) RecordAttempt(ctx context.Context, id string, now int64) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE notifications
		SET attempt_count = attempt_count + 1, last_attempted_at = $1, updated_at = $1
		WHERE id = $2
		RETURNING attempt_count`, now, id).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record attempt: %w", err)
	}
	return attempts, nil
}

func (r *pgNotificationRepository) MarkSent(ctx context.Context, id string, sentAt int64, providerResponse *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1, sent_at = $2, updated_at = $2,
		    provider_response = $3, error_message = NULL
		WHERE id = $4`, domain.StatusSent, sentAt, providerResponse, id)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) ScheduleRetry(ctx context.Context, id string, sendAt int64, errMsg string, now int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1, send_at = $2, error_message = $3, updated_at = $4
		WHERE id = $5`, domain.StatusPending, sendAt, errMsg, now, id)
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	return nil
}

func (r *pgNotificationRepository) Reactivate(ctx context.Context, id string, now int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1, attempt_count = 0, failed_at = NULL,
		    error_message = NULL, send_at = $2, updated_at = $2
		WHERE id = $3`, domain.StatusPending, now, id)
	if err != nil {
		return fmt.Errorf("reactivate notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgNotificationRepository) FindDue(ctx context.Context, now int64, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status = $1
		  AND send_at IS NOT NULL
		  AND send_at <= $2
		ORDER BY send_at ASC
		LIMIT $3`, domain.StatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ---- helpers ----

// scanNotification reads a single notification row from any pgx row type.
func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID, &n.UserID, &n.IdempotencyKey, &n.MessageType, &n.Provider, &n.Status,
		&n.Payload, &n.AttemptCount, &n.MaxRetries, &n.CreatedAt, &n.UpdatedAt,
		&n.LastAttemptedAt, &n.SendAt, &n.SentAt, &n.FailedAt, &n.ErrorMessage, &n.ProviderResponse,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*domain.Notification, error) {
	var result []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
