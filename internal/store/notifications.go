package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// NotificationStore persists the durable outbox the notification
// dispatcher drains.
type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// Insert writes a pending notification row. Called in the same
// transaction as the job completion/failure write it announces, so a
// crash between the two never loses the notification.
func (s *NotificationStore) Insert(ctx context.Context, q Querier, n domain.JobNotification) error {
	id := n.NotificationID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO job_notifications (
			notification_id, tenant, job_type, job_id, reference_id, status, summary, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, n.Tenant, n.JobType, n.JobID, n.ReferenceID, n.Status, n.Summary, n.Error)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// SelectNextDue locks and returns the oldest undelivered notification due
// for (re)delivery.
func (s *NotificationStore) SelectNextDue(ctx context.Context) (*domain.JobNotification, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var n domain.JobNotification
	err = tx.QueryRow(ctx, `
		SELECT notification_id, tenant, job_type, job_id, reference_id, status, summary, error,
		       available_at, delivered_at, delivery_attempts
		FROM job_notifications
		WHERE delivered_at IS NULL AND available_at <= now()
		ORDER BY available_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`).Scan(
		&n.NotificationID, &n.Tenant, &n.JobType, &n.JobID, &n.ReferenceID, &n.Status, &n.Summary, &n.Error,
		&n.AvailableAt, &n.DeliveredAt, &n.DeliveryAttempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select next due notification: %w", err)
	}

	n.DeliveryAttempts++
	_, err = tx.Exec(ctx, `UPDATE job_notifications SET delivery_attempts = $2 WHERE notification_id = $1`,
		n.NotificationID, n.DeliveryAttempts)
	if err != nil {
		return nil, fmt.Errorf("bump delivery attempts: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *NotificationStore) MarkDelivered(ctx context.Context, notificationID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE job_notifications SET delivered_at = now() WHERE notification_id = $1`,
		notificationID)
	if err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// MarkFailed records a delivery error and reschedules the retry. Callers
// decide availableAt using the same backoff schedule job retries use.
func (s *NotificationStore) MarkFailed(ctx context.Context, notificationID uuid.UUID, errMsg string, availableAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE job_notifications SET error = $2, available_at = $3 WHERE notification_id = $1`,
		notificationID, errMsg, availableAt)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}
