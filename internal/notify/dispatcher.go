// Package notify drains the durable notification outbox and delivers each
// row as a signed webhook, retrying with backoff on delivery failure.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// Store is the persistence contract the dispatcher needs.
type Store interface {
	SelectNextDue(ctx context.Context) (*domain.JobNotification, error)
	MarkDelivered(ctx context.Context, notificationID uuid.UUID) error
	MarkFailed(ctx context.Context, notificationID uuid.UUID, errMsg string, availableAt time.Time) error
}

// SecretResolver returns the webhook signing secret and target URL
// configured for a tenant. Returning ok=false means the tenant has no
// outbox configured, which the dispatcher treats as a terminal, silent
// drop rather than an endless retry loop.
type SecretResolver func(tenant string) (url, secret string, ok bool)

// Deliverer is the transport the dispatcher signs and POSTs through,
// satisfied by *webhook.Client.
type Deliverer interface {
	Deliver(ctx context.Context, url, secret, tenant, jobType string, jobID uuid.UUID, payload any) error
}

// Dispatcher drains Store and delivers each due notification.
type Dispatcher struct {
	Store       Store
	Deliverer   Deliverer
	Resolve     SecretResolver
	MaxAttempts int
}

// RunOnce delivers at most one due notification. The bool reports whether
// a notification was found at all.
func (d *Dispatcher) RunOnce(ctx context.Context) (bool, error) {
	n, err := d.Store.SelectNextDue(ctx)
	if err != nil {
		return false, err
	}
	if n == nil {
		return false, nil
	}

	url, secret, ok := d.Resolve(n.Tenant)
	if !ok {
		log.Printf("level=warn component=notify msg=\"no outbox configured, dropping\" notification_id=%s tenant=%s", n.NotificationID, n.Tenant)
		return true, d.Store.MarkDelivered(ctx, n.NotificationID)
	}

	payload := domain.WebhookPayload{
		TenantID:    n.Tenant,
		JobType:     n.JobType,
		JobID:       n.JobID,
		ReferenceID: n.ReferenceID,
		Status:      n.Status,
		Summary:     n.Summary,
		Error:       n.Error,
	}

	deliverErr := d.Deliverer.Deliver(ctx, url, secret, n.Tenant, string(n.JobType), n.JobID, payload)
	if deliverErr == nil {
		return true, d.Store.MarkDelivered(ctx, n.NotificationID)
	}

	if n.DeliveryAttempts >= d.MaxAttempts {
		log.Printf("level=error component=notify msg=\"delivery exhausted retries\" notification_id=%s attempts=%d err=%q",
			n.NotificationID, n.DeliveryAttempts, deliverErr)
		return true, d.Store.MarkFailed(ctx, n.NotificationID, deliverErr.Error(), time.Now().Add(24*time.Hour))
	}

	delay := domain.Backoff(n.DeliveryAttempts)
	log.Printf("level=warn component=notify msg=\"delivery failed, retrying\" notification_id=%s attempts=%d delay_ms=%d err=%q",
		n.NotificationID, n.DeliveryAttempts, delay.Milliseconds(), deliverErr)
	return true, d.Store.MarkFailed(ctx, n.NotificationID, deliverErr.Error(), time.Now().Add(delay))
}

// Loop polls for due notifications until ctx is cancelled.
func (d *Dispatcher) Loop(ctx context.Context, pollInterval time.Duration) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		worked, err := d.RunOnce(ctx)
		if err != nil {
			log.Printf("level=error component=notify msg=\"dispatch iteration failed\" err=%q", err)
		}
		if worked {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
