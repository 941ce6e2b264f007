package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobNotification is one row of the durable outbox, drained by the
// notification dispatcher and delivered over signed HTTP.
type JobNotification struct {
	NotificationID   uuid.UUID
	Tenant           string
	JobType          JobKind
	JobID            uuid.UUID
	ReferenceID      uuid.UUID
	Status           JobStatus
	Summary          json.RawMessage
	Error            *string
	AvailableAt      time.Time
	DeliveredAt      *time.Time
	DeliveryAttempts int
}

// WebhookPayload is the JSON body POSTed to the configured outbox URL.
type WebhookPayload struct {
	TenantID    string          `json:"tenantId"`
	JobType     JobKind         `json:"jobType"`
	JobID       uuid.UUID       `json:"jobId"`
	ReferenceID uuid.UUID       `json:"referenceId"`
	Status      JobStatus       `json:"status"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       *string         `json:"error,omitempty"`
}
