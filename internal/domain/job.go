package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a receipt or redeem job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// JobKind distinguishes which reference table a job points at. The two job
// tables are structurally identical; JobKind only matters for routing to
// the right context loader and SQL fragment.
type JobKind string

const (
	JobKindReceipt JobKind = "receipt"
	JobKindRedeem  JobKind = "redeem"
)

// Job is a row from either job table. ReferenceID points at the receipt_id
// or request_id depending on Kind.
type Job struct {
	JobID         uuid.UUID
	Kind          JobKind
	Tenant        string
	ReferenceID   uuid.UUID
	Status        JobStatus
	Attempts      int
	LastError     *string
	ResultSummary json.RawMessage
	AvailableAt   time.Time
	CompletedAt   *time.Time
	CreatedAt     time.Time
}

// IsTerminal reports whether the job status cannot transition any further.
func (j Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// Backoff computes the delay before a job picked up at attempts N may be
// retried again, per the min(60s, attempts*5s) schedule.
func Backoff(attempts int) time.Duration {
	d := time.Duration(attempts) * 5 * time.Second
	if d > 60*time.Second {
		return 60 * time.Second
	}
	return d
}
