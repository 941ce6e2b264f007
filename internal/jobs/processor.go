package jobs

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
)

// TableStore is the store-backed half of the generic job worker: picking
// the next due job under a row lock and recording a retry or terminal
// failure outcome. Reaching a terminal *success* is not part of this
// interface — ProcessFunc writes that status itself, inside the same
// transaction as the mutations it applies, so Complete is never a second
// commit a crash can separate from the work it reports on. The receipt
// and redeem job tables are structurally identical, so a single generic
// Processor[C] drives both, parameterized only by the context type C
// each table's SQL loads.
type TableStore[C any] interface {
	// SelectNextDue picks the oldest pending-and-due job, transitions it
	// to processing, increments attempts, and loads its context — all in
	// one transaction. A nil job means nothing is due right now.
	SelectNextDue(ctx context.Context) (*domain.Job, C, error)
	Reschedule(ctx context.Context, jobID uuid.UUID, lastError string, availableAt time.Time) error
	Fail(ctx context.Context, jobID uuid.UUID, lastError string) error
}

// ProcessFunc does the actual work for one job: running plugins, applying
// mutations, and writing the job's own terminal status, all inside the
// transaction it opens for the job. It returns the result summary once
// that transaction has committed. Returning a non-nil error means no
// transaction was committed — the job is still processing and RunOnce
// decides whether to retry or fail it.
type ProcessFunc[C any] func(ctx context.Context, job domain.Job, jobCtx C) (map[string]any, error)

// Processor is the generic pending/processing/completed/failed state
// machine, shared by the receipt and redeem job tables.
type Processor[C any] struct {
	Store       TableStore[C]
	MaxAttempts int
	Process     ProcessFunc[C]
	Component   string
}

// RunOnce picks at most one due job and drives it to completion, retry,
// or failure. The bool return reports whether a job was found at all,
// letting Loop back off when the table is empty.
func (p *Processor[C]) RunOnce(ctx context.Context) (bool, error) {
	job, jobCtx, err := p.Store.SelectNextDue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	_, procErr := p.Process(ctx, *job, jobCtx)
	if procErr == nil {
		return true, nil
	}

	lastErr := truncateError(procErr)
	if !ledgererr.Retryable(procErr) || job.Attempts >= p.MaxAttempts {
		log.Printf("level=error component=%s msg=\"job failed terminally\" job_id=%s attempts=%d err=%q", p.Component, job.JobID, job.Attempts, lastErr)
		return true, p.Store.Fail(ctx, job.JobID, lastErr)
	}

	delay := domain.Backoff(job.Attempts)
	log.Printf("level=warn component=%s msg=\"job rescheduled\" job_id=%s attempts=%d delay_ms=%d err=%q", p.Component, job.JobID, job.Attempts, delay.Milliseconds(), lastErr)
	return true, p.Store.Reschedule(ctx, job.JobID, lastErr, time.Now().Add(delay))
}

// Loop polls for due work until ctx is cancelled, sleeping pollInterval
// between empty polls. Any in-flight iteration finishes before the next
// ctx.Done() check, matching the cooperative-shutdown contract: a worker
// honors the signal between iterations, not mid-transaction.
func (p *Processor[C]) Loop(ctx context.Context, pollInterval time.Duration) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		worked, err := p.RunOnce(ctx)
		if err != nil {
			log.Printf("level=error component=%s msg=\"job processor iteration failed\" err=%q", p.Component, err)
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

func truncateError(err error) string {
	s := err.Error()
	const max = 1024
	if len(s) > max {
		return s[:max]
	}
	return s
}
