package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// ReceiptJobContext is everything the receipt processor needs beyond the
// job row itself, loaded in the same SelectNextDue transaction so the
// plugin chain never makes a second round trip mid-job.
type ReceiptJobContext struct {
	Receipt domain.Receipt
}

// RedeemJobContext mirrors ReceiptJobContext for the redeem table.
type RedeemJobContext struct {
	Request domain.RedeemRequest
}

// ReceiptJobStore implements jobs.TableStore[ReceiptJobContext] against
// receipt_jobs joined to receipts.
type ReceiptJobStore struct {
	pool *pgxpool.Pool
}

func NewReceiptJobStore(pool *pgxpool.Pool) *ReceiptJobStore {
	return &ReceiptJobStore{pool: pool}
}

func (s *ReceiptJobStore) SelectNextDue(ctx context.Context) (*domain.Job, ReceiptJobContext, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, ReceiptJobContext{}, err
	}
	defer tx.Rollback(ctx)

	job, err := selectAndLockJob(ctx, tx, "receipt_jobs")
	if err != nil || job == nil {
		return nil, ReceiptJobContext{}, err
	}

	var jobCtx ReceiptJobContext
	err = tx.QueryRow(ctx, `
		SELECT tenant, receipt_id, idempotency_key, fingerprint, merchant_id, store_id,
		       account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload, created_at
		FROM receipts WHERE tenant = $1 AND receipt_id = $2`, job.Tenant, job.ReferenceID).Scan(
		&jobCtx.Receipt.Tenant, &jobCtx.Receipt.ReceiptID, &jobCtx.Receipt.IdempotencyKey, &jobCtx.Receipt.Fingerprint,
		&jobCtx.Receipt.MerchantID, &jobCtx.Receipt.StoreID, &jobCtx.Receipt.AccountRef, &jobCtx.Receipt.ProgramID,
		&jobCtx.Receipt.GrandTotalCents, &jobCtx.Receipt.ProcessorTxnID, &jobCtx.Receipt.IssuedAt, &jobCtx.Receipt.Payload,
		&jobCtx.Receipt.CreatedAt)
	if err != nil {
		return nil, ReceiptJobContext{}, fmt.Errorf("load receipt for job %s: %w", job.JobID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, ReceiptJobContext{}, err
	}
	return job, jobCtx, nil
}

func (s *ReceiptJobStore) Reschedule(ctx context.Context, jobID uuid.UUID, lastError string, availableAt time.Time) error {
	return rescheduleJob(ctx, s.pool, "receipt_jobs", jobID, lastError, availableAt)
}

func (s *ReceiptJobStore) Fail(ctx context.Context, jobID uuid.UUID, lastError string) error {
	return failJob(ctx, s.pool, "receipt_jobs", jobID, lastError)
}

// RedeemJobStore implements jobs.TableStore[RedeemJobContext] against
// redeem_jobs joined to redeem_requests.
type RedeemJobStore struct {
	pool *pgxpool.Pool
}

func NewRedeemJobStore(pool *pgxpool.Pool) *RedeemJobStore {
	return &RedeemJobStore{pool: pool}
}

func (s *RedeemJobStore) SelectNextDue(ctx context.Context) (*domain.Job, RedeemJobContext, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, RedeemJobContext{}, err
	}
	defer tx.Rollback(ctx)

	job, err := selectAndLockJob(ctx, tx, "redeem_jobs")
	if err != nil || job == nil {
		return nil, RedeemJobContext{}, err
	}

	rs := NewRedeemStore(tx)
	req, err := rs.GetByID(ctx, job.Tenant, job.ReferenceID)
	if err != nil {
		return nil, RedeemJobContext{}, err
	}
	if req == nil {
		return nil, RedeemJobContext{}, fmt.Errorf("redeem job %s: request %s not found", job.JobID, job.ReferenceID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, RedeemJobContext{}, err
	}
	return job, RedeemJobContext{Request: *req}, nil
}

func (s *RedeemJobStore) Reschedule(ctx context.Context, jobID uuid.UUID, lastError string, availableAt time.Time) error {
	return rescheduleJob(ctx, s.pool, "redeem_jobs", jobID, lastError, availableAt)
}

func (s *RedeemJobStore) Fail(ctx context.Context, jobID uuid.UUID, lastError string) error {
	return failJob(ctx, s.pool, "redeem_jobs", jobID, lastError)
}

// selectAndLockJob picks the oldest pending-and-due row from table under
// FOR UPDATE SKIP LOCKED, so concurrent workers never block on each other
// and never double-pick the same job, then flips it to processing.
func selectAndLockJob(ctx context.Context, tx pgx.Tx, table string) (*domain.Job, error) {
	var job domain.Job
	var kind string
	switch table {
	case "receipt_jobs":
		kind = string(domain.JobKindReceipt)
	case "redeem_jobs":
		kind = string(domain.JobKindRedeem)
	}

	sql := fmt.Sprintf(`
		SELECT job_id, tenant, %s, status, attempts, last_error, result_summary, available_at, completed_at, created_at
		FROM %s
		WHERE status = 'pending' AND available_at <= now()
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, referenceColumn(table), table)

	err := tx.QueryRow(ctx, sql).Scan(
		&job.JobID, &job.Tenant, &job.ReferenceID, &job.Status, &job.Attempts, &job.LastError,
		&job.ResultSummary, &job.AvailableAt, &job.CompletedAt, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select next due job from %s: %w", table, err)
	}
	job.Kind = domain.JobKind(kind)
	job.Attempts++

	_, err = tx.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET status = 'processing', attempts = $2, processing_started_at = now() WHERE job_id = $1`, table),
		job.JobID, job.Attempts)
	if err != nil {
		return nil, fmt.Errorf("mark job %s processing: %w", job.JobID, err)
	}
	job.Status = domain.JobProcessing
	return &job, nil
}

func referenceColumn(table string) string {
	if table == "receipt_jobs" {
		return "receipt_id"
	}
	return "request_id"
}

func completeJob(ctx context.Context, q Querier, table string, jobID uuid.UUID, summary json.RawMessage) error {
	_, err := q.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET status = 'completed', result_summary = $2, completed_at = now() WHERE job_id = $1`, table),
		jobID, summary)
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

func rescheduleJob(ctx context.Context, pool *pgxpool.Pool, table string, jobID uuid.UUID, lastError string, availableAt time.Time) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET status = 'pending', last_error = $2, available_at = $3, processing_started_at = NULL WHERE job_id = $1`, table),
		jobID, lastError, availableAt)
	if err != nil {
		return fmt.Errorf("reschedule job %s: %w", jobID, err)
	}
	return nil
}

func failJob(ctx context.Context, q Querier, table string, jobID uuid.UUID, lastError string) error {
	_, err := q.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET status = 'failed', last_error = $2, completed_at = now() WHERE job_id = $1`, table),
		jobID, lastError)
	if err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	return nil
}

// CompleteReceiptJobTx finalizes a receipt job's completed status inside
// the caller's own transaction, so the write commits atomically with the
// ledger mutations and notification insert it reports on — a crash
// between the two can no longer leave a completed-looking ledger next to
// a job still marked processing for the reclaim pass to re-run.
func CompleteReceiptJobTx(ctx context.Context, q Querier, jobID uuid.UUID, summary json.RawMessage) error {
	return completeJob(ctx, q, "receipt_jobs", jobID, summary)
}

// CompleteRedeemJobTx mirrors CompleteReceiptJobTx for redeem_jobs.
func CompleteRedeemJobTx(ctx context.Context, q Querier, jobID uuid.UUID, summary json.RawMessage) error {
	return completeJob(ctx, q, "redeem_jobs", jobID, summary)
}

// FailRedeemJobTx finalizes a redeem job's declared-failure status inside
// the caller's own transaction, the same atomicity guarantee
// CompleteRedeemJobTx gives the success path. A declared failure still
// commits a notification row with no mutations, so without this the
// reclaim pass would only risk a duplicate notification rather than a
// double-spend, but the job's terminal write belongs in the same
// transaction regardless of outcome.
func FailRedeemJobTx(ctx context.Context, q Querier, jobID uuid.UUID, lastError string) error {
	return failJob(ctx, q, "redeem_jobs", jobID, lastError)
}

// EnqueueReceiptJob inserts the initial pending row for a newly accepted
// receipt. A unique violation on receipt_id means a job already exists
// (concurrent duplicate submission) and is folded into ErrJobAlreadyActive.
func EnqueueReceiptJob(ctx context.Context, q Querier, tenant string, receiptID uuid.UUID) (uuid.UUID, error) {
	return enqueueJob(ctx, q, "receipt_jobs", "receipt_id", tenant, receiptID)
}

// EnqueueRedeemJob mirrors EnqueueReceiptJob for redeem_jobs.
func EnqueueRedeemJob(ctx context.Context, q Querier, tenant string, requestID uuid.UUID) (uuid.UUID, error) {
	return enqueueJob(ctx, q, "redeem_jobs", "request_id", tenant, requestID)
}

func enqueueJob(ctx context.Context, q Querier, table, column, tenant string, referenceID uuid.UUID) (uuid.UUID, error) {
	jobID := uuid.New()
	_, err := q.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (job_id, tenant, %s) VALUES ($1, $2, $3)`, table, column),
		jobID, tenant, referenceID)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, ErrJobAlreadyActive
		}
		return uuid.Nil, fmt.Errorf("enqueue %s: %w", table, err)
	}
	return jobID, nil
}

// GetJobByReference looks up a job's current state by the receipt_id or
// request_id it was enqueued for, the lookup GET .../status handlers need.
func GetJobByReference(ctx context.Context, q Querier, table, column, tenant string, referenceID uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	sql := fmt.Sprintf(`
		SELECT job_id, tenant, %s, status, attempts, last_error, result_summary, available_at, completed_at, created_at
		FROM %s WHERE tenant = $1 AND %s = $2`, column, table, column)
	err := q.QueryRow(ctx, sql, tenant, referenceID).Scan(
		&job.JobID, &job.Tenant, &job.ReferenceID, &job.Status, &job.Attempts, &job.LastError,
		&job.ResultSummary, &job.AvailableAt, &job.CompletedAt, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job from %s: %w", table, err)
	}
	if table == "receipt_jobs" {
		job.Kind = domain.JobKindReceipt
	} else {
		job.Kind = domain.JobKindRedeem
	}
	return &job, nil
}

// ReclaimStuckJobs resets every job in table still marked processing
// after olderThan, back to pending, leaving attempts and last_error
// untouched so the next pickup retries with the same backoff history. A
// worker crash mid-job is the only way a row gets stuck here, since every
// other exit path moves the row out of processing: the work transaction's
// own completion/failure write and Fail set a terminal status, and
// Reschedule sets pending and clears processing_started_at.
func ReclaimStuckJobs(ctx context.Context, pool *pgxpool.Pool, table string, olderThan time.Duration) (int, error) {
	tag, err := pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = 'pending', processing_started_at = NULL
		WHERE status = 'processing' AND processing_started_at < now() - $1::interval`, table),
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("reclaim stuck jobs from %s: %w", table, err)
	}
	return int(tag.RowsAffected()), nil
}
