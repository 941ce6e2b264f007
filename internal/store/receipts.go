package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// ReceiptStore persists receipts and the idempotency/fingerprint lookups
// ingestion needs before enqueueing a job.
type ReceiptStore struct {
	q Querier
}

func NewReceiptStore(q Querier) *ReceiptStore {
	return &ReceiptStore{q: q}
}

// Insert writes a new receipt row. Callers must have already checked for a
// duplicate idempotency key or fingerprint via FindDuplicate; a unique
// violation here is treated as ErrDuplicateReceipt rather than bubbling up
// the driver's constraint error.
func (s *ReceiptStore) Insert(ctx context.Context, r domain.Receipt) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO receipts (
			tenant, receipt_id, idempotency_key, fingerprint, merchant_id, store_id,
			account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.Tenant, r.ReceiptID, r.IdempotencyKey, r.Fingerprint, r.MerchantID, r.StoreID,
		r.AccountRef, r.ProgramID, r.GrandTotalCents, r.ProcessorTxnID, r.IssuedAt, r.Payload)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReceipt
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

// FindByIdempotencyKey returns the receipt already stored under key, if
// any, so ingestion can return its existing job handle instead of
// re-enqueueing.
func (s *ReceiptStore) FindByIdempotencyKey(ctx context.Context, tenant, key string) (*domain.Receipt, error) {
	return s.scanOne(ctx, `
		SELECT tenant, receipt_id, idempotency_key, fingerprint, merchant_id, store_id,
		       account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload, created_at
		FROM receipts WHERE tenant = $1 AND idempotency_key = $2`, tenant, key)
}

// FindByFingerprint returns the receipt already stored under the same
// content fingerprint, the content-addressed half of duplicate detection
// for submissions that never carried an idempotency key.
func (s *ReceiptStore) FindByFingerprint(ctx context.Context, tenant, fingerprint string) (*domain.Receipt, error) {
	return s.scanOne(ctx, `
		SELECT tenant, receipt_id, idempotency_key, fingerprint, merchant_id, store_id,
		       account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload, created_at
		FROM receipts WHERE tenant = $1 AND fingerprint = $2`, tenant, fingerprint)
}

func (s *ReceiptStore) GetByID(ctx context.Context, tenant string, receiptID uuid.UUID) (*domain.Receipt, error) {
	return s.scanOne(ctx, `
		SELECT tenant, receipt_id, idempotency_key, fingerprint, merchant_id, store_id,
		       account_ref, program_id, grand_total_cents, processor_txn_id, issued_at, payload, created_at
		FROM receipts WHERE tenant = $1 AND receipt_id = $2`, tenant, receiptID)
}

func (s *ReceiptStore) scanOne(ctx context.Context, sql string, args ...any) (*domain.Receipt, error) {
	var r domain.Receipt
	err := s.q.QueryRow(ctx, sql, args...).Scan(
		&r.Tenant, &r.ReceiptID, &r.IdempotencyKey, &r.Fingerprint, &r.MerchantID, &r.StoreID,
		&r.AccountRef, &r.ProgramID, &r.GrandTotalCents, &r.ProcessorTxnID, &r.IssuedAt, &r.Payload, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	return &r, nil
}
