package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// RedeemStore persists redeem requests and their idempotency lookup.
type RedeemStore struct {
	q Querier
}

func NewRedeemStore(q Querier) *RedeemStore {
	return &RedeemStore{q: q}
}

func (s *RedeemStore) Insert(ctx context.Context, r domain.RedeemRequest) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO redeem_requests (
			tenant, request_id, idempotency_key, account_id, program_id, unit, qty,
			memo, burn_merchant_id, partner_hint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.Tenant, r.RequestID, r.IdempotencyKey, r.AccountID, r.ProgramID, r.Unit, r.Qty.String(),
		r.Memo, r.BurnMerchantID, r.PartnerHint)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRedeem
		}
		return fmt.Errorf("insert redeem request: %w", err)
	}
	return nil
}

func (s *RedeemStore) FindByIdempotencyKey(ctx context.Context, tenant, key string) (*domain.RedeemRequest, error) {
	return s.scanOne(ctx, `
		SELECT tenant, request_id, idempotency_key, account_id, program_id, unit, qty,
		       memo, burn_merchant_id, partner_hint, created_at
		FROM redeem_requests WHERE tenant = $1 AND idempotency_key = $2`, tenant, key)
}

func (s *RedeemStore) GetByID(ctx context.Context, tenant string, requestID uuid.UUID) (*domain.RedeemRequest, error) {
	return s.scanOne(ctx, `
		SELECT tenant, request_id, idempotency_key, account_id, program_id, unit, qty,
		       memo, burn_merchant_id, partner_hint, created_at
		FROM redeem_requests WHERE tenant = $1 AND request_id = $2`, tenant, requestID)
}

func (s *RedeemStore) scanOne(ctx context.Context, sql string, args ...any) (*domain.RedeemRequest, error) {
	var r domain.RedeemRequest
	var qty string
	err := s.q.QueryRow(ctx, sql, args...).Scan(
		&r.Tenant, &r.RequestID, &r.IdempotencyKey, &r.AccountID, &r.ProgramID, &r.Unit, &qty,
		&r.Memo, &r.BurnMerchantID, &r.PartnerHint, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan redeem request: %w", err)
	}
	v, ok := new(big.Int).SetString(qty, 10)
	if !ok {
		return nil, fmt.Errorf("parse redeem qty %q", qty)
	}
	r.Qty = v
	return &r, nil
}
