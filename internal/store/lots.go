package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
)

// LotStore implements point-lot creation and FIFO consumption. All methods
// must run inside the caller's open transaction alongside the ledger write
// they accompany — a lot is only ever created or drawn down in the same
// transaction as the journal entry that justifies it.
type LotStore struct {
	q Querier
}

func NewLotStore(q Querier) *LotStore {
	return &LotStore{q: q}
}

func (s *LotStore) CreateLot(ctx context.Context, params domain.CreateLotParams) (uuid.UUID, error) {
	lotID := uuid.New()
	_, err := s.q.Exec(ctx, `
		INSERT INTO point_lots (
			lot_id, tenant, program_id, unit, customer_account, merchant_id,
			earn_entry_id, qty_total, qty_remaining, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9)`,
		lotID, params.Tenant, params.ProgramID, params.Unit, params.CustomerAccount, params.MerchantID,
		params.EarnEntryID, params.Qty.String(), params.ExpiresAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert point_lots: %w", err)
	}
	return lotID, nil
}

// ConsumeLots draws down eligible lots for one customer/program/unit in
// FIFO order (soonest expiry first, then oldest first among lots that
// never expire), locking each candidate row before decrementing it.
// Returns ledgererr.ErrInsufficientLots if the scoped balance can't cover
// the requested amount — callers are expected to run this inside a
// transaction that gets rolled back on that error.
func (s *LotStore) ConsumeLots(ctx context.Context, params domain.ConsumeParams, filter domain.LotFilter) ([]domain.LotConsumption, error) {
	sql := `
		SELECT lot_id, merchant_id, qty_remaining
		FROM point_lots
		WHERE tenant = $1 AND customer_account = $2 AND program_id = $3 AND unit = $4
		  AND qty_remaining > 0 AND (expires_at IS NULL OR expires_at > now())`
	args := []any{params.Tenant, params.CustomerAccount, params.ProgramID, params.Unit}

	if len(filter.MerchantIDs) > 0 {
		sql += fmt.Sprintf(" AND merchant_id = ANY($%d)", len(args)+1)
		args = append(args, filter.MerchantIDs)
	}
	if filter.MaxAgeDays != nil {
		sql += fmt.Sprintf(" AND created_at >= now() - ($%d * INTERVAL '1 day')", len(args)+1)
		args = append(args, *filter.MaxAgeDays)
	}
	sql += " ORDER BY expires_at ASC NULLS LAST, created_at ASC FOR UPDATE"

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select candidate lots: %w", err)
	}

	type candidate struct {
		lotID        uuid.UUID
		merchantID   *string
		qtyRemaining *big.Int
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var raw string
		if err := rows.Scan(&c.lotID, &c.merchantID, &raw); err != nil {
			rows.Close()
			return nil, err
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("parse qty_remaining %q", raw)
		}
		c.qtyRemaining = v
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	remaining := new(big.Int).Set(params.Amount)
	var consumed []domain.LotConsumption
	for _, c := range candidates {
		if remaining.Sign() <= 0 {
			break
		}
		draw := new(big.Int).Set(c.qtyRemaining)
		if draw.Cmp(remaining) > 0 {
			draw = new(big.Int).Set(remaining)
		}
		_, err := s.q.Exec(ctx, `UPDATE point_lots SET qty_remaining = qty_remaining - $2 WHERE lot_id = $1`,
			c.lotID, draw.String())
		if err != nil {
			return nil, fmt.Errorf("decrement lot %s: %w", c.lotID, err)
		}
		consumed = append(consumed, domain.LotConsumption{LotID: c.lotID, MerchantID: c.merchantID, Amount: draw})
		remaining.Sub(remaining, draw)
	}

	if remaining.Sign() > 0 {
		return nil, ledgererr.ErrInsufficientLots
	}
	return consumed, nil
}

// SumEligible returns the total qty_remaining across non-expired lots for
// one earn merchant, under an optional age bound — the balance a
// RuleBalanceFetcher returns to internal/attribution.
func (s *LotStore) SumEligible(ctx context.Context, tenant, customerAccount, programID, unit, merchantID string, maxAgeDays *int) (*big.Int, error) {
	sql := `
		SELECT COALESCE(SUM(qty_remaining), 0) FROM point_lots
		WHERE tenant = $1 AND customer_account = $2 AND program_id = $3 AND unit = $4 AND merchant_id = $5
		  AND (expires_at IS NULL OR expires_at > now())`
	args := []any{tenant, customerAccount, programID, unit, merchantID}
	if maxAgeDays != nil {
		sql += fmt.Sprintf(" AND created_at >= now() - ($%d * INTERVAL '1 day')", len(args)+1)
		args = append(args, *maxAgeDays)
	}

	var raw string
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("sum eligible lots: %w", err)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("parse sum %q", raw)
	}
	return v, nil
}

// SumByMerchant returns qty_remaining grouped by merchant_id among
// non-expired lots, the shape getOutstandingAttribution's fallback path
// needs when no burn merchant was supplied.
func (s *LotStore) SumByMerchant(ctx context.Context, tenant, customerAccount, programID, unit string, maxAgeDays *int) (map[string]*big.Int, error) {
	sql := `
		SELECT merchant_id, COALESCE(SUM(qty_remaining), 0) FROM point_lots
		WHERE tenant = $1 AND customer_account = $2 AND program_id = $3 AND unit = $4
		  AND (expires_at IS NULL OR expires_at > now()) AND merchant_id IS NOT NULL`
	args := []any{tenant, customerAccount, programID, unit}
	if maxAgeDays != nil {
		sql += fmt.Sprintf(" AND created_at >= now() - ($%d * INTERVAL '1 day')", len(args)+1)
		args = append(args, *maxAgeDays)
	}
	sql += " GROUP BY merchant_id"

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("sum lots by merchant: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*big.Int)
	for rows.Next() {
		var merchantID, raw string
		if err := rows.Scan(&merchantID, &raw); err != nil {
			return nil, err
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("parse sum %q", raw)
		}
		out[merchantID] = v
	}
	return out, rows.Err()
}
