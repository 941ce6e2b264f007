package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// MerchantStore persists frozen/unfrozen status and the queued freeze
// decisions the freezer worker drains.
type MerchantStore struct {
	q Querier
}

func NewMerchantStore(q Querier) *MerchantStore {
	return &MerchantStore{q: q}
}

// GetFrozenMerchants returns the subset of accounts currently frozen,
// the shape RedeemHelpers.GetFrozenMerchants needs.
func (s *MerchantStore) GetFrozenMerchants(ctx context.Context, accounts []string) (map[string]bool, error) {
	rows, err := s.q.Query(ctx, `
		SELECT merchant_account FROM merchant_status WHERE merchant_account = ANY($1) AND frozen = true`, accounts)
	if err != nil {
		return nil, fmt.Errorf("query frozen merchants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, err
		}
		out[account] = true
	}
	return out, rows.Err()
}

// SetFrozen writes the current frozen state for a merchant account.
func (s *MerchantStore) SetFrozen(ctx context.Context, tenant, merchantAccount string, frozen bool) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO merchant_status (tenant, merchant_account, frozen) VALUES ($1, $2, $3)
		ON CONFLICT (tenant, merchant_account) DO UPDATE SET frozen = EXCLUDED.frozen`,
		tenant, merchantAccount, frozen)
	if err != nil {
		return fmt.Errorf("set frozen: %w", err)
	}
	return nil
}

// EnqueueFreezeRequest queues a freeze/unfreeze decision for the freezer
// worker to apply, keeping the decision-making risk system off the
// database credential path.
func (s *MerchantStore) EnqueueFreezeRequest(ctx context.Context, req domain.FreezeRequest) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO merchant_freeze_requests (request_id, tenant, merchant_account, frozen, reason)
		VALUES ($1, $2, $3, $4, $5)`,
		req.RequestID, req.Tenant, req.MerchantAccount, req.Frozen, req.Reason)
	if err != nil {
		return fmt.Errorf("enqueue freeze request: %w", err)
	}
	return nil
}

// DrainFreezeRequests locks and returns up to limit unprocessed freeze
// requests for the freezer worker to apply, marking them processed in the
// same transaction the caller is expected to hold.
func (s *MerchantStore) DrainFreezeRequests(ctx context.Context, limit int) ([]domain.FreezeRequest, error) {
	rows, err := s.q.Query(ctx, `
		SELECT request_id, tenant, merchant_account, frozen, reason
		FROM merchant_freeze_requests
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("drain freeze requests: %w", err)
	}

	var out []domain.FreezeRequest
	var ids []uuid.UUID
	for rows.Next() {
		var req domain.FreezeRequest
		var id uuid.UUID
		if err := rows.Scan(&id, &req.Tenant, &req.MerchantAccount, &req.Frozen, &req.Reason); err != nil {
			rows.Close()
			return nil, err
		}
		req.RequestID = id.String()
		out = append(out, req)
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	_, err = s.q.Exec(ctx, `UPDATE merchant_freeze_requests SET processed_at = now() WHERE request_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("mark freeze requests processed: %w", err)
	}
	return out, nil
}
