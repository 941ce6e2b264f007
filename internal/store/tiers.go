package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// TierStore persists rolling-spend tier state and computes the rolling
// spend window RollingSpendTier needs.
type TierStore struct {
	q Querier
}

func NewTierStore(q Querier) *TierStore {
	return &TierStore{q: q}
}

func (s *TierStore) GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*domain.CustomerTier, error) {
	var t domain.CustomerTier
	err := s.q.QueryRow(ctx, `
		SELECT tenant, merchant_id, customer_account, tier_id, tier_name, window_days,
		       window_start, window_end, rolling_spend_cents, updated_at
		FROM customer_tiers WHERE tenant = $1 AND merchant_id = $2 AND customer_account = $3`,
		tenant, merchantID, customerAccount).Scan(
		&t.Tenant, &t.MerchantID, &t.CustomerAccount, &t.TierID, &t.TierName, &t.WindowDays,
		&t.WindowStart, &t.WindowEnd, &t.RollingSpendCents, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer tier: %w", err)
	}
	return &t, nil
}

func (s *TierStore) UpsertCustomerTier(ctx context.Context, params domain.UpsertCustomerTierParams) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO customer_tiers (
			tenant, merchant_id, customer_account, tier_id, tier_name, window_days,
			window_start, window_end, rolling_spend_cents, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (tenant, merchant_id, customer_account) DO UPDATE SET
			tier_id = EXCLUDED.tier_id,
			tier_name = EXCLUDED.tier_name,
			window_days = EXCLUDED.window_days,
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			rolling_spend_cents = EXCLUDED.rolling_spend_cents,
			updated_at = now()`,
		params.Tenant, params.MerchantID, params.CustomerAccount, params.TierID, params.TierName,
		params.WindowDays, params.WindowStart, params.WindowEnd, params.RollingSpendCents)
	if err != nil {
		return fmt.Errorf("upsert customer tier: %w", err)
	}
	return nil
}

// GetRollingSpendCents sums grand_total_cents across receipts for one
// merchant/customer within [windowStart, windowEnd), the input
// RollingSpendTier needs to pick the customer's current tier.
func (s *TierStore) GetRollingSpendCents(ctx context.Context, tenant, merchantID, customerAccountRef string, windowStart, windowEnd time.Time) (int64, error) {
	var total int64
	err := s.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(grand_total_cents), 0) FROM receipts
		WHERE tenant = $1 AND merchant_id = $2 AND account_ref = $3
		  AND issued_at >= $4 AND issued_at < $5`,
		tenant, merchantID, customerAccountRef, windowStart, windowEnd).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum rolling spend: %w", err)
	}
	return total, nil
}
