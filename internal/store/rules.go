package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// RuleStore implements merchant redemption rule lookups.
type RuleStore struct {
	q Querier
}

func NewRuleStore(q Querier) *RuleStore {
	return &RuleStore{q: q}
}

// LoadRules loads every enabled rule for one burn merchant, indexed the
// way attribution.Input.Rules needs.
func (s *RuleStore) LoadRules(ctx context.Context, tenant, burnMerchantID string) (domain.RuleSet, error) {
	rows, err := s.q.Query(ctx, `
		SELECT tenant, earn_merchant_id, burn_merchant_id, earn_merchant_account,
		       expiry_days_override, settlement_adjustment_bps, enabled
		FROM merchant_redemption_rules
		WHERE tenant = $1 AND burn_merchant_id = $2 AND enabled = true`, tenant, burnMerchantID)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.MerchantRedemptionRule
	for rows.Next() {
		var r domain.MerchantRedemptionRule
		if err := rows.Scan(&r.Tenant, &r.EarnMerchantID, &r.BurnMerchantID, &r.EarnMerchantAccount,
			&r.ExpiryDaysOverride, &r.SettlementAdjustmentBPS, &r.Enabled); err != nil {
			return domain.RuleSet{}, err
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return domain.RuleSet{}, err
	}
	return domain.NewRuleSet(rules), nil
}

// GetRule looks up the single enabled rule matching a (burn merchant, earn
// merchant account) pair, the lookup jobs.MutationApplier.GetRule needs
// when scoping lot consumption to a matched rule.
func (s *RuleStore) GetRule(ctx context.Context, tenant, burnMerchantID, earnMerchantAccount string) (*domain.MerchantRedemptionRule, error) {
	var r domain.MerchantRedemptionRule
	err := s.q.QueryRow(ctx, `
		SELECT tenant, earn_merchant_id, burn_merchant_id, earn_merchant_account,
		       expiry_days_override, settlement_adjustment_bps, enabled
		FROM merchant_redemption_rules
		WHERE tenant = $1 AND burn_merchant_id = $2 AND earn_merchant_account = $3 AND enabled = true`,
		tenant, burnMerchantID, earnMerchantAccount).Scan(
		&r.Tenant, &r.EarnMerchantID, &r.BurnMerchantID, &r.EarnMerchantAccount,
		&r.ExpiryDaysOverride, &r.SettlementAdjustmentBPS, &r.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &r, nil
}

// Upsert writes or replaces a merchant redemption rule, the write path for
// the rule-runner worker mode.
func (s *RuleStore) Upsert(ctx context.Context, r domain.MerchantRedemptionRule) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO merchant_redemption_rules (
			tenant, earn_merchant_id, burn_merchant_id, earn_merchant_account,
			expiry_days_override, settlement_adjustment_bps, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant, earn_merchant_id, burn_merchant_id) DO UPDATE SET
			earn_merchant_account = EXCLUDED.earn_merchant_account,
			expiry_days_override = EXCLUDED.expiry_days_override,
			settlement_adjustment_bps = EXCLUDED.settlement_adjustment_bps,
			enabled = EXCLUDED.enabled`,
		r.Tenant, r.EarnMerchantID, r.BurnMerchantID, r.EarnMerchantAccount,
		r.ExpiryDaysOverride, r.SettlementAdjustmentBPS, r.Enabled)
	if err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	return nil
}
