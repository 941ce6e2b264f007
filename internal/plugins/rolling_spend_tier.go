package plugins

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// RollingSpendTier recomputes a customer's loyalty tier from their
// rolling spend within a configured window and upserts it.
type RollingSpendTier struct{}

func (RollingSpendTier) Name() string { return "RollingSpendTier" }

type loyaltyTiersConfig struct {
	LoyaltyTiers *domain.LoyaltyTierConfig `json:"loyalty_tiers"`
}

func (p RollingSpendTier) loadConfig(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) *domain.LoyaltyTierConfig {
	raw, err := helpers.GetProgramConfig(ctx, rctx.Tenant, rctx.ProgramID)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var cfg loyaltyTiersConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil
	}
	if cfg.LoyaltyTiers == nil || len(cfg.LoyaltyTiers.Tiers) == 0 {
		return nil
	}
	return cfg.LoyaltyTiers
}

func (p RollingSpendTier) ShouldHandle(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (bool, error) {
	return p.loadConfig(ctx, rctx, helpers) != nil, nil
}

func (p RollingSpendTier) Apply(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (*Mutation, error) {
	cfg := p.loadConfig(ctx, rctx, helpers)
	if cfg == nil {
		return nil, nil
	}

	tiers := make([]domain.LoyaltyTierDef, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].ThresholdCents < tiers[j].ThresholdCents
	})

	windowEnd := helpers.Now()
	windowStart := windowEnd.Add(-time.Duration(cfg.WindowDays) * 24 * time.Hour)

	spend, err := helpers.GetRollingSpendCents(ctx, rctx.Tenant, rctx.MerchantID, rctx.CustomerAccountRef, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	selected := tiers[0]
	for _, t := range tiers {
		if t.ThresholdCents <= spend {
			selected = t
		}
	}

	tierName := selected.ID
	if selected.DisplayName != nil {
		tierName = *selected.DisplayName
	}

	if err := helpers.UpsertCustomerTier(ctx, domain.UpsertCustomerTierParams{
		Tenant:            rctx.Tenant,
		MerchantID:        rctx.MerchantID,
		CustomerAccount:   rctx.CustomerAccount,
		TierID:            selected.ID,
		TierName:          tierName,
		WindowDays:        cfg.WindowDays,
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		RollingSpendCents: spend,
	}); err != nil {
		return nil, err
	}

	return &Mutation{Summary: map[string]any{"loyalty_tier": tierName}}, nil
}
