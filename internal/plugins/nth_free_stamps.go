package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// NthFreeStamps issues a stamp per matching SKU and a coupon every Nth
// stamp, per program-configured stamp_programs.
type NthFreeStamps struct{}

func (NthFreeStamps) Name() string { return "NthFreeStamps" }

func (p NthFreeStamps) ShouldHandle(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (bool, error) {
	programs, err := p.loadPrograms(ctx, rctx, helpers)
	return err == nil && len(programs) > 0, nil
}

type stampProgramsConfig struct {
	StampPrograms []domain.StampProgram `json:"stamp_programs"`
}

func (NthFreeStamps) loadPrograms(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) ([]domain.StampProgram, error) {
	raw, err := helpers.GetProgramConfig(ctx, rctx.Tenant, rctx.ProgramID)
	if err != nil || len(raw) == 0 {
		return nil, err
	}
	var cfg stampProgramsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return cfg.StampPrograms, nil
}

func (p NthFreeStamps) Apply(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (*Mutation, error) {
	programs, err := p.loadPrograms(ctx, rctx, helpers)
	if err != nil || len(programs) == 0 {
		return nil, nil
	}

	merchantAccount := domain.MerchantLiabilityAccount(rctx.Tenant)
	var entries []domain.LedgerEntry
	summary := make(map[string]any)

	for _, sp := range programs {
		effectiveStampsPerItem, effectiveThreshold := p.resolveEffective(ctx, rctx, helpers, sp)
		if effectiveStampsPerItem <= 0 {
			continue
		}

		stampsAdded := p.matchingStamps(rctx.LineItems, sp.SKUs, effectiveStampsPerItem)
		if stampsAdded.Sign() <= 0 {
			continue
		}

		stampUnit := fmt.Sprintf("stamps:%s", sp.ID)
		if sp.Unit != nil {
			stampUnit = *sp.Unit
		}
		entries = append(entries, domain.LedgerEntry{
			ProgramID: rctx.ProgramID,
			Memo:      fmt.Sprintf("stamp:%s", sp.ID),
			Lines: []domain.LedgerLine{
				domain.DebitLine(stampUnit, merchantAccount, stampsAdded),
				domain.CreditLine(stampUnit, rctx.CustomerAccount, stampsAdded),
			},
		})

		progSummary := map[string]any{"stamps_added": stampsAdded.Int64()}
		var coupons *big.Int
		if effectiveThreshold > 0 {
			priorBalance, err := helpers.GetAccountBalance(ctx, rctx.CustomerAccount, rctx.ProgramID, stampUnit)
			if err != nil {
				return nil, err
			}

			n := big.NewInt(int64(effectiveThreshold))
			priorQuotient := new(big.Int).Div(priorBalance, n)
			newBalance := new(big.Int).Add(priorBalance, stampsAdded)
			newQuotient := new(big.Int).Div(newBalance, n)
			coupons = new(big.Int).Sub(newQuotient, priorQuotient)
		}
		if coupons != nil && coupons.Sign() > 0 {
			couponUnit := fmt.Sprintf("coupon:%s", sp.ID)
			if sp.CouponUnit != nil {
				couponUnit = *sp.CouponUnit
			}
			entries = append(entries, domain.LedgerEntry{
				ProgramID: rctx.ProgramID,
				Memo:      fmt.Sprintf("coupon:%s", sp.ID),
				Lines: []domain.LedgerLine{
					domain.DebitLine(couponUnit, merchantAccount, coupons),
					domain.CreditLine(couponUnit, rctx.CustomerAccount, coupons),
				},
			})
			progSummary["coupons_added"] = coupons.Int64()
		}
		summary[sp.ID] = progSummary
	}

	if len(entries) == 0 {
		return nil, nil
	}
	return &Mutation{Entries: entries, Summary: map[string]any{"stamp_programs": summary}}, nil
}

func (NthFreeStamps) resolveEffective(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers, sp domain.StampProgram) (float64, float64) {
	stampsPerItem := 1.0
	if sp.StampsPerItem != nil {
		stampsPerItem = *sp.StampsPerItem
	}
	threshold := 0.0
	if sp.Threshold != nil {
		threshold = *sp.Threshold
	}

	if len(sp.TierOverrides) > 0 {
		tier, err := helpers.GetCustomerTier(ctx, rctx.Tenant, rctx.MerchantID, rctx.CustomerAccount)
		if err == nil && tier != nil {
			if override, ok := sp.TierOverrides[tier.TierID]; ok {
				if override.StampsPerItem != nil {
					stampsPerItem = *override.StampsPerItem
				}
				if override.Threshold != nil {
					threshold = *override.Threshold
				}
			}
		}
	}
	return stampsPerItem, threshold
}

func (NthFreeStamps) matchingStamps(items []domain.ReceiptLineItem, skus []string, stampsPerItem float64) *big.Int {
	skuSet := make(map[string]bool, len(skus))
	for _, s := range skus {
		skuSet[strings.ToLower(s)] = true
	}

	total := 0.0
	for _, item := range items {
		if skuSet[strings.ToLower(item.SKU)] {
			total += item.Qty * stampsPerItem
		}
	}
	return big.NewInt(int64(total + 0.5))
}
