package plugins

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/loyaltyledger/ledgerd/internal/attribution"
	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/money"
)

// DefaultRedeem is the sole built-in redeem rule: it validates the
// request, computes cross-brand attribution, chooses an allocation
// strategy, and emits the debit/credit lines.
type DefaultRedeem struct{}

func (DefaultRedeem) Name() string { return "DefaultRedeem" }

func (DefaultRedeem) ShouldHandle(ctx context.Context, rctx RedeemContext, helpers RedeemHelpers) (bool, error) {
	return true, nil
}

func (DefaultRedeem) loadAllocationConfig(ctx context.Context, rctx RedeemContext, helpers RedeemHelpers) domain.CrossBrandAllocation {
	cfg := domain.CrossBrandAllocation{Strategy: "priority"}
	raw, err := helpers.GetProgramConfig(ctx, rctx.Tenant, rctx.ProgramID)
	if err != nil || len(raw) == 0 {
		return cfg
	}
	var wrapper struct {
		CrossBrandAllocation *domain.CrossBrandAllocation `json:"cross_brand_allocation"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.CrossBrandAllocation == nil {
		return cfg
	}
	return *wrapper.CrossBrandAllocation
}

func (p DefaultRedeem) Apply(ctx context.Context, rctx RedeemContext, helpers RedeemHelpers) (RedeemResult, error) {
	if !money.IsPositive(rctx.Qty) {
		return Failure("Redemption quantity must be positive", false), nil
	}

	alloc := p.loadAllocationConfig(ctx, rctx, helpers)

	candidates := make([]string, 0, len(alloc.Partners))
	for _, partner := range alloc.Partners {
		candidates = append(candidates, partner.MerchantAccount)
	}

	frozen, err := helpers.GetFrozenMerchants(ctx, candidates)
	if err != nil {
		return RedeemResult{}, err
	}
	unfrozen := attribution.DropFrozen(candidates, frozen)

	attributionCandidates := unfrozen
	if len(attributionCandidates) == 0 {
		attributionCandidates = []string{domain.MerchantLiabilityAccount(rctx.Tenant)}
	}

	attrs, err := helpers.GetOutstandingAttribution(ctx, rctx.CustomerAccount, OutstandingAttributionParams{
		PartnerAccounts: attributionCandidates,
		PartnerMap:      alloc.PartnerMap,
		ExpiryDays:      alloc.ExpiryDays,
		BurnMerchantID:  rctx.BurnMerchantID,
	})
	if err != nil {
		return RedeemResult{}, err
	}

	total := big.NewInt(0)
	for _, a := range attrs {
		total.Add(total, a.Amount)
	}
	if total.Cmp(rctx.Qty) < 0 {
		return Failure("Insufficient balance", false), nil
	}

	allocations, err := p.allocate(alloc, attrs, rctx.Qty, rctx.PartnerHint)
	if err != nil {
		return RedeemResult{}, err
	}

	customerLine := domain.DebitLine(rctx.Unit, rctx.CustomerAccount, rctx.Qty)
	lines := []domain.LedgerLine{customerLine}
	allocationSummary := make([]map[string]any, 0, len(allocations))
	for _, a := range allocations {
		if !money.IsPositive(a.Amount) {
			continue
		}
		lines = append(lines, domain.CreditLine(rctx.Unit, a.AccountID, a.Amount))
		item := map[string]any{"merchant_account": a.AccountID, "amount": a.Amount.Int64()}
		if a.SettlementAdjustmentBPS != nil {
			item["settlement_adjustment_bps"] = *a.SettlementAdjustmentBPS
		} else {
			item["settlement_adjustment_bps"] = nil
		}
		allocationSummary = append(allocationSummary, item)
	}

	memo := "redeem"
	if rctx.Memo != nil {
		memo = *rctx.Memo
	}
	entry := domain.LedgerEntry{ProgramID: rctx.ProgramID, Memo: memo, Lines: lines}

	summary := map[string]any{
		"points_redeemed": rctx.Qty.Int64(),
		"allocation":      allocationSummary,
	}
	if rctx.BurnMerchantID != nil {
		summary["burn_merchant_id"] = *rctx.BurnMerchantID
	} else {
		summary["burn_merchant_id"] = nil
	}

	return Success(Mutation{Entries: []domain.LedgerEntry{entry}, Summary: summary}), nil
}

func (p DefaultRedeem) allocate(alloc domain.CrossBrandAllocation, attrs []domain.Attribution, qty *big.Int, partnerHint *string) ([]domain.Attribution, error) {
	switch alloc.Strategy {
	case "source_proportional":
		return p.proportionalByAttribution(attrs, qty), nil
	case "proportional":
		if len(attrs) > 0 {
			return p.proportionalByAttribution(attrs, qty), nil
		}
		return p.proportionalByWeight(alloc.Partners, qty), nil
	default:
		return p.priority(attrs, qty, partnerHint), nil
	}
}

func (p DefaultRedeem) proportionalByAttribution(attrs []domain.Attribution, qty *big.Int) []domain.Attribution {
	weights := make([]*big.Int, len(attrs))
	for i, a := range attrs {
		weights[i] = a.Amount
	}
	shares := attribution.Distribute(qty, weights)
	out := make([]domain.Attribution, len(attrs))
	for i, a := range attrs {
		out[i] = domain.Attribution{AccountID: a.AccountID, Amount: shares[i], SettlementAdjustmentBPS: a.SettlementAdjustmentBPS}
	}
	return out
}

func (p DefaultRedeem) proportionalByWeight(partners []domain.AllocationPartner, qty *big.Int) []domain.Attribution {
	weights := make([]*big.Int, len(partners))
	for i, partner := range partners {
		w := 1.0
		if partner.Weight != nil {
			w = *partner.Weight
		}
		weights[i] = big.NewInt(int64(w * 1000))
	}
	shares := attribution.Distribute(qty, weights)
	out := make([]domain.Attribution, len(partners))
	for i, partner := range partners {
		out[i] = domain.Attribution{AccountID: partner.MerchantAccount, Amount: shares[i]}
	}
	return out
}

func (p DefaultRedeem) priority(attrs []domain.Attribution, qty *big.Int, partnerHint *string) []domain.Attribution {
	ordered := make([]domain.Attribution, len(attrs))
	copy(ordered, attrs)

	if partnerHint != nil {
		ordered = moveToFront(ordered, *partnerHint)
	}

	if len(ordered) == 0 {
		return ordered
	}

	result := make([]domain.Attribution, len(ordered))
	result[0] = domain.Attribution{AccountID: ordered[0].AccountID, Amount: new(big.Int).Set(qty), SettlementAdjustmentBPS: ordered[0].SettlementAdjustmentBPS}
	for i := 1; i < len(ordered); i++ {
		result[i] = domain.Attribution{AccountID: ordered[i].AccountID, Amount: big.NewInt(0), SettlementAdjustmentBPS: ordered[i].SettlementAdjustmentBPS}
	}
	return result
}

func moveToFront(attrs []domain.Attribution, accountID string) []domain.Attribution {
	idx := -1
	for i, a := range attrs {
		if a.AccountID == accountID {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return attrs
	}
	out := make([]domain.Attribution, 0, len(attrs))
	out = append(out, attrs[idx])
	out = append(out, attrs[:idx]...)
	out = append(out, attrs[idx+1:]...)
	return out
}
