// Package jobs implements the mutation-application order (§4.7) and the
// generic pending/processing/completed/failed state machine shared by the
// receipt and redeem job tables.
package jobs

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/attribution"
	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
	"github.com/loyaltyledger/ledgerd/internal/plugins"
)

// MutationApplier is the store-backed side of mutation application: the
// part that needs a transaction. Everything else in this package is pure.
type MutationApplier interface {
	AppendEntries(ctx context.Context, tenant string, entries []domain.LedgerEntry) ([]domain.LedgerJournal, [][]domain.LedgerLineRow, error)
	CreateLot(ctx context.Context, params domain.CreateLotParams) (uuid.UUID, error)
	ConsumeLots(ctx context.Context, params domain.ConsumeParams, filter domain.LotFilter) ([]domain.LotConsumption, error)
	GetRule(ctx context.Context, tenant, burnMerchantID, earnMerchantAccount string) (*domain.MerchantRedemptionRule, error)
}

// ApplyMutationsParams bundles the context a mutation batch needs beyond
// the mutations themselves.
type ApplyMutationsParams struct {
	Tenant         string
	ProgramID      string
	CrossBrand     *domain.CrossBrandAllocation
	EarnExpiry     domain.EarnExpiryConfig
	BurnMerchantID *string
	Now            time.Time
}

// ApplyMutations executes §4.7's mutation application order for a full
// receipt (multiple mutations) or a single redeem mutation: appendEntries,
// then lot creation for earn lines, then lot consumption for allocation
// summaries (untargeted FIFO consumption when a customer-debit entry
// carries no allocation), in that order per mutation.
func ApplyMutations(ctx context.Context, applier MutationApplier, params ApplyMutationsParams, mutations []plugins.Mutation) (map[string]any, error) {
	merged := make(map[string]any)

	for _, mutation := range mutations {
		if len(mutation.Entries) > 0 {
			journals, lineSets, err := applier.AppendEntries(ctx, params.Tenant, mutation.Entries)
			if err != nil {
				return nil, err
			}
			for i, entry := range mutation.Entries {
				if err := createLotsForEarnEntry(ctx, applier, params, journals[i], entry, lineSets[i]); err != nil {
					return nil, err
				}
			}
			alloc, hasAlloc := mutation.Summary["allocation"]
			if !hasAlloc {
				// A customer-debit entry with no allocation summary still
				// consumes lots, untargeted; earn/stamp entries debit the
				// merchant liability account and are skipped.
				if acct, _, ok := customerDebitLine(lineSets[0]); ok && !domain.IsMerchantLiabilityAccount(acct) {
					hasAlloc = true
				}
			}
			if hasAlloc {
				if err := consumeLotsForAllocation(ctx, applier, params, mutation.Entries[0], lineSets[0], alloc); err != nil {
					return nil, err
				}
			}
		}
		for k, v := range mutation.Summary {
			merged[k] = v
		}
	}
	return merged, nil
}

func createLotsForEarnEntry(ctx context.Context, applier MutationApplier, params ApplyMutationsParams, journal domain.LedgerJournal, entry domain.LedgerEntry, lines []domain.LedgerLineRow) error {
	if !strings.HasPrefix(entry.Memo, "earn:") {
		return nil
	}
	merchantID := strings.TrimPrefix(entry.Memo, "earn:")

	for _, line := range lines {
		if line.Unit != "points" || !(line.Credit != nil && line.Credit.Sign() > 0) {
			continue
		}
		if domain.IsMerchantLiabilityAccount(line.AccountID) {
			continue
		}
		expiresAt := resolveExpiry(params, merchantID)
		_, err := applier.CreateLot(ctx, domain.CreateLotParams{
			Tenant:          params.Tenant,
			ProgramID:       params.ProgramID,
			Unit:            line.Unit,
			CustomerAccount: line.AccountID,
			MerchantID:      &merchantID,
			EarnEntryID:     journal.EntryID,
			Qty:             line.Credit,
			ExpiresAt:       expiresAt,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func resolveExpiry(params ApplyMutationsParams, merchantID string) *time.Time {
	var days *int

	if params.CrossBrand != nil {
		if partnerAccount, ok := params.CrossBrand.PartnerMap[merchantID]; ok {
			for _, p := range params.CrossBrand.Partners {
				if p.MerchantAccount == partnerAccount && p.ExpiryDays != nil {
					v := *p.ExpiryDays
					days = &v
					break
				}
			}
		}
	}
	if days == nil {
		if d, ok := params.EarnExpiry.EarnExpiryOverrides[merchantID]; ok {
			days = &d
		}
	}
	if days == nil {
		days = params.EarnExpiry.EarnExpiryDaysDefault
	}
	if days == nil {
		return nil
	}
	t := params.Now.AddDate(0, 0, *days)
	return &t
}

func consumeLotsForAllocation(ctx context.Context, applier MutationApplier, params ApplyMutationsParams, entry domain.LedgerEntry, lines []domain.LedgerLineRow, allocationRaw any) error {
	customerAccount, unit, ok := customerDebitLine(lines)
	if !ok {
		return nil
	}

	allocations, ok := allocationRaw.([]map[string]any)
	if !ok || len(allocations) == 0 {
		// Absent allocation: untargeted FIFO consumption of the full
		// redeemed amount across all merchants.
		total := totalCredits(lines)
		if total.Sign() == 0 {
			return nil
		}
		_, err := applier.ConsumeLots(ctx, domain.ConsumeParams{
			Tenant:          params.Tenant,
			CustomerAccount: customerAccount,
			ProgramID:       params.ProgramID,
			Unit:            unit,
			Amount:          total,
		}, domain.LotFilter{})
		return err
	}

	for _, item := range allocations {
		merchantAccount, _ := item["merchant_account"].(string)
		amount := toBigInt(item["amount"])
		if amount == nil || amount.Sign() <= 0 {
			continue
		}

		merchantIDs, bound := resolveConsumptionScope(ctx, applier, params, merchantAccount)
		_, err := applier.ConsumeLots(ctx, domain.ConsumeParams{
			Tenant:          params.Tenant,
			CustomerAccount: customerAccount,
			ProgramID:       params.ProgramID,
			Unit:            unit,
			Amount:          amount,
		}, domain.LotFilter{MerchantIDs: merchantIDs, MaxAgeDays: bound})
		if err != nil {
			return err
		}
	}
	return nil
}

func resolveConsumptionScope(ctx context.Context, applier MutationApplier, params ApplyMutationsParams, merchantAccount string) ([]string, *int) {
	var globalExpiry *int
	if params.CrossBrand != nil {
		globalExpiry = params.CrossBrand.ExpiryDays
	}

	if params.BurnMerchantID != nil {
		rule, err := applier.GetRule(ctx, params.Tenant, *params.BurnMerchantID, merchantAccount)
		if err == nil && rule != nil {
			return []string{rule.EarnMerchantID}, attribution.CombineExpiryDays(globalExpiry, rule.ExpiryDaysOverride)
		}
	}

	var merchantIDs []string
	if params.CrossBrand != nil {
		for merchantID, partnerAccount := range params.CrossBrand.PartnerMap {
			if partnerAccount == merchantAccount {
				merchantIDs = append(merchantIDs, merchantID)
			}
		}
	}
	return merchantIDs, globalExpiry
}

func customerDebitLine(lines []domain.LedgerLineRow) (accountID, unit string, ok bool) {
	for _, l := range lines {
		if l.Debit != nil && l.Debit.Sign() > 0 {
			return l.AccountID, l.Unit, true
		}
	}
	return "", "", false
}

func totalCredits(lines []domain.LedgerLineRow) *big.Int {
	total := big.NewInt(0)
	for _, l := range lines {
		if l.Debit != nil && l.Debit.Sign() > 0 {
			total.Add(total, l.Debit)
		}
	}
	return total
}

func toBigInt(v any) *big.Int {
	switch n := v.(type) {
	case int64:
		return big.NewInt(n)
	case int:
		return big.NewInt(int64(n))
	case *big.Int:
		return n
	default:
		return nil
	}
}

// ClassifyOutcome maps an error from plugin evaluation or mutation
// application to the job state-machine transition it implies.
func ClassifyOutcome(err error) (retryable bool) {
	return ledgererr.Retryable(err)
}
