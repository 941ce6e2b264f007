// Package worker wires the plugin chain (internal/plugins) and mutation
// application (internal/jobs) to the store, implementing the ProcessFunc
// the generic job processor drives for both the receipt and redeem
// tables.
package worker

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/attribution"
	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/plugins"
	"github.com/loyaltyledger/ledgerd/internal/store"
)

// Helpers implements plugins.ReceiptHelpers and plugins.RedeemHelpers
// against the store layer, scoped to a single job's transaction. A fresh
// Helpers is built per job: tenant, programID and unit never change
// mid-job, and now is frozen at job start so every plugin in the chain
// sees the same wall clock.
type Helpers struct {
	q         store.Querier
	tenant    string
	programID string
	unit      string

	programStore  *store.ProgramStore
	tierStore     *store.TierStore
	lotStore      *store.LotStore
	ledgerStore   *store.LedgerStore
	merchantStore *store.MerchantStore
	ruleStore     *store.RuleStore

	now time.Time
}

// NewHelpers builds a Helpers bound to q (the job's open transaction).
// unit is only meaningful for redeem jobs; receipt plugins never read it.
func NewHelpers(q store.Querier, tenant, programID, unit string, now time.Time) *Helpers {
	return &Helpers{
		q:             q,
		tenant:        tenant,
		programID:     programID,
		unit:          unit,
		programStore:  store.NewProgramStore(q),
		tierStore:     store.NewTierStore(q),
		lotStore:      store.NewLotStore(q),
		ledgerStore:   store.NewLedgerStore(q),
		merchantStore: store.NewMerchantStore(q),
		ruleStore:     store.NewRuleStore(q),
		now:           now,
	}
}

func (h *Helpers) Now() time.Time { return h.now }

func (h *Helpers) GenerateID() uuid.UUID { return uuid.New() }

func (h *Helpers) GetProgramConfig(ctx context.Context, tenant, programID string) ([]byte, error) {
	return h.programStore.GetConfig(ctx, tenant, programID)
}

func (h *Helpers) GetAccountBalance(ctx context.Context, accountID, programID, unit string) (*big.Int, error) {
	return h.ledgerStore.Balance(ctx, h.tenant, accountID, &programID, &unit)
}

func (h *Helpers) GetRollingSpendCents(ctx context.Context, tenant, merchantID, customerAccountRef string, windowStart, windowEnd time.Time) (int64, error) {
	return h.tierStore.GetRollingSpendCents(ctx, tenant, merchantID, customerAccountRef, windowStart, windowEnd)
}

func (h *Helpers) UpsertCustomerTier(ctx context.Context, params domain.UpsertCustomerTierParams) error {
	return h.tierStore.UpsertCustomerTier(ctx, params)
}

func (h *Helpers) GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*domain.CustomerTier, error) {
	return h.tierStore.GetCustomerTier(ctx, tenant, merchantID, customerAccount)
}

func (h *Helpers) GetFrozenMerchants(ctx context.Context, accounts []string) (map[string]bool, error) {
	if len(accounts) == 0 {
		return map[string]bool{}, nil
	}
	return h.merchantStore.GetFrozenMerchants(ctx, accounts)
}

// AppendEntries, CreateLot, ConsumeLots and GetRule satisfy
// jobs.MutationApplier, letting ApplyMutations drive the same
// transaction-scoped stores the plugin chain just ran against.

func (h *Helpers) AppendEntries(ctx context.Context, tenant string, entries []domain.LedgerEntry) ([]domain.LedgerJournal, [][]domain.LedgerLineRow, error) {
	return h.ledgerStore.AppendEntries(ctx, tenant, entries)
}

func (h *Helpers) CreateLot(ctx context.Context, params domain.CreateLotParams) (uuid.UUID, error) {
	return h.lotStore.CreateLot(ctx, params)
}

func (h *Helpers) ConsumeLots(ctx context.Context, params domain.ConsumeParams, filter domain.LotFilter) ([]domain.LotConsumption, error) {
	return h.lotStore.ConsumeLots(ctx, params, filter)
}

func (h *Helpers) GetRule(ctx context.Context, tenant, burnMerchantID, earnMerchantAccount string) (*domain.MerchantRedemptionRule, error) {
	return h.ruleStore.GetRule(ctx, tenant, burnMerchantID, earnMerchantAccount)
}

// GetOutstandingAttribution implements RedeemHelpers' attribution lookup:
// load the burn merchant's rules (if any), then delegate steps 2-4 to the
// pure internal/attribution package, wiring its fetcher callbacks to the
// lot store's sumEligible/sumByMerchant.
func (h *Helpers) GetOutstandingAttribution(ctx context.Context, customerAccount string, params plugins.OutstandingAttributionParams) ([]domain.Attribution, error) {
	var rules domain.RuleSet
	if params.BurnMerchantID != nil {
		var err error
		rules, err = h.ruleStore.LoadRules(ctx, h.tenant, *params.BurnMerchantID)
		if err != nil {
			return nil, err
		}
	}

	var fetchErr error
	input := attribution.Input{
		Rules:          rules,
		Candidates:     params.PartnerAccounts,
		PartnerMap:     params.PartnerMap,
		ExpiryDays:     params.ExpiryDays,
		BurnMerchantID: params.BurnMerchantID,
		RuleBalances: func(merchantID string, maxAgeDays *int) (*big.Int, error) {
			v, err := h.lotStore.SumEligible(ctx, h.tenant, customerAccount, h.programID, h.unit, merchantID, maxAgeDays)
			if err != nil {
				fetchErr = err
			}
			return v, err
		},
		FallbackBalance: func(maxAgeDays *int) (map[string]*big.Int, error) {
			v, err := h.lotStore.SumByMerchant(ctx, h.tenant, customerAccount, h.programID, h.unit, maxAgeDays)
			if err != nil {
				fetchErr = err
			}
			return v, err
		},
	}

	attrs, err := attribution.ComputeOutstandingAttribution(input)
	if err != nil {
		return nil, err
	}
	return attrs, fetchErr
}
