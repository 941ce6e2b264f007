package jobs

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/plugins"
)

type fakeApplier struct {
	lotsCreated  []domain.CreateLotParams
	consumptions []domain.ConsumeParams
	filters      []domain.LotFilter
	rules        map[string]domain.MerchantRedemptionRule
}

func (f *fakeApplier) AppendEntries(ctx context.Context, tenant string, entries []domain.LedgerEntry) ([]domain.LedgerJournal, [][]domain.LedgerLineRow, error) {
	journals := make([]domain.LedgerJournal, len(entries))
	lineSets := make([][]domain.LedgerLineRow, len(entries))
	for i, e := range entries {
		id := uuid.New()
		journals[i] = domain.LedgerJournal{EntryID: id, Tenant: tenant, ProgramID: e.ProgramID}
		lines := make([]domain.LedgerLineRow, len(e.Lines))
		for j, l := range e.Lines {
			lines[j] = domain.LedgerLineRow{EntryID: id, LineNo: j + 1, AccountID: l.AccountID, Unit: l.Unit, Debit: l.Debit, Credit: l.Credit}
		}
		lineSets[i] = lines
	}
	return journals, lineSets, nil
}

func (f *fakeApplier) CreateLot(ctx context.Context, params domain.CreateLotParams) (uuid.UUID, error) {
	f.lotsCreated = append(f.lotsCreated, params)
	return uuid.New(), nil
}

func (f *fakeApplier) ConsumeLots(ctx context.Context, params domain.ConsumeParams, filter domain.LotFilter) ([]domain.LotConsumption, error) {
	f.consumptions = append(f.consumptions, params)
	f.filters = append(f.filters, filter)
	return nil, nil
}

func (f *fakeApplier) GetRule(ctx context.Context, tenant, burnMerchantID, earnMerchantAccount string) (*domain.MerchantRedemptionRule, error) {
	if r, ok := f.rules[earnMerchantAccount]; ok {
		return &r, nil
	}
	return nil, nil
}

func TestApplyMutations_EarnEntryCreatesLot(t *testing.T) {
	applier := &fakeApplier{}
	mutation := plugins.Mutation{
		Entries: []domain.LedgerEntry{{
			ProgramID: "p1",
			Memo:      "earn:merchX",
			Lines: []domain.LedgerLine{
				domain.DebitLine("points", "t1::merchant_liability", big.NewInt(43)),
				domain.CreditLine("points", "t1::acct::c1", big.NewInt(43)),
			},
		}},
		Summary: map[string]any{"points_earned": int64(43)},
	}
	params := ApplyMutationsParams{Tenant: "t1", ProgramID: "p1", Now: time.Now()}
	summary, err := ApplyMutations(context.Background(), applier, params, []plugins.Mutation{mutation})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary["points_earned"] != int64(43) {
		t.Fatalf("expected merged summary, got %v", summary)
	}
	if len(applier.lotsCreated) != 1 {
		t.Fatalf("expected one lot created, got %d", len(applier.lotsCreated))
	}
	lot := applier.lotsCreated[0]
	if lot.CustomerAccount != "t1::acct::c1" || *lot.MerchantID != "merchX" || lot.Qty.Int64() != 43 {
		t.Fatalf("unexpected lot params: %+v", lot)
	}
	if lot.ExpiresAt != nil {
		t.Fatalf("expected no expiry by default, got %v", lot.ExpiresAt)
	}
}

func TestApplyMutations_EarnEntryExpiryFromDefault(t *testing.T) {
	applier := &fakeApplier{}
	mutation := plugins.Mutation{
		Entries: []domain.LedgerEntry{{
			ProgramID: "p1",
			Memo:      "earn:merchX",
			Lines: []domain.LedgerLine{
				domain.DebitLine("points", "t1::merchant_liability", big.NewInt(10)),
				domain.CreditLine("points", "t1::acct::c1", big.NewInt(10)),
			},
		}},
	}
	days := 30
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	params := ApplyMutationsParams{
		Tenant: "t1", ProgramID: "p1", Now: now,
		EarnExpiry: domain.EarnExpiryConfig{EarnExpiryDaysDefault: &days},
	}
	_, err := ApplyMutations(context.Background(), applier, params, []plugins.Mutation{mutation})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lot := applier.lotsCreated[0]
	if lot.ExpiresAt == nil || !lot.ExpiresAt.Equal(now.AddDate(0, 0, 30)) {
		t.Fatalf("expected expiry 30 days out, got %v", lot.ExpiresAt)
	}
}

func TestApplyMutations_AllocationConsumesScopedToRule(t *testing.T) {
	applier := &fakeApplier{rules: map[string]domain.MerchantRedemptionRule{
		"partnerA": {EarnMerchantID: "merchX", EarnMerchantAccount: "partnerA"},
	}}
	burn := "burn1"
	mutation := plugins.Mutation{
		Entries: []domain.LedgerEntry{{
			ProgramID: "p1",
			Memo:      "redeem",
			Lines: []domain.LedgerLine{
				domain.DebitLine("points", "t1::acct::c1", big.NewInt(30)),
				domain.CreditLine("points", "partnerA", big.NewInt(30)),
			},
		}},
		Summary: map[string]any{
			"allocation": []map[string]any{
				{"merchant_account": "partnerA", "amount": int64(30)},
			},
		},
	}
	params := ApplyMutationsParams{Tenant: "t1", ProgramID: "p1", BurnMerchantID: &burn, Now: time.Now()}
	_, err := ApplyMutations(context.Background(), applier, params, []plugins.Mutation{mutation})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applier.consumptions) != 1 || applier.consumptions[0].Amount.Int64() != 30 {
		t.Fatalf("expected one consumption of 30, got %+v", applier.consumptions)
	}
	if len(applier.filters[0].MerchantIDs) != 1 || applier.filters[0].MerchantIDs[0] != "merchX" {
		t.Fatalf("expected scoped to merchX via rule, got %+v", applier.filters[0])
	}
}

func TestApplyMutations_NoAllocationFallsBackToUntargetedConsumption(t *testing.T) {
	applier := &fakeApplier{}
	mutation := plugins.Mutation{
		Entries: []domain.LedgerEntry{{
			ProgramID: "p1",
			Memo:      "redeem",
			Lines: []domain.LedgerLine{
				domain.DebitLine("points", "t1::acct::c1", big.NewInt(15)),
				domain.CreditLine("points", "t1::merchant_liability", big.NewInt(15)),
			},
		}},
	}
	params := ApplyMutationsParams{Tenant: "t1", ProgramID: "p1", Now: time.Now()}
	_, err := ApplyMutations(context.Background(), applier, params, []plugins.Mutation{mutation})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(applier.consumptions) != 1 || applier.consumptions[0].Amount.Int64() != 15 {
		t.Fatalf("expected untargeted consumption of 15, got %+v", applier.consumptions)
	}
	if len(applier.filters[0].MerchantIDs) != 0 {
		t.Fatalf("expected unscoped filter, got %+v", applier.filters[0])
	}
}
