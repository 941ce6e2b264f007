package plugins

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

type fakeHelpers struct {
	now               time.Time
	programConfig     []byte
	accountBalances   map[string]*big.Int
	rollingSpendCents int64
	tiers             map[string]*domain.CustomerTier
	upsertedTiers     []domain.UpsertCustomerTierParams

	attribution  []domain.Attribution
	frozen       map[string]bool
}

func newFakeHelpers() *fakeHelpers {
	return &fakeHelpers{
		now:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		accountBalances: map[string]*big.Int{},
		tiers:           map[string]*domain.CustomerTier{},
		frozen:          map[string]bool{},
	}
}

func (f *fakeHelpers) Now() time.Time       { return f.now }
func (f *fakeHelpers) GenerateID() uuid.UUID { return uuid.New() }

func (f *fakeHelpers) GetProgramConfig(ctx context.Context, tenant, programID string) ([]byte, error) {
	return f.programConfig, nil
}

func (f *fakeHelpers) GetAccountBalance(ctx context.Context, accountID, programID, unit string) (*big.Int, error) {
	key := accountID + "|" + programID + "|" + unit
	if b, ok := f.accountBalances[key]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *fakeHelpers) setAccountBalance(accountID, programID, unit string, amount int64) {
	f.accountBalances[accountID+"|"+programID+"|"+unit] = big.NewInt(amount)
}

func (f *fakeHelpers) GetRollingSpendCents(ctx context.Context, tenant, merchantID, customerAccountRef string, windowStart, windowEnd time.Time) (int64, error) {
	return f.rollingSpendCents, nil
}

func (f *fakeHelpers) UpsertCustomerTier(ctx context.Context, params domain.UpsertCustomerTierParams) error {
	f.upsertedTiers = append(f.upsertedTiers, params)
	return nil
}

func (f *fakeHelpers) GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*domain.CustomerTier, error) {
	return f.tiers[merchantID+"|"+customerAccount], nil
}

func (f *fakeHelpers) GetOutstandingAttribution(ctx context.Context, customerAccount string, params OutstandingAttributionParams) ([]domain.Attribution, error) {
	return f.attribution, nil
}

func (f *fakeHelpers) GetFrozenMerchants(ctx context.Context, accounts []string) (map[string]bool, error) {
	return f.frozen, nil
}
