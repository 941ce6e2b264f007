package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/money"
)

// DefaultEarn is the base earn rule: every receipt earns floor/round
// points on its grand total, scaled by an optional points_multiplier.
type DefaultEarn struct{}

type defaultEarnConfig struct {
	PointsMultiplier *float64 `json:"points_multiplier"`
}

func (DefaultEarn) Name() string { return "DefaultEarn" }

// ShouldHandle always returns true: the base earn rule runs on every
// receipt regardless of program config.
func (DefaultEarn) ShouldHandle(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (bool, error) {
	return true, nil
}

func (DefaultEarn) Apply(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (*Mutation, error) {
	multiplier := big.NewRat(1, 1)
	raw, err := helpers.GetProgramConfig(ctx, rctx.Tenant, rctx.ProgramID)
	if err == nil && len(raw) > 0 {
		var cfg defaultEarnConfig
		if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil && cfg.PointsMultiplier != nil {
			if r := new(big.Rat).SetFloat64(*cfg.PointsMultiplier); r != nil {
				multiplier = r
			}
		}
	}

	num := new(big.Int).Mul(big.NewInt(rctx.GrandTotalCents), multiplier.Num())
	den := new(big.Int).Mul(big.NewInt(100), multiplier.Denom())
	points := money.HalfAwayFromZeroRound(num, den)

	if !money.IsPositive(points) {
		return &Mutation{Summary: map[string]any{"points_earned": 0}}, nil
	}

	merchantAccount := domain.MerchantLiabilityAccount(rctx.Tenant)
	entry := domain.LedgerEntry{
		ProgramID: rctx.ProgramID,
		Memo:      fmt.Sprintf("earn:%s", rctx.MerchantID),
		Lines: []domain.LedgerLine{
			domain.DebitLine("points", merchantAccount, points),
			domain.CreditLine("points", rctx.CustomerAccount, points),
		},
	}
	return &Mutation{
		Entries: []domain.LedgerEntry{entry},
		Summary: map[string]any{"points_earned": points.Int64()},
	}, nil
}
