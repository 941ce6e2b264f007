package attribution

import (
	"math/big"
	"testing"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

func bigs(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestDistribute_EqualWeightsEvenSplit(t *testing.T) {
	shares := Distribute(big.NewInt(20), bigs(100, 100))
	if shares[0].Cmp(big.NewInt(10)) != 0 || shares[1].Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 10/10, got %v/%v", shares[0], shares[1])
	}
}

func TestDistribute_OddTotalBreaksTiesByInputOrder(t *testing.T) {
	shares := Distribute(big.NewInt(21), bigs(100, 100))
	if shares[0].Cmp(big.NewInt(11)) != 0 || shares[1].Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected 11/10 (first index wins tie), got %v/%v", shares[0], shares[1])
	}
}

func TestDistribute_SumsExactlyToTotal(t *testing.T) {
	total := big.NewInt(1000)
	weights := bigs(7, 13, 29, 1, 50)
	shares := Distribute(total, weights)
	sum := big.NewInt(0)
	for _, s := range shares {
		sum.Add(sum, s)
	}
	if sum.Cmp(total) != 0 {
		t.Fatalf("expected shares to sum to %v, got %v", total, sum)
	}
}

func TestDistribute_ZeroWeightSumReturnsZeroes(t *testing.T) {
	shares := Distribute(big.NewInt(10), bigs(0, 0))
	for _, s := range shares {
		if s.Sign() != 0 {
			t.Fatalf("expected zero shares, got %v", shares)
		}
	}
}

func TestCombineExpiryDays(t *testing.T) {
	thirty, ninety := 30, 90
	if got := CombineExpiryDays(nil, nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := CombineExpiryDays(&thirty, nil); got == nil || *got != 30 {
		t.Fatalf("expected 30, got %v", got)
	}
	if got := CombineExpiryDays(nil, &ninety); got == nil || *got != 90 {
		t.Fatalf("expected 90, got %v", got)
	}
	if got := CombineExpiryDays(&thirty, &ninety); got == nil || *got != 30 {
		t.Fatalf("expected tighter bound 30, got %v", got)
	}
}

func TestDropFrozen(t *testing.T) {
	got := DropFrozen([]string{"a", "b", "c"}, map[string]bool{"b": true})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c], got %v", got)
	}
}

func TestComputeOutstandingAttribution_NoBurnMerchantFallsBack(t *testing.T) {
	in := Input{
		Candidates: []string{"partnerA"},
		PartnerMap: map[string]string{},
		FallbackBalance: func(maxAgeDays *int) (map[string]*big.Int, error) {
			return map[string]*big.Int{"merchantX": big.NewInt(50)}, nil
		},
	}
	got, err := ComputeOutstandingAttribution(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].AccountID != "partnerA" || got[0].Amount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected sole-candidate fallback mapping, got %+v", got)
	}
}

func TestComputeOutstandingAttribution_BurnMerchantWithoutRuleReturnsEmpty(t *testing.T) {
	burn := "burn1"
	in := Input{
		BurnMerchantID: &burn,
		Rules:          domain.NewRuleSet(nil),
		Candidates:     []string{"partnerA"},
	}
	got, err := ComputeOutstandingAttribution(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty attribution, got %+v", got)
	}
}

func TestComputeOutstandingAttribution_RuleBased(t *testing.T) {
	burn := "burn1"
	bps := 50
	rules := domain.NewRuleSet([]domain.MerchantRedemptionRule{
		{
			Tenant:                  "t1",
			EarnMerchantID:          "merchantX",
			BurnMerchantID:          burn,
			EarnMerchantAccount:     "partnerA",
			SettlementAdjustmentBPS: &bps,
		},
	})
	in := Input{
		BurnMerchantID: &burn,
		Rules:          rules,
		Candidates:     []string{"partnerA"},
		RuleBalances: func(merchantID string, maxAgeDays *int) (*big.Int, error) {
			if merchantID == "merchantX" {
				return big.NewInt(75), nil
			}
			return big.NewInt(0), nil
		},
	}
	got, err := ComputeOutstandingAttribution(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].AccountID != "partnerA" || got[0].Amount.Cmp(big.NewInt(75)) != 0 {
		t.Fatalf("expected partnerA:75, got %+v", got)
	}
	if got[0].SettlementAdjustmentBPS == nil || *got[0].SettlementAdjustmentBPS != 50 {
		t.Fatalf("expected settlement adjustment bps 50, got %v", got[0].SettlementAdjustmentBPS)
	}
}
