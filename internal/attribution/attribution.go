// Package attribution holds the pure functions behind cross-brand
// redemption attribution and allocation: the largest-remainder
// distribution algorithm and the candidate/expiry/freeze bookkeeping that
// getOutstandingAttribution performs. None of it touches a database —
// callers inject already-fetched balances so the logic here is
// unit-testable without a store.
package attribution

import (
	"sort"

	"math/big"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// Distribute splits total across weights using the largest-remainder
// method: each share starts at floor(total*w_i/W), and the remainder is
// handed out one unit at a time to the entries with the largest
// (total*w_i) mod W, ties broken by input order. The result always sums
// exactly to total and is deterministic for a given (total, weights)
// input order.
func Distribute(total *big.Int, weights []*big.Int) []*big.Int {
	n := len(weights)
	shares := make([]*big.Int, n)
	remainders := make([]*big.Int, n)

	w := big.NewInt(0)
	for _, wi := range weights {
		w.Add(w, wi)
	}
	if w.Sign() == 0 {
		for i := range shares {
			shares[i] = big.NewInt(0)
		}
		return shares
	}

	sumShares := big.NewInt(0)
	for i, wi := range weights {
		tw := new(big.Int).Mul(total, wi)
		q, r := new(big.Int).QuoRem(tw, w, new(big.Int))
		shares[i] = q
		remainders[i] = r
		sumShares.Add(sumShares, q)
	}

	remaining := new(big.Int).Sub(total, sumShares)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return remainders[idx[a]].Cmp(remainders[idx[b]]) > 0
	})

	one := big.NewInt(1)
	for i := 0; i < n && remaining.Sign() > 0; i++ {
		shares[idx[i]].Add(shares[idx[i]], one)
		remaining.Sub(remaining, one)
	}
	return shares
}

// DropFrozen removes any candidate whose account id is in frozen.
func DropFrozen(candidates []string, frozen map[string]bool) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !frozen[c] {
			out = append(out, c)
		}
	}
	return out
}

// CombineExpiryDays returns the tighter (smaller) of two optional expiry
// bounds; nil means unbounded, so nil combined with anything yields the
// other value, and nil with nil stays nil.
func CombineExpiryDays(global, override *int) *int {
	switch {
	case global == nil:
		return override
	case override == nil:
		return global
	case *global <= *override:
		v := *global
		return &v
	default:
		v := *override
		return &v
	}
}

// RuleBalanceFetcher returns the eligible qty_remaining for one earn
// merchant under an expiry bound (nil = unbounded). Backed by the lot
// store's sumEligible in production, a map lookup in tests.
type RuleBalanceFetcher func(merchantID string, maxAgeDays *int) (*big.Int, error)

// FallbackBalanceFetcher returns qty_remaining grouped by merchant_id
// among non-expired lots, under an expiry bound (nil = unbounded). Used
// only in the no-rules, no-burn-merchant fallback path.
type FallbackBalanceFetcher func(maxAgeDays *int) (map[string]*big.Int, error)

// Input bundles everything ComputeOutstandingAttribution needs. Candidates
// must already have frozen partners removed (step 1 of the
// specification's semantics) — callers call DropFrozen before building
// Input.
type Input struct {
	Rules           domain.RuleSet
	Candidates      []string
	PartnerMap      map[string]string
	ExpiryDays      *int
	BurnMerchantID  *string
	RuleBalances    RuleBalanceFetcher
	FallbackBalance FallbackBalanceFetcher
}

// ComputeOutstandingAttribution implements steps 2-4 of
// getOutstandingAttribution (step 1, dropping frozen partners, is the
// caller's job before building Input).
func ComputeOutstandingAttribution(in Input) ([]domain.Attribution, error) {
	if in.BurnMerchantID == nil {
		return fallbackAttribution(in)
	}
	if in.Rules.IsEmpty() {
		return nil, nil
	}
	return ruleBasedAttribution(in)
}

func ruleBasedAttribution(in Input) ([]domain.Attribution, error) {
	candidateSet := make(map[string]bool, len(in.Candidates))
	for _, c := range in.Candidates {
		candidateSet[c] = true
	}

	var results []domain.Attribution
	for _, candidate := range in.Candidates {
		rule, ok := in.Rules.ByEarnMerchantAccount[candidate]
		if !ok {
			continue
		}
		bound := CombineExpiryDays(in.ExpiryDays, rule.ExpiryDaysOverride)
		amount, err := in.RuleBalances(rule.EarnMerchantID, bound)
		if err != nil {
			return nil, err
		}
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		var bps *int
		if rule.SettlementAdjustmentBPS != nil {
			v := *rule.SettlementAdjustmentBPS
			bps = &v
		}
		results = append(results, domain.Attribution{
			AccountID:               candidate,
			Amount:                  amount,
			SettlementAdjustmentBPS: bps,
		})
	}
	return results, nil
}

func fallbackAttribution(in Input) ([]domain.Attribution, error) {
	byMerchant, err := in.FallbackBalance(in.ExpiryDays)
	if err != nil {
		return nil, err
	}

	byPartner := make(map[string]*big.Int)
	order := make([]string, 0, len(byMerchant))
	for merchantID, qty := range byMerchant {
		partner, ok := in.PartnerMap[merchantID]
		if !ok {
			if len(in.Candidates) == 1 {
				partner = in.Candidates[0]
			} else {
				continue
			}
		}
		if _, seen := byPartner[partner]; !seen {
			byPartner[partner] = big.NewInt(0)
			order = append(order, partner)
		}
		byPartner[partner].Add(byPartner[partner], qty)
	}

	sort.Strings(order)
	results := make([]domain.Attribution, 0, len(order))
	for _, partner := range order {
		results = append(results, domain.Attribution{
			AccountID: partner,
			Amount:    byPartner[partner],
		})
	}
	return results, nil
}
