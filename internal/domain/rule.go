package domain

// MerchantRedemptionRule governs whether a burn at one merchant may consume
// lots earned at another, and with what settlement economics.
type MerchantRedemptionRule struct {
	Tenant                  string
	EarnMerchantID          string
	BurnMerchantID          string
	EarnMerchantAccount     string
	ExpiryDaysOverride      *int
	SettlementAdjustmentBPS *int
	Enabled                 bool
}

// RuleSet is the result of loadRules: enabled rules for one burn merchant,
// indexed two ways for the lookups attribution needs.
type RuleSet struct {
	ByEarnMerchantAccount map[string]MerchantRedemptionRule
	ByEarnMerchantID      map[string]MerchantRedemptionRule
}

// NewRuleSet indexes a flat list of rules by both earn_merchant_account and
// earn_merchant_id, as loadRules requires.
func NewRuleSet(rules []MerchantRedemptionRule) RuleSet {
	rs := RuleSet{
		ByEarnMerchantAccount: make(map[string]MerchantRedemptionRule, len(rules)),
		ByEarnMerchantID:      make(map[string]MerchantRedemptionRule, len(rules)),
	}
	for _, r := range rules {
		rs.ByEarnMerchantAccount[r.EarnMerchantAccount] = r
		rs.ByEarnMerchantID[r.EarnMerchantID] = r
	}
	return rs
}

// IsEmpty reports whether loadRules found no enabled rules for the burn
// merchant. getOutstandingAttribution returns no attribution in that case;
// its fallback path runs only when no burn merchant is given.
func (rs RuleSet) IsEmpty() bool {
	return len(rs.ByEarnMerchantAccount) == 0
}
