package domain

import "encoding/json"

// ProgramConfig is the tenant+program JSON configuration blob. The store
// layer treats it as opaque; plugins parse the fields they care about.
type ProgramConfig struct {
	Tenant    string
	ProgramID string
	Config    json.RawMessage
	UpdatedAt int64
}

// StampProgram is one entry of program_config.stamp_programs, read by
// NthFreeStamps.
type StampProgram struct {
	ID               string   `json:"id"`
	SKUs             []string `json:"skus"`
	StampsPerItem    *float64 `json:"stamps_per_item,omitempty"`
	Threshold        *float64 `json:"threshold,omitempty"`
	Unit             *string  `json:"unit,omitempty"`
	CouponUnit       *string  `json:"coupon_unit,omitempty"`
	TierOverrides    map[string]StampTierOverride `json:"tier_overrides,omitempty"`
}

// StampTierOverride overrides stamps_per_item/threshold for customers at a
// given loyalty tier.
type StampTierOverride struct {
	StampsPerItem *float64 `json:"stamps_per_item,omitempty"`
	Threshold     *float64 `json:"threshold,omitempty"`
}

// LoyaltyTierConfig is program_config.loyalty_tiers, read by
// RollingSpendTier.
type LoyaltyTierConfig struct {
	WindowDays int              `json:"window_days"`
	Tiers      []LoyaltyTierDef `json:"tiers"`
}

// LoyaltyTierDef is one tier threshold within LoyaltyTierConfig.
type LoyaltyTierDef struct {
	ID             string  `json:"id"`
	DisplayName    *string `json:"display_name,omitempty"`
	ThresholdCents int64   `json:"threshold_cents"`
}

// CrossBrandAllocation is program_config.cross_brand_allocation, read by
// DefaultRedeem.
type CrossBrandAllocation struct {
	Strategy      string                  `json:"strategy"`
	Partners      []AllocationPartner     `json:"partners"`
	PartnerMap    map[string]string       `json:"partner_map,omitempty"`
	ExpiryDays    *int                    `json:"expiry_days,omitempty"`
}

// AllocationPartner is one candidate partner merchant within a
// cross_brand_allocation config.
type AllocationPartner struct {
	MerchantAccount string   `json:"merchant_account"`
	Weight          *float64 `json:"weight,omitempty"`
	ExpiryDays      *int     `json:"expiry_days,omitempty"`
}

// EarnExpiryConfig is program_config's earn_expiry_overrides /
// earn_expiry_days_default, consulted when the job processor derives lot
// expiry.
type EarnExpiryConfig struct {
	EarnExpiryOverrides map[string]int `json:"earn_expiry_overrides,omitempty"`
	EarnExpiryDaysDefault *int         `json:"earn_expiry_days_default,omitempty"`
}
