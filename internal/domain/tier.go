package domain

import "time"

// CustomerTier is the rolling-spend tier state upserted per (tenant,
// merchant, customer).
type CustomerTier struct {
	Tenant            string
	MerchantID        string
	CustomerAccount   string
	TierID            string
	TierName          string
	WindowDays        int
	WindowStart       time.Time
	WindowEnd         time.Time
	RollingSpendCents int64
	UpdatedAt         time.Time
}

// UpsertCustomerTierParams is the input to the tier store's upsert
// operation, surfaced to plugins through the upsertCustomerTier helper.
type UpsertCustomerTierParams struct {
	Tenant            string
	MerchantID        string
	CustomerAccount   string
	TierID            string
	TierName          string
	WindowDays        int
	WindowStart       time.Time
	WindowEnd         time.Time
	RollingSpendCents int64
}
