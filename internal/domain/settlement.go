package domain

import "time"

// SettlementReport is a periodic aggregate of net merchant liability
// points, consumed by external payout workers.
type SettlementReport struct {
	Tenant          string
	MerchantAccount string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	NetPoints       int64
	Summary         map[string]any
}
