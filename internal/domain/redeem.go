package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// RedeemRequest is an immutable record of a redemption submission.
type RedeemRequest struct {
	RequestID      uuid.UUID
	Tenant         string
	IdempotencyKey *string
	AccountID      string
	ProgramID      string
	Unit           string
	Qty            *big.Int
	Memo           *string
	BurnMerchantID *string
	PartnerHint    *string
	CreatedAt      time.Time
}

// AllocationItem is one partner's share of a redemption, part of a
// RedeemResult's summary.
type AllocationItem struct {
	MerchantAccount          string
	Amount                   *big.Int
	SettlementAdjustmentBPS  *int
}

// Attribution is one candidate partner's outstanding, eligible balance for
// a redemption, as returned by getOutstandingAttribution.
type Attribution struct {
	AccountID               string
	Amount                  *big.Int
	SettlementAdjustmentBPS *int
}
