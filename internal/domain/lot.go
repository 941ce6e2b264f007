package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// PointLot is one earn event's inventory of points. qty_remaining only
// decreases and the row is never deleted.
type PointLot struct {
	LotID           uuid.UUID
	Tenant          string
	ProgramID       string
	Unit            string
	CustomerAccount string
	MerchantID      *string
	EarnEntryID     uuid.UUID
	QtyTotal        *big.Int
	QtyRemaining    *big.Int
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

// LotFilter scopes FIFO consumption and eligibility queries.
type LotFilter struct {
	MerchantIDs []string
	// MaxAgeDays bounds lot creation time: only lots created within the
	// last MaxAgeDays days are eligible. Nil means unbounded.
	MaxAgeDays *int
}

// CreateLotParams is the input to the lot store's createLot operation.
type CreateLotParams struct {
	Tenant          string
	ProgramID       string
	Unit            string
	CustomerAccount string
	MerchantID      *string
	EarnEntryID     uuid.UUID
	Qty             *big.Int
	ExpiresAt       *time.Time
}

// ConsumeParams is the input to the lot store's consume operation.
type ConsumeParams struct {
	Tenant          string
	CustomerAccount string
	ProgramID       string
	Unit            string
	Amount          *big.Int
}

// LotConsumption records how much of a single lot was decremented during
// one consume() call; ConsumeLots returns one per lot drawn, in FIFO
// order.
type LotConsumption struct {
	LotID      uuid.UUID
	MerchantID *string
	Amount     *big.Int
}
