package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Receipt is an immutable record of a purchase, submitted once and never
// mutated afterward.
type Receipt struct {
	ReceiptID       uuid.UUID
	Tenant          string
	IdempotencyKey  *string
	Fingerprint     string
	MerchantID      string
	StoreID         *string
	AccountRef      string
	ProgramID       string
	GrandTotalCents int64
	ProcessorTxnID  *string
	IssuedAt        time.Time
	Payload         json.RawMessage
	CreatedAt       time.Time
}

// ReceiptLineItem is one SKU/qty pair out of a receipt's payload, the shape
// NthFreeStamps scans for matching SKUs.
type ReceiptLineItem struct {
	SKU string  `json:"sku"`
	Qty float64 `json:"qty"`
}
