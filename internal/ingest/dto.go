package ingest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// ReceiptRequest is the wire shape POST /v1/receipts accepts.
type ReceiptRequest struct {
	IdempotencyKey  *string         `json:"idempotency_key,omitempty"`
	MerchantID      string          `json:"merchant_id"`
	StoreID         *string         `json:"store_id,omitempty"`
	AccountRef      string          `json:"account_ref"`
	ProgramID       string          `json:"program_id"`
	GrandTotalCents int64           `json:"grand_total_cents"`
	ProcessorTxnID  *string         `json:"processor_txn_id,omitempty"`
	IssuedAt        time.Time       `json:"issued_at"`
	Payload         json.RawMessage `json:"payload"`
}

// Validate reports the first schema violation found, surfaced by handlers
// as a 422.
func (r ReceiptRequest) Validate() string {
	switch {
	case r.MerchantID == "":
		return "merchant_id is required"
	case r.AccountRef == "":
		return "account_ref is required"
	case r.ProgramID == "":
		return "program_id is required"
	case r.GrandTotalCents < 0:
		return "grand_total_cents must be >= 0"
	case r.IssuedAt.IsZero():
		return "issued_at is required"
	default:
		return ""
	}
}

// ToDomain builds the immutable receipt row, computing its fingerprint.
func (r ReceiptRequest) ToDomain(tenant string) domain.Receipt {
	receiptID := uuid.New()
	fingerprint := ReceiptFingerprint(tenant, r.IdempotencyKey, r.MerchantID, r.StoreID, r.AccountRef,
		r.GrandTotalCents, r.ProcessorTxnID, r.IssuedAt)
	return domain.Receipt{
		ReceiptID:       receiptID,
		Tenant:          tenant,
		IdempotencyKey:  r.IdempotencyKey,
		Fingerprint:     fingerprint,
		MerchantID:      r.MerchantID,
		StoreID:         r.StoreID,
		AccountRef:      r.AccountRef,
		ProgramID:       r.ProgramID,
		GrandTotalCents: r.GrandTotalCents,
		ProcessorTxnID:  r.ProcessorTxnID,
		IssuedAt:        r.IssuedAt,
		Payload:         r.Payload,
	}
}

// RedeemRequestBody is the wire shape POST /v1/redeem accepts.
type RedeemRequestBody struct {
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
	AccountID      string  `json:"account_id"`
	ProgramID      string  `json:"program_id"`
	Unit           string  `json:"unit"`
	Qty            string  `json:"qty"`
	Memo           *string `json:"memo,omitempty"`
	BurnMerchantID *string `json:"burn_merchant_id,omitempty"`
	PartnerHint    *string `json:"partner_hint,omitempty"`
}

// JobHandleResponse is the common shape receipts/redeem submission and
// status endpoints return, distinguished by which id field is populated.
type JobHandleResponse struct {
	ReceiptID       *uuid.UUID      `json:"receipt_id,omitempty"`
	RedemptionID    *uuid.UUID      `json:"redemption_id,omitempty"`
	ProcessingJobID uuid.UUID       `json:"processing_job_id"`
	Status          domain.JobStatus `json:"status"`
	Attempts        int             `json:"attempts,omitempty"`
	LastError       *string         `json:"last_error,omitempty"`
	Summary         json.RawMessage `json:"summary,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	AvailableAt     *time.Time      `json:"available_at,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
}

// BalanceEntry is one row of GET /v1/accounts/{account_id}/balances.
type BalanceEntry struct {
	ProgramID string `json:"program_id"`
	Unit      string `json:"unit"`
	Qty       string `json:"qty"`
}

// ProgramConfigResponse is GET /v1/programs/{program_id}/config's body.
type ProgramConfigResponse struct {
	ProgramID string          `json:"program_id"`
	Config    json.RawMessage `json:"config"`
}

// FreezeRequestBody is PUT /internal/v1/merchants/{merchant_account}/freeze's body.
type FreezeRequestBody struct {
	Frozen bool    `json:"frozen"`
	Reason *string `json:"reason,omitempty"`
}

// SettlementReportResponse is one row of GET /internal/v1/settlements.
type SettlementReportResponse struct {
	Tenant          string         `json:"tenant"`
	MerchantAccount string         `json:"merchant_account"`
	PeriodStart     time.Time      `json:"period_start"`
	PeriodEnd       time.Time      `json:"period_end"`
	NetPoints       int64          `json:"net_points"`
	Summary         map[string]any `json:"summary,omitempty"`
}
