// Package plugins implements the fixed, statically composed chain of
// receipt and redeem rules, and the runner that composes their outputs
// into a batched mutation list. Plugins are pure with respect to the
// database only through the Helpers they are given; they must be
// deterministic given an identical helpers snapshot.
package plugins

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
)

// Mutation is a plugin's declarative output: zero or more ledger entries
// plus an optional free-form summary.
type Mutation struct {
	Entries []domain.LedgerEntry
	Summary map[string]any
}

// RedeemResult is the tagged success|failure(reason, retryable) variant a
// redeem plugin returns. Exactly one of Mutation or Failure is set.
type RedeemResult struct {
	Mutation *Mutation
	Failure  *ledgererr.RedeemFailure
}

// Success wraps a mutation as a successful RedeemResult.
func Success(m Mutation) RedeemResult {
	return RedeemResult{Mutation: &m}
}

// Failure builds a failed, non-exception RedeemResult.
func Failure(reason string, retryable bool) RedeemResult {
	return RedeemResult{Failure: &ledgererr.RedeemFailure{Reason: reason, Retryable: retryable}}
}

// ReceiptContext is the per-receipt context a receipt plugin evaluates
// against.
type ReceiptContext struct {
	Tenant              string
	ProgramID           string
	MerchantID          string
	CustomerAccountRef  string
	CustomerAccount     string
	GrandTotalCents     int64
	LineItems           []domain.ReceiptLineItem
	IssuedAt            time.Time
}

// RedeemContext is the per-request context a redeem plugin evaluates
// against.
type RedeemContext struct {
	Tenant          string
	ProgramID       string
	Unit            string
	CustomerAccount string
	Qty             *big.Int
	Memo            *string
	BurnMerchantID  *string
	PartnerHint     *string
}

// ReceiptHelpers is the contract surfaced to receipt plugins.
type ReceiptHelpers interface {
	Now() time.Time
	GenerateID() uuid.UUID
	GetProgramConfig(ctx context.Context, tenant, programID string) ([]byte, error)
	GetAccountBalance(ctx context.Context, accountID, programID, unit string) (*big.Int, error)
	GetRollingSpendCents(ctx context.Context, tenant, merchantID, customerAccountRef string, windowStart, windowEnd time.Time) (int64, error)
	UpsertCustomerTier(ctx context.Context, params domain.UpsertCustomerTierParams) error
	GetCustomerTier(ctx context.Context, tenant, merchantID, customerAccount string) (*domain.CustomerTier, error)
}

// OutstandingAttributionParams mirrors getOutstandingAttribution's input.
type OutstandingAttributionParams struct {
	PartnerAccounts []string
	PartnerMap      map[string]string
	ExpiryDays      *int
	BurnMerchantID  *string
}

// RedeemHelpers extends ReceiptHelpers with the attribution/freeze lookups
// redeem plugins need.
type RedeemHelpers interface {
	ReceiptHelpers
	GetOutstandingAttribution(ctx context.Context, customerAccount string, params OutstandingAttributionParams) ([]domain.Attribution, error)
	GetFrozenMerchants(ctx context.Context, accounts []string) (map[string]bool, error)
}

// ReceiptPlugin implements shouldHandle/apply for one receipt rule.
type ReceiptPlugin interface {
	Name() string
	ShouldHandle(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (bool, error)
	Apply(ctx context.Context, rctx ReceiptContext, helpers ReceiptHelpers) (*Mutation, error)
}

// RedeemPlugin implements shouldHandle/apply for one redeem rule.
type RedeemPlugin interface {
	Name() string
	ShouldHandle(ctx context.Context, rctx RedeemContext, helpers RedeemHelpers) (bool, error)
	Apply(ctx context.Context, rctx RedeemContext, helpers RedeemHelpers) (RedeemResult, error)
}
