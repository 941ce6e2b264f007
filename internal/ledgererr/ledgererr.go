// Package ledgererr defines the typed error kinds the job processor and
// ingress handlers branch on via errors.As/errors.Is. None of these are
// used for ordinary control flow inside a single function — they cross a
// boundary (plugin -> runner -> processor -> HTTP) where the caller needs
// to classify the failure.
package ledgererr

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra fields.
var (
	// ErrUnbalancedEntry means an entry's lines do not sum to zero within
	// some unit. A fatal bug, never retried.
	ErrUnbalancedEntry = errors.New("unbalanced entry")
	// ErrEmptyEntry means an entry was built with no lines.
	ErrEmptyEntry = errors.New("empty entry")
	// ErrInsufficientBalance means a redemption cannot be fully covered by
	// outstanding attribution.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientLots means FIFO consumption could not fully cover the
	// requested amount from eligible lots.
	ErrInsufficientLots = errors.New("insufficient lots")
	// ErrUnknownBurnMerchantRule means a burn_merchant_id was supplied with
	// no matching enabled rule.
	ErrUnknownBurnMerchantRule = errors.New("unknown burn merchant rule")
	// ErrFrozenMerchant means attribution emptied the candidate set because
	// every partner was frozen.
	ErrFrozenMerchant = errors.New("frozen merchant")
	// ErrNoRedeemPluginAccepted means every redeem plugin's shouldHandle
	// returned false.
	ErrNoRedeemPluginAccepted = errors.New("no redeem plugin accepted the request")
	// ErrReceiptPayloadMissing means a job references a receipt row that
	// was never inserted or has since vanished. Terminal.
	ErrReceiptPayloadMissing = errors.New("receipt payload missing")
)

// ValidationError means the ingress payload failed schema validation.
// Surfaced to the client as 422.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field %q: %s", e.Field, e.Reason)
}

// IdempotencyConflict means a duplicate (tenant, idempotency_key) or
// (tenant, fingerprint) was submitted. Surfaced to the client as 409,
// carrying the prior job's handle.
type IdempotencyConflict struct {
	ExistingReferenceID string
	ExistingJobID       string
	ExistingStatus      string
}

func (e *IdempotencyConflict) Error() string {
	return fmt.Sprintf("idempotency conflict: existing reference %s (job %s, status %s)",
		e.ExistingReferenceID, e.ExistingJobID, e.ExistingStatus)
}

// TransientStoreError wraps a connection/timeout failure from the store.
// Always retryable with backoff.
type TransientStoreError struct {
	Op  string
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *TransientStoreError) Unwrap() error {
	return e.Err
}

// PluginError wraps any error a plugin's apply raised. Retryable up to
// max_attempts.
type PluginError struct {
	Plugin string
	Err    error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Plugin, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// RedeemFailure is a non-exception redeem outcome: a redeem plugin can
// decline with a reason and an explicit retryable flag instead of
// returning a Go error, per the tagged success|failure(reason, retryable)
// contract.
type RedeemFailure struct {
	Reason    string
	Retryable bool
}

func (e *RedeemFailure) Error() string {
	return e.Reason
}

// Retryable reports whether err should reschedule the job with backoff
// (true) or finalize it as failed (false). Unrecognized errors default to
// retryable, matching TransientStoreError's and PluginError's posture.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnbalancedEntry), errors.Is(err, ErrEmptyEntry):
		return false
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrInsufficientLots):
		return false
	case errors.Is(err, ErrUnknownBurnMerchantRule), errors.Is(err, ErrFrozenMerchant):
		return false
	case errors.Is(err, ErrReceiptPayloadMissing):
		return false
	case errors.Is(err, ErrNoRedeemPluginAccepted):
		return true
	}
	var rf *RedeemFailure
	if errors.As(err, &rf) {
		return rf.Retryable
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var ic *IdempotencyConflict
	if errors.As(err, &ic) {
		return false
	}
	// TransientStoreError and PluginError, and anything unclassified, are
	// retryable by default.
	return true
}
