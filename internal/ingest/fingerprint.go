// Package ingest holds the request/response shapes and content-addressing
// logic for the HTTP ingress surface, kept separate from internal/api so
// handlers stay thin.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ReceiptFingerprint computes the stable content hash a receipt submission
// is deduplicated on when no idempotency key distinguishes it: tenant,
// idempotency key (if any), merchant/store/account identity, the total
// formatted to 2 decimals, the processor transaction id (if any), and the
// issue timestamp normalized to UTC RFC3339.
func ReceiptFingerprint(tenant string, idempotencyKey *string, merchantID string, storeID *string, accountRef string, grandTotalCents int64, processorTxnID *string, issuedAt time.Time) string {
	key := deref(idempotencyKey)
	store := deref(storeID)
	txn := deref(processorTxnID)

	raw := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		tenant, key, merchantID, store, accountRef,
		formatCents(grandTotalCents), txn, issuedAt.UTC().Format(time.RFC3339))

	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
