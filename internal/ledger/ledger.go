// Package ledger holds the pure, DB-free ledger primitive: entry
// validation. appendEntries and balance are store operations (they need a
// transaction and a schema) and live in internal/store; this package is
// what they call before writing anything.
package ledger

import (
	"math/big"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
)

// ValidateEntry fails with ErrEmptyEntry if entry has no lines, or with
// ErrUnbalancedEntry if any unit's debits and credits do not sum equal.
func ValidateEntry(entry domain.LedgerEntry) error {
	if len(entry.Lines) == 0 {
		return ledgererr.ErrEmptyEntry
	}
	totals := make(map[string]*big.Int)
	for _, line := range entry.Lines {
		t, ok := totals[line.Unit]
		if !ok {
			t = big.NewInt(0)
			totals[line.Unit] = t
		}
		if line.Debit != nil {
			t.Add(t, line.Debit)
		}
		if line.Credit != nil {
			t.Sub(t, line.Credit)
		}
	}
	for _, net := range totals {
		if net.Sign() != 0 {
			return ledgererr.ErrUnbalancedEntry
		}
	}
	return nil
}

// ValidateEntries validates a batch in order, stopping at the first
// failure so the caller can abort before writing anything.
func ValidateEntries(entries []domain.LedgerEntry) error {
	for _, e := range entries {
		if err := ValidateEntry(e); err != nil {
			return err
		}
	}
	return nil
}
