package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// LedgerLine is one leg of a journal entry. Exactly one of Debit/Credit is
// non-zero; the other is zero. Amounts are arbitrary-precision integers in
// minor units, never floats.
type LedgerLine struct {
	LineNo int
	Unit   string
	// AccountID is the lexical account id this line posts against.
	AccountID string
	Debit     *big.Int
	Credit    *big.Int
}

// DebitLine constructs a debit leg.
func DebitLine(unit, accountID string, amount *big.Int) LedgerLine {
	return LedgerLine{Unit: unit, AccountID: accountID, Debit: new(big.Int).Set(amount), Credit: big.NewInt(0)}
}

// CreditLine constructs a credit leg.
func CreditLine(unit, accountID string, amount *big.Int) LedgerLine {
	return LedgerLine{Unit: unit, AccountID: accountID, Debit: big.NewInt(0), Credit: new(big.Int).Set(amount)}
}

// LedgerEntry is one balanced journal entry prior to being written. It has
// no entry_id yet; appendEntries assigns one.
type LedgerEntry struct {
	ProgramID string
	ReceiptID *uuid.UUID
	Memo      string
	Lines     []LedgerLine
}

// LedgerJournal is the persisted append-only header row for a written
// entry.
type LedgerJournal struct {
	EntryID   uuid.UUID
	Tenant    string
	ProgramID string
	ReceiptID *uuid.UUID
	Memo      *string
	CreatedAt time.Time
}

// LedgerLineRow is the persisted form of LedgerLine, joined back to its
// journal header for balance queries.
type LedgerLineRow struct {
	EntryID   uuid.UUID
	LineNo    int
	AccountID string
	Unit      string
	Debit     *big.Int
	Credit    *big.Int
}

// AccountBalance is one (program_id, unit) grouping of an account balance
// query, the shape GET /v1/accounts/{account_id}/balances returns.
type AccountBalance struct {
	ProgramID string
	Unit      string
	Qty       *big.Int
}
