package ledger

import (
	"errors"
	"math/big"
	"testing"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
)

func TestValidateEntry_EmptyEntryRejected(t *testing.T) {
	err := ValidateEntry(domain.LedgerEntry{ProgramID: "p1"})
	if !errors.Is(err, ledgererr.ErrEmptyEntry) {
		t.Fatalf("expected ErrEmptyEntry, got %v", err)
	}
}

func TestValidateEntry_BalancedSingleUnitAccepted(t *testing.T) {
	entry := domain.LedgerEntry{
		ProgramID: "p1",
		Lines: []domain.LedgerLine{
			domain.DebitLine("points", "t1::merchant_liability", big.NewInt(100)),
			domain.CreditLine("points", "t1::acct::cust1", big.NewInt(100)),
		},
	}
	if err := ValidateEntry(entry); err != nil {
		t.Fatalf("expected balanced entry to validate, got %v", err)
	}
}

func TestValidateEntry_UnbalancedRejected(t *testing.T) {
	entry := domain.LedgerEntry{
		ProgramID: "p1",
		Lines: []domain.LedgerLine{
			domain.DebitLine("points", "t1::merchant_liability", big.NewInt(100)),
			domain.CreditLine("points", "t1::acct::cust1", big.NewInt(99)),
		},
	}
	err := ValidateEntry(entry)
	if !errors.Is(err, ledgererr.ErrUnbalancedEntry) {
		t.Fatalf("expected ErrUnbalancedEntry, got %v", err)
	}
}

func TestValidateEntry_BalancePerUnitIndependently(t *testing.T) {
	entry := domain.LedgerEntry{
		ProgramID: "p1",
		Lines: []domain.LedgerLine{
			domain.DebitLine("points", "t1::merchant_liability", big.NewInt(100)),
			domain.CreditLine("points", "t1::acct::cust1", big.NewInt(100)),
			domain.DebitLine("stamps:loyalty", "t1::merchant_liability", big.NewInt(3)),
			domain.CreditLine("stamps:loyalty", "t1::acct::cust1", big.NewInt(3)),
		},
	}
	if err := ValidateEntry(entry); err != nil {
		t.Fatalf("expected multi-unit balanced entry to validate, got %v", err)
	}
}

func TestValidateEntries_StopsAtFirstFailure(t *testing.T) {
	good := domain.LedgerEntry{Lines: []domain.LedgerLine{
		domain.DebitLine("points", "a", big.NewInt(1)),
		domain.CreditLine("points", "b", big.NewInt(1)),
	}}
	bad := domain.LedgerEntry{}
	err := ValidateEntries([]domain.LedgerEntry{good, bad})
	if !errors.Is(err, ledgererr.ErrEmptyEntry) {
		t.Fatalf("expected ErrEmptyEntry from second entry, got %v", err)
	}
}
