package store

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ledger"
)

// LedgerStore implements the ledger primitives (§4.1) that need a
// transaction: appendEntries and balance. validateEntry itself is the
// pure internal/ledger package, called here before any insert.
type LedgerStore struct {
	q Querier
}

func NewLedgerStore(q Querier) *LedgerStore {
	return &LedgerStore{q: q}
}

// AppendEntries validates and writes a batch of entries inside the
// caller's already-open transaction, returning the written journal
// headers and their lines joined back, in input order — the shape
// internal/jobs needs for lot creation/consumption without a second
// round trip.
func (s *LedgerStore) AppendEntries(ctx context.Context, tenant string, entries []domain.LedgerEntry) ([]domain.LedgerJournal, [][]domain.LedgerLineRow, error) {
	if err := ledger.ValidateEntries(entries); err != nil {
		return nil, nil, err
	}

	journals := make([]domain.LedgerJournal, len(entries))
	lineSets := make([][]domain.LedgerLineRow, len(entries))

	for i, entry := range entries {
		entryID := uuid.New()
		var memo *string
		if entry.Memo != "" {
			m := entry.Memo
			memo = &m
		}
		_, err := s.q.Exec(ctx,
			`INSERT INTO ledger_journal (entry_id, tenant, program_id, receipt_id, memo) VALUES ($1, $2, $3, $4, $5)`,
			entryID, tenant, entry.ProgramID, entry.ReceiptID, memo)
		if err != nil {
			return nil, nil, fmt.Errorf("insert ledger_journal: %w", err)
		}

		lines := make([]domain.LedgerLineRow, len(entry.Lines))
		for j, line := range entry.Lines {
			lineNo := j + 1
			_, err := s.q.Exec(ctx,
				`INSERT INTO ledger_lines (entry_id, line_no, account_id, unit, debit, credit) VALUES ($1, $2, $3, $4, $5, $6)`,
				entryID, lineNo, line.AccountID, line.Unit, line.Debit.String(), line.Credit.String())
			if err != nil {
				return nil, nil, fmt.Errorf("insert ledger_lines: %w", err)
			}
			lines[j] = domain.LedgerLineRow{
				EntryID:   entryID,
				LineNo:    lineNo,
				AccountID: line.AccountID,
				Unit:      line.Unit,
				Debit:     new(big.Int).Set(line.Debit),
				Credit:    new(big.Int).Set(line.Credit),
			}
		}

		journals[i] = domain.LedgerJournal{EntryID: entryID, Tenant: tenant, ProgramID: entry.ProgramID, ReceiptID: entry.ReceiptID, Memo: memo}
		lineSets[i] = lines
	}
	return journals, lineSets, nil
}

// Balance returns Σcredits − Σdebits over all lines matching the given
// scope, joined to their journals by tenant/program.
func (s *LedgerStore) Balance(ctx context.Context, tenant, accountID string, programID, unit *string) (*big.Int, error) {
	sql := `
		SELECT COALESCE(SUM(l.credit), 0) - COALESCE(SUM(l.debit), 0)
		FROM ledger_lines l
		JOIN ledger_journal j ON j.entry_id = l.entry_id
		WHERE j.tenant = $1 AND l.account_id = $2`
	args := []any{tenant, accountID}
	if programID != nil {
		sql += fmt.Sprintf(" AND j.program_id = $%d", len(args)+1)
		args = append(args, *programID)
	}
	if unit != nil {
		sql += fmt.Sprintf(" AND l.unit = $%d", len(args)+1)
		args = append(args, *unit)
	}

	var raw string
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("query balance: %w", err)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("parse balance %q", raw)
	}
	return v, nil
}

// BalancesByUnit implements GET /v1/accounts/{account_id}/balances: every
// (program_id, unit) the account has lines in, grouped the way §4.1's
// balance() does per group.
func (s *LedgerStore) BalancesByUnit(ctx context.Context, tenant, accountID string, programID *string) ([]domain.AccountBalance, error) {
	sql := `
		SELECT j.program_id, l.unit, COALESCE(SUM(l.credit), 0) - COALESCE(SUM(l.debit), 0)
		FROM ledger_lines l
		JOIN ledger_journal j ON j.entry_id = l.entry_id
		WHERE j.tenant = $1 AND l.account_id = $2`
	args := []any{tenant, accountID}
	if programID != nil {
		sql += " AND j.program_id = $3"
		args = append(args, *programID)
	}
	sql += " GROUP BY j.program_id, l.unit"

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query balances by unit: %w", err)
	}
	defer rows.Close()

	var out []domain.AccountBalance
	for rows.Next() {
		var program, unit, raw string
		if err := rows.Scan(&program, &unit, &raw); err != nil {
			return nil, err
		}
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("parse balance %q", raw)
		}
		out = append(out, domain.AccountBalance{ProgramID: program, Unit: unit, Qty: v})
	}
	return out, rows.Err()
}
