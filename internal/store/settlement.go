package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// SettlementStore persists periodic net-liability aggregates.
type SettlementStore struct {
	q Querier
}

func NewSettlementStore(q Querier) *SettlementStore {
	return &SettlementStore{q: q}
}

// AggregateNetPoints sums Σcredits − Σdebits against the tenant's merchant
// liability account over [periodStart, periodEnd), grouped by account_id
// the way the reporter's lookback window groups its rows — with a single
// merchant-liability account per tenant this produces at most one row,
// keyed under that account's own lexical id as the report's merchant
// account value.
func (s *SettlementStore) AggregateNetPoints(ctx context.Context, tenant string, periodStart, periodEnd time.Time) (map[string]int64, error) {
	rows, err := s.q.Query(ctx, `
		SELECT l.account_id, COALESCE(SUM(l.credit), 0) - COALESCE(SUM(l.debit), 0)
		FROM ledger_lines l
		JOIN ledger_journal j ON j.entry_id = l.entry_id
		WHERE j.tenant = $1 AND l.account_id LIKE '%::merchant_liability'
		  AND j.created_at >= $2 AND j.created_at < $3
		GROUP BY l.account_id`, tenant, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("aggregate net points: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var accountID string
		var net int64
		if err := rows.Scan(&accountID, &net); err != nil {
			return nil, err
		}
		out[accountID] = net
	}
	return out, rows.Err()
}

// Upsert writes or replaces one period's report row for a merchant.
func (s *SettlementStore) Upsert(ctx context.Context, r domain.SettlementReport) error {
	summary, err := json.Marshal(r.Summary)
	if err != nil {
		return fmt.Errorf("marshal settlement summary: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO settlement_reports (tenant, merchant_account, period_start, period_end, net_points, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant, merchant_account, period_start, period_end) DO UPDATE SET
			net_points = EXCLUDED.net_points, summary = EXCLUDED.summary`,
		r.Tenant, r.MerchantAccount, r.PeriodStart, r.PeriodEnd, r.NetPoints, summary)
	if err != nil {
		return fmt.Errorf("upsert settlement report: %w", err)
	}
	return nil
}

// List returns settlement reports for a tenant within an optional merchant
// scope, ordered newest period first — the read path for GET
// /internal/v1/settlements.
func (s *SettlementStore) List(ctx context.Context, tenant string, merchantAccount *string, limit int) ([]domain.SettlementReport, error) {
	sql := `SELECT tenant, merchant_account, period_start, period_end, net_points, summary FROM settlement_reports WHERE tenant = $1`
	args := []any{tenant}
	if merchantAccount != nil {
		sql += fmt.Sprintf(" AND merchant_account = $%d", len(args)+1)
		args = append(args, *merchantAccount)
	}
	sql += fmt.Sprintf(" ORDER BY period_start DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list settlement reports: %w", err)
	}
	defer rows.Close()

	var out []domain.SettlementReport
	for rows.Next() {
		var r domain.SettlementReport
		var summary []byte
		if err := rows.Scan(&r.Tenant, &r.MerchantAccount, &r.PeriodStart, &r.PeriodEnd, &r.NetPoints, &summary); err != nil {
			return nil, err
		}
		if len(summary) > 0 {
			if err := json.Unmarshal(summary, &r.Summary); err != nil {
				return nil, fmt.Errorf("unmarshal settlement summary: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
