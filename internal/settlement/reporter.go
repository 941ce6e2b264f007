// Package settlement implements the periodic aggregation pass described
// in §4.10: every scheduled run picks a lookback window and upserts one
// net-liability row per tenant's merchant account.
package settlement

import (
	"context"
	"log"
	"time"

	"github.com/loyaltyledger/ledgerd/internal/domain"
)

// Store is the persistence contract the reporter needs.
type Store interface {
	AggregateNetPoints(ctx context.Context, tenant string, periodStart, periodEnd time.Time) (map[string]int64, error)
	Upsert(ctx context.Context, r domain.SettlementReport) error
}

// Reporter runs one aggregation pass per tenant per invocation.
type Reporter struct {
	Store      Store
	LookbackBy time.Duration
}

// RunOnce aggregates [now-LookbackBy, now) for every tenant in tenants and
// upserts one report row per merchant account the aggregation found.
func (r *Reporter) RunOnce(ctx context.Context, tenants []string, now time.Time) error {
	periodEnd := now
	periodStart := now.Add(-r.LookbackBy)

	for _, tenant := range tenants {
		byMerchant, err := r.Store.AggregateNetPoints(ctx, tenant, periodStart, periodEnd)
		if err != nil {
			log.Printf("level=error component=settlement msg=\"aggregate failed\" tenant=%s err=%q", tenant, err)
			continue
		}
		for merchantAccount, net := range byMerchant {
			report := domain.SettlementReport{
				Tenant:          tenant,
				MerchantAccount: merchantAccount,
				PeriodStart:     periodStart,
				PeriodEnd:       periodEnd,
				NetPoints:       net,
			}
			if err := r.Store.Upsert(ctx, report); err != nil {
				log.Printf("level=error component=settlement msg=\"upsert failed\" tenant=%s merchant_account=%s err=%q",
					tenant, merchantAccount, err)
			}
		}
		log.Printf("level=info component=settlement msg=\"aggregation pass complete\" tenant=%s period_start=%s period_end=%s merchants=%d",
			tenant, periodStart.Format(time.RFC3339), periodEnd.Format(time.RFC3339), len(byMerchant))
	}
	return nil
}

// Loop runs one aggregation pass every interval until ctx is cancelled.
// tenantLister is invoked each pass so newly onboarded tenants are picked
// up without a restart.
func (r *Reporter) Loop(ctx context.Context, interval time.Duration, tenantLister func(ctx context.Context) ([]string, error)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tenants, err := tenantLister(ctx)
		if err != nil {
			log.Printf("level=error component=settlement msg=\"list tenants failed\" err=%q", err)
		} else if err := r.RunOnce(ctx, tenants, time.Now()); err != nil {
			log.Printf("level=error component=settlement msg=\"run failed\" err=%q", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
