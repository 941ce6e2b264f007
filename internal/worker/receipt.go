package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/jobs"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
	"github.com/loyaltyledger/ledgerd/internal/plugins"
	"github.com/loyaltyledger/ledgerd/internal/store"
	"github.com/loyaltyledger/ledgerd/pkg/rabbitmq"
)

// ReceiptChain is the fixed, statically composed receipt plugin order.
// DefaultEarn runs first. Every plugin runs before ApplyMutations writes
// any entry, so all of them read balances as they stood before this
// receipt.
var ReceiptChain = []plugins.ReceiptPlugin{
	plugins.DefaultEarn{},
	plugins.NthFreeStamps{},
	plugins.RollingSpendTier{},
}

// ReceiptProcessor builds the jobs.ProcessFunc the receipt Processor
// drives: one transaction per job, running the full plugin chain and
// applying whatever mutations it produces, then recording the outbox
// notification in the same transaction.
func ReceiptProcessor(pool *pgxpool.Pool, events rabbitmq.Publisher) jobs.ProcessFunc[store.ReceiptJobContext] {
	return func(ctx context.Context, job domain.Job, jobCtx store.ReceiptJobContext) (map[string]any, error) {
		receipt := jobCtx.Receipt

		var lineItems []domain.ReceiptLineItem
		if len(receipt.Payload) > 0 {
			var wrapper struct {
				LineItems []domain.ReceiptLineItem `json:"line_items"`
			}
			if err := json.Unmarshal(receipt.Payload, &wrapper); err == nil {
				lineItems = wrapper.LineItems
			}
		}

		rctx := plugins.ReceiptContext{
			Tenant:             receipt.Tenant,
			ProgramID:          receipt.ProgramID,
			MerchantID:         receipt.MerchantID,
			CustomerAccountRef: receipt.AccountRef,
			CustomerAccount:    domain.CustomerAccount(receipt.Tenant, receipt.AccountRef),
			GrandTotalCents:    receipt.GrandTotalCents,
			LineItems:          lineItems,
			IssuedAt:           receipt.IssuedAt,
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "begin receipt job tx", Err: err}
		}
		defer tx.Rollback(ctx)

		now := time.Now()
		helpers := NewHelpers(tx, receipt.Tenant, receipt.ProgramID, "", now)

		mutations, err := plugins.RunReceiptPlugins(ctx, ReceiptChain, rctx, helpers)
		if err != nil {
			return nil, err
		}

		programCfg, err := helpers.programStore.GetConfig(ctx, receipt.Tenant, receipt.ProgramID)
		if err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "load program config for expiry", Err: err}
		}
		earnExpiry := parseEarnExpiryConfig(programCfg)

		var crossBrand *domain.CrossBrandAllocation
		var wrapper struct {
			CrossBrandAllocation *domain.CrossBrandAllocation `json:"cross_brand_allocation"`
		}
		if len(programCfg) > 0 {
			if jsonErr := json.Unmarshal(programCfg, &wrapper); jsonErr == nil {
				crossBrand = wrapper.CrossBrandAllocation
			}
		}

		summary, err := jobs.ApplyMutations(ctx, helpers, jobs.ApplyMutationsParams{
			Tenant:     receipt.Tenant,
			ProgramID:  receipt.ProgramID,
			CrossBrand: crossBrand,
			EarnExpiry: earnExpiry,
			Now:        now,
		}, mutations)
		if err != nil {
			return nil, err
		}

		summaryRaw, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("marshal receipt job summary: %w", err)
		}

		if err := store.NewNotificationStore(pool).Insert(ctx, tx, domain.JobNotification{
			Tenant:      receipt.Tenant,
			JobType:     domain.JobKindReceipt,
			JobID:       job.JobID,
			ReferenceID: receipt.ReceiptID,
			Status:      domain.JobCompleted,
			Summary:     summaryRaw,
		}); err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "insert receipt job notification", Err: err}
		}

		if err := store.CompleteReceiptJobTx(ctx, tx, job.JobID, summaryRaw); err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "complete receipt job", Err: err}
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "commit receipt job tx", Err: err}
		}

		if events != nil {
			if pubErr := events.PublishJobCompleted(ctx, rabbitmq.JobEvent{
				Tenant:      receipt.Tenant,
				JobType:     string(domain.JobKindReceipt),
				JobID:       job.JobID,
				ReferenceID: receipt.ReceiptID,
				Summary:     summaryRaw,
				Timestamp:   now,
			}); pubErr != nil {
				log.Printf("level=warn component=receipt_worker msg=\"job event publish failed\" job_id=%s err=%v", job.JobID, pubErr)
			}
		}
		return summary, nil
	}
}

func parseEarnExpiryConfig(raw []byte) domain.EarnExpiryConfig {
	var cfg domain.EarnExpiryConfig
	if len(raw) == 0 {
		return cfg
	}
	_ = json.Unmarshal(raw, &cfg)
	return cfg
}
