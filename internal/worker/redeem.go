package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/jobs"
	"github.com/loyaltyledger/ledgerd/internal/ledgererr"
	"github.com/loyaltyledger/ledgerd/internal/plugins"
	"github.com/loyaltyledger/ledgerd/internal/store"
	"github.com/loyaltyledger/ledgerd/pkg/rabbitmq"
)

// RedeemChain is the fixed redeem plugin order. DefaultRedeem is the only
// built-in rule and always accepts, so it must run last.
var RedeemChain = []plugins.RedeemPlugin{
	plugins.DefaultRedeem{},
}

// RedeemProcessor builds the jobs.ProcessFunc the redeem Processor drives.
// A redeem plugin's non-retryable declared failure (insufficient balance,
// non-positive quantity) is distinct from a Go error: it still finalizes
// the job, with a failed outcome recorded in the notification and summary.
// A retryable declared failure, or no plugin accepting the request, is
// returned as an error so the processor reschedules the job.
func RedeemProcessor(pool *pgxpool.Pool, events rabbitmq.Publisher) jobs.ProcessFunc[store.RedeemJobContext] {
	return func(ctx context.Context, job domain.Job, jobCtx store.RedeemJobContext) (map[string]any, error) {
		req := jobCtx.Request

		rctx := plugins.RedeemContext{
			Tenant:          req.Tenant,
			ProgramID:       req.ProgramID,
			Unit:            req.Unit,
			CustomerAccount: domain.ResolveBalanceAccount(req.Tenant, req.AccountID),
			Qty:             req.Qty,
			Memo:            req.Memo,
			BurnMerchantID:  req.BurnMerchantID,
			PartnerHint:     req.PartnerHint,
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "begin redeem job tx", Err: err}
		}
		defer tx.Rollback(ctx)

		now := time.Now()
		helpers := NewHelpers(tx, req.Tenant, req.ProgramID, req.Unit, now)

		result, err := plugins.RunRedeemPlugins(ctx, RedeemChain, rctx, helpers)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, ledgererr.ErrNoRedeemPluginAccepted
		}

		jobStatus := domain.JobCompleted
		var summary map[string]any
		var notifyErr *string

		if result.Failure != nil {
			if result.Failure.Retryable {
				return nil, result.Failure
			}
			jobStatus = domain.JobFailed
			reason := result.Failure.Reason
			notifyErr = &reason
			summary = map[string]any{"reason": reason}
		} else {
			programCfg, err := helpers.programStore.GetConfig(ctx, req.Tenant, req.ProgramID)
			if err != nil {
				return nil, &ledgererr.TransientStoreError{Op: "load program config for cross-brand allocation", Err: err}
			}
			var crossBrand *domain.CrossBrandAllocation
			var wrapper struct {
				CrossBrandAllocation *domain.CrossBrandAllocation `json:"cross_brand_allocation"`
			}
			if len(programCfg) > 0 {
				if jsonErr := json.Unmarshal(programCfg, &wrapper); jsonErr == nil {
					crossBrand = wrapper.CrossBrandAllocation
				}
			}

			summary, err = jobs.ApplyMutations(ctx, helpers, jobs.ApplyMutationsParams{
				Tenant:         req.Tenant,
				ProgramID:      req.ProgramID,
				CrossBrand:     crossBrand,
				BurnMerchantID: req.BurnMerchantID,
				Now:            now,
			}, []plugins.Mutation{*result.Mutation})
			if err != nil {
				return nil, err
			}
		}

		summaryRaw, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("marshal redeem job summary: %w", err)
		}

		if err := store.NewNotificationStore(pool).Insert(ctx, tx, domain.JobNotification{
			Tenant:      req.Tenant,
			JobType:     domain.JobKindRedeem,
			JobID:       job.JobID,
			ReferenceID: req.RequestID,
			Status:      jobStatus,
			Summary:     summaryRaw,
			Error:       notifyErr,
		}); err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "insert redeem job notification", Err: err}
		}

		if jobStatus == domain.JobFailed {
			if err := store.FailRedeemJobTx(ctx, tx, job.JobID, *notifyErr); err != nil {
				return nil, &ledgererr.TransientStoreError{Op: "fail redeem job", Err: err}
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, &ledgererr.TransientStoreError{Op: "commit redeem job tx", Err: err}
			}
			publishJobEvent(ctx, events, false, req.Tenant, job.JobID, req.RequestID, summaryRaw, *notifyErr, now)
			return summary, nil
		}

		if err := store.CompleteRedeemJobTx(ctx, tx, job.JobID, summaryRaw); err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "complete redeem job", Err: err}
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, &ledgererr.TransientStoreError{Op: "commit redeem job tx", Err: err}
		}
		publishJobEvent(ctx, events, true, req.Tenant, job.JobID, req.RequestID, summaryRaw, "", now)
		return summary, nil
	}
}

// publishJobEvent fans out a terminal job outcome to the event exchange.
// Publish failures are logged, not returned — the job has already
// committed, and the durable notification outbox (not this fan-out) is
// the system of record a retry would otherwise duplicate.
func publishJobEvent(ctx context.Context, events rabbitmq.Publisher, completed bool, tenant string, jobID, referenceID uuid.UUID, summary json.RawMessage, errMsg string, now time.Time) {
	if events == nil {
		return
	}
	event := rabbitmq.JobEvent{
		Tenant:      tenant,
		JobType:     string(domain.JobKindRedeem),
		JobID:       jobID,
		ReferenceID: referenceID,
		Summary:     summary,
		Error:       errMsg,
		Timestamp:   now,
	}
	var err error
	if completed {
		err = events.PublishJobCompleted(ctx, event)
	} else {
		err = events.PublishJobFailed(ctx, event)
	}
	if err != nil {
		log.Printf("level=warn component=redeem_worker msg=\"job event publish failed\" job_id=%s err=%v", jobID, err)
	}
}
