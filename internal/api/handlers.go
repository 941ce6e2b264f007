package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loyaltyledger/ledgerd/internal/domain"
	"github.com/loyaltyledger/ledgerd/internal/ingest"
	"github.com/loyaltyledger/ledgerd/internal/ratelimit"
	"github.com/loyaltyledger/ledgerd/internal/store"
)

// Handler holds the dependencies every ingress endpoint needs: the pool
// itself (handlers open their own short transactions), the submission
// rate limiter, and the idempotency lock guarding concurrent duplicate
// submissions of the same key.
type Handler struct {
	pool            *pgxpool.Pool
	limiter         *ratelimit.Limiter
	idemLock        *ratelimit.IdempotencyLock
	rateLimitPerMin int
}

func NewHandler(pool *pgxpool.Pool, limiter *ratelimit.Limiter, idemLock *ratelimit.IdempotencyLock, rateLimitPerMin int) *Handler {
	return &Handler{pool: pool, limiter: limiter, idemLock: idemLock, rateLimitPerMin: rateLimitPerMin}
}

func (h *Handler) checkRateLimit(w http.ResponseWriter, r *http.Request, scope, tenant string) bool {
	if h.limiter == nil || h.rateLimitPerMin <= 0 {
		return true
	}
	count, retryAfter, err := h.limiter.Consume(r.Context(), scope, tenant, h.rateLimitPerMin, time.Minute)
	if err != nil {
		log.Printf("level=error component=api msg=\"rate limit check failed\" tenant=%s scope=%s err=%q", tenant, scope, err)
		return true
	}
	if count > h.rateLimitPerMin {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	return true
}

func (h *Handler) handleCreateReceipt(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkRateLimit(w, r, "receipts", tenant) {
		return
	}

	var req ingest.ReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("malformed body: %v", err), http.StatusUnprocessableEntity)
		return
	}
	if msg := req.Validate(); msg != "" {
		http.Error(w, msg, http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	receiptStore := store.NewReceiptStore(h.pool)

	if req.IdempotencyKey != nil {
		if h.idemLock != nil {
			if locked, err := h.idemLock.Acquire(ctx, tenant, *req.IdempotencyKey); err == nil && locked {
				defer h.idemLock.Release(ctx, tenant, *req.IdempotencyKey)
			}
		}
		if existing, err := receiptStore.FindByIdempotencyKey(ctx, tenant, *req.IdempotencyKey); err == nil && existing != nil {
			h.respondExistingReceipt(w, r, tenant, *existing)
			return
		}
	}

	receipt := req.ToDomain(tenant)
	if existing, err := receiptStore.FindByFingerprint(ctx, tenant, receipt.Fingerprint); err == nil && existing != nil {
		h.respondExistingReceipt(w, r, tenant, *existing)
		return
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(ctx)

	if err := store.NewReceiptStore(tx).Insert(ctx, receipt); err != nil {
		if errors.Is(err, store.ErrDuplicateReceipt) {
			tx.Rollback(ctx)
			if existing, ferr := receiptStore.FindByFingerprint(ctx, tenant, receipt.Fingerprint); ferr == nil && existing != nil {
				h.respondExistingReceipt(w, r, tenant, *existing)
				return
			}
			http.Error(w, "duplicate receipt", http.StatusConflict)
			return
		}
		log.Printf("level=error component=api msg=\"insert receipt failed\" tenant=%s err=%q", tenant, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	jobID, err := store.EnqueueReceiptJob(ctx, tx, tenant, receipt.ReceiptID)
	if err != nil {
		log.Printf("level=error component=api msg=\"enqueue receipt job failed\" tenant=%s err=%q", tenant, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusAccepted, ingest.JobHandleResponse{
		ReceiptID:       &receipt.ReceiptID,
		ProcessingJobID: jobID,
		Status:          domain.JobPending,
	})
}

func (h *Handler) respondExistingReceipt(w http.ResponseWriter, r *http.Request, tenant string, receipt domain.Receipt) {
	job, err := store.GetJobByReference(r.Context(), h.pool, "receipt_jobs", "receipt_id", tenant, receipt.ReceiptID)
	if err != nil || job == nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusConflict, ingest.JobHandleResponse{
		ReceiptID:       &receipt.ReceiptID,
		ProcessingJobID: job.JobID,
		Status:          job.Status,
	})
}

func (h *Handler) handleReceiptStatus(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "receipt_id"))
	if err != nil {
		http.Error(w, "malformed receipt_id", http.StatusBadRequest)
		return
	}
	job, err := store.GetJobByReference(r.Context(), h.pool, "receipt_jobs", "receipt_id", tenant, id)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, jobStatusResponse(job, &id, nil))
}

func (h *Handler) handleCreateRedeem(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkRateLimit(w, r, "redeem", tenant) {
		return
	}

	var req ingest.RedeemRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("malformed body: %v", err), http.StatusUnprocessableEntity)
		return
	}
	if req.AccountID == "" || req.ProgramID == "" || req.Unit == "" {
		http.Error(w, "account_id, program_id, and unit are required", http.StatusUnprocessableEntity)
		return
	}
	qty, ok := new(big.Int).SetString(req.Qty, 10)
	if !ok || qty.Sign() <= 0 {
		http.Error(w, "qty must be a positive integer", http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	redeemStore := store.NewRedeemStore(h.pool)

	if req.IdempotencyKey != nil {
		if h.idemLock != nil {
			if locked, err := h.idemLock.Acquire(ctx, tenant, *req.IdempotencyKey); err == nil && locked {
				defer h.idemLock.Release(ctx, tenant, *req.IdempotencyKey)
			}
		}
		if existing, err := redeemStore.FindByIdempotencyKey(ctx, tenant, *req.IdempotencyKey); err == nil && existing != nil {
			h.respondExistingRedeem(w, r, tenant, *existing)
			return
		}
	}

	redeem := domain.RedeemRequest{
		RequestID:      uuid.New(),
		Tenant:         tenant,
		IdempotencyKey: req.IdempotencyKey,
		AccountID:      req.AccountID,
		ProgramID:      req.ProgramID,
		Unit:           req.Unit,
		Qty:            qty,
		Memo:           req.Memo,
		BurnMerchantID: req.BurnMerchantID,
		PartnerHint:    req.PartnerHint,
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(ctx)

	if err := store.NewRedeemStore(tx).Insert(ctx, redeem); err != nil {
		if errors.Is(err, store.ErrDuplicateRedeem) {
			tx.Rollback(ctx)
			if req.IdempotencyKey != nil {
				if existing, ferr := redeemStore.FindByIdempotencyKey(ctx, tenant, *req.IdempotencyKey); ferr == nil && existing != nil {
					h.respondExistingRedeem(w, r, tenant, *existing)
					return
				}
			}
			http.Error(w, "duplicate redeem request", http.StatusConflict)
			return
		}
		log.Printf("level=error component=api msg=\"insert redeem request failed\" tenant=%s err=%q", tenant, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	jobID, err := store.EnqueueRedeemJob(ctx, tx, tenant, redeem.RequestID)
	if err != nil {
		log.Printf("level=error component=api msg=\"enqueue redeem job failed\" tenant=%s err=%q", tenant, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusAccepted, ingest.JobHandleResponse{
		RedemptionID:    &redeem.RequestID,
		ProcessingJobID: jobID,
		Status:          domain.JobPending,
	})
}

func (h *Handler) respondExistingRedeem(w http.ResponseWriter, r *http.Request, tenant string, redeem domain.RedeemRequest) {
	job, err := store.GetJobByReference(r.Context(), h.pool, "redeem_jobs", "request_id", tenant, redeem.RequestID)
	if err != nil || job == nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusConflict, ingest.JobHandleResponse{
		RedemptionID:    &redeem.RequestID,
		ProcessingJobID: job.JobID,
		Status:          job.Status,
	})
}

func (h *Handler) handleRedeemStatus(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "redemption_id"))
	if err != nil {
		http.Error(w, "malformed redemption_id", http.StatusBadRequest)
		return
	}
	job, err := store.GetJobByReference(r.Context(), h.pool, "redeem_jobs", "request_id", tenant, id)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, jobStatusResponse(job, nil, &id))
}

func jobStatusResponse(job *domain.Job, receiptID, redemptionID *uuid.UUID) ingest.JobHandleResponse {
	resp := ingest.JobHandleResponse{
		ReceiptID:       receiptID,
		RedemptionID:    redemptionID,
		ProcessingJobID: job.JobID,
		Status:          job.Status,
		Attempts:        job.Attempts,
		LastError:       job.LastError,
		Summary:         job.ResultSummary,
		CompletedAt:     job.CompletedAt,
		AvailableAt:     &job.AvailableAt,
		CreatedAt:       &job.CreatedAt,
	}
	return resp
}

func (h *Handler) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	accountID := domain.ResolveBalanceAccount(tenant, chi.URLParam(r, "account_id"))
	var programID *string
	if p := r.URL.Query().Get("program_id"); p != "" {
		programID = &p
	}

	ls := store.NewLedgerStore(h.pool)
	balances, err := ls.BalancesByUnit(r.Context(), tenant, accountID, programID)
	if err != nil {
		log.Printf("level=error component=api msg=\"balances query failed\" tenant=%s account=%s err=%q", tenant, accountID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]ingest.BalanceEntry, 0, len(balances))
	for _, b := range balances {
		out = append(out, ingest.BalanceEntry{ProgramID: b.ProgramID, Unit: b.Unit, Qty: b.Qty.String()})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetProgramConfig(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	programID := chi.URLParam(r, "program_id")
	raw, err := store.NewProgramStore(h.pool).GetConfig(r.Context(), tenant, programID)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if raw == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, ingest.ProgramConfigResponse{ProgramID: programID, Config: raw})
}

func (h *Handler) handlePutProgramConfig(w http.ResponseWriter, r *http.Request) {
	tenant, ok := TenantFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	programID := chi.URLParam(r, "program_id")
	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		http.Error(w, "invalid json body", http.StatusUnprocessableEntity)
		return
	}
	if err := store.NewProgramStore(h.pool).PutConfig(r.Context(), tenant, programID, body); err != nil {
		log.Printf("level=error component=api msg=\"put program config failed\" tenant=%s program=%s err=%q", tenant, programID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePutMerchantFreeze queues a freeze/unfreeze decision for the
// freezer worker to apply, keeping this admin surface decoupled from the
// row it ultimately mutates the same way an external risk system would be.
func (h *Handler) handlePutMerchantFreeze(w http.ResponseWriter, r *http.Request) {
	tenant := strings.TrimSpace(r.Header.Get("x-tenant-id"))
	if tenant == "" {
		http.Error(w, "x-tenant-id header required", http.StatusBadRequest)
		return
	}
	merchantAccount := chi.URLParam(r, "merchant_account")

	var body ingest.FreezeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("malformed body: %v", err), http.StatusUnprocessableEntity)
		return
	}

	req := domain.FreezeRequest{
		RequestID:       uuid.New().String(),
		Tenant:          tenant,
		MerchantAccount: merchantAccount,
		Frozen:          body.Frozen,
		Reason:          body.Reason,
	}
	if err := store.NewMerchantStore(h.pool).EnqueueFreezeRequest(r.Context(), req); err != nil {
		log.Printf("level=error component=api msg=\"enqueue freeze request failed\" tenant=%s merchant_account=%s err=%q",
			tenant, merchantAccount, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"request_id": req.RequestID})
}

func (h *Handler) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	tenant := strings.TrimSpace(r.Header.Get("x-tenant-id"))
	if tenant == "" {
		http.Error(w, "x-tenant-id header required", http.StatusBadRequest)
		return
	}
	var merchantAccount *string
	if m := r.URL.Query().Get("merchant_account"); m != "" {
		merchantAccount = &m
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	reports, err := store.NewSettlementStore(h.pool).List(r.Context(), tenant, merchantAccount, limit)
	if err != nil {
		log.Printf("level=error component=api msg=\"list settlements failed\" tenant=%s err=%q", tenant, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]ingest.SettlementReportResponse, 0, len(reports))
	for _, rep := range reports {
		out = append(out, ingest.SettlementReportResponse{
			Tenant:          rep.Tenant,
			MerchantAccount: rep.MerchantAccount,
			PeriodStart:     rep.PeriodStart,
			PeriodEnd:       rep.PeriodEnd,
			NetPoints:       rep.NetPoints,
			Summary:         rep.Summary,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ledgerd is healthy"))
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
