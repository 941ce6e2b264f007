package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the chi router: tenant-facing routes behind
// TenantAuthMiddleware, admin routes behind InternalAPIKeyMiddleware.
func NewRouter(h *Handler, jwksURL string, internalKey string, keyLookup func(tenant, apiKey string) bool) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "x-tenant-id", "x-api-key", "x-internal-api-key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(TenantAuthMiddleware(jwksURL, keyLookup))

		r.Post("/v1/receipts", h.handleCreateReceipt)
		r.Get("/v1/receipts/{receipt_id}/status", h.handleReceiptStatus)
		r.Post("/v1/redeem", h.handleCreateRedeem)
		r.Get("/v1/redeem/{redemption_id}/status", h.handleRedeemStatus)
		r.Get("/v1/accounts/{account_id}/balances", h.handleGetBalances)
		r.Get("/v1/programs/{program_id}/config", h.handleGetProgramConfig)
		r.Put("/v1/programs/{program_id}/config", h.handlePutProgramConfig)
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(internalKey))

		r.Put("/merchants/{merchant_account}/freeze", h.handlePutMerchantFreeze)
		r.Get("/settlements", h.handleListSettlements)
	})

	return r
}
