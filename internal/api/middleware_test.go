package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTenantAuthMiddleware_APIKeySuccess(t *testing.T) {
	keyLookup := func(tenant, apiKey string) bool {
		return tenant == "acme" && apiKey == "secret"
	}
	var gotTenant string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant, _ = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/receipts/x/status", nil)
	req.Header.Set("x-tenant-id", "acme")
	req.Header.Set("x-api-key", "secret")
	rec := httptest.NewRecorder()

	TenantAuthMiddleware("", keyLookup)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotTenant != "acme" {
		t.Fatalf("expected tenant acme in context, got %q", gotTenant)
	}
}

func TestTenantAuthMiddleware_WrongAPIKeyRejected(t *testing.T) {
	keyLookup := func(tenant, apiKey string) bool { return false }
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/receipts/x/status", nil)
	req.Header.Set("x-tenant-id", "acme")
	req.Header.Set("x-api-key", "wrong")
	rec := httptest.NewRecorder()

	TenantAuthMiddleware("", keyLookup)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTenantAuthMiddleware_NoCredentialsRejected(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/receipts/x/status", nil)
	rec := httptest.NewRecorder()

	TenantAuthMiddleware("", nil)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestInternalAPIKeyMiddleware_Success(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPut, "/internal/v1/merchants/m1/freeze", nil)
	req.Header.Set("x-internal-api-key", "topsecret")
	rec := httptest.NewRecorder()

	InternalAPIKeyMiddleware("topsecret")(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestInternalAPIKeyMiddleware_WrongKeyForbidden(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodPut, "/internal/v1/merchants/m1/freeze", nil)
	req.Header.Set("x-internal-api-key", "wrong")
	rec := httptest.NewRecorder()

	InternalAPIKeyMiddleware("topsecret")(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestInternalAPIKeyMiddleware_EmptyExpectedKeyAlwaysForbidden(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not run")
	})

	req := httptest.NewRequest(http.MethodPut, "/internal/v1/merchants/m1/freeze", nil)
	rec := httptest.NewRecorder()

	InternalAPIKeyMiddleware("")(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
