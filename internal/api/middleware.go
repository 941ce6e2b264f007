// Package api implements the ingress HTTP surface: tenant authentication,
// routing, and the handlers for receipt/redeem submission, status lookup,
// balance queries, and the supplemented admin endpoints.
package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey avoids collisions with other packages' context values.
type contextKey string

const tenantContextKey contextKey = "tenant"

// TenantAuthMiddleware authenticates every ingress request against either
// an `x-tenant-id`/`x-api-key` pair or a bearer JWT carrying a `tenant`
// claim, and stores the resolved tenant in the request context. The
// decision of which API keys are valid for which tenant is delegated to
// keyLookup so the verifier itself stays free of storage concerns.
func TenantAuthMiddleware(jwksURL string, keyLookup func(tenant, apiKey string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tenant, ok := authenticateAPIKey(r, keyLookup); ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantContextKey, tenant)))
				return
			}

			tenant, err := authenticateBearerJWT(r, jwksURL)
			if err != nil {
				http.Error(w, fmt.Sprintf("unauthorized: %v", err), http.StatusUnauthorized)
				return
			}
			if tenant == "" {
				http.Error(w, "unauthorized: no credentials presented", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantContextKey, tenant)))
		})
	}
}

func authenticateAPIKey(r *http.Request, keyLookup func(tenant, apiKey string) bool) (string, bool) {
	tenant := strings.TrimSpace(r.Header.Get("x-tenant-id"))
	apiKey := strings.TrimSpace(r.Header.Get("x-api-key"))
	if tenant == "" || apiKey == "" || keyLookup == nil {
		return "", false
	}
	if !keyLookup(tenant, apiKey) {
		return "", false
	}
	return tenant, true
}

func authenticateBearerJWT(r *http.Request, jwksURL string) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", nil
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}
		publicKey, err := getPublicKeyFromJWKS(jwksURL, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	tenant, ok := claims["tenant"].(string)
	if !ok || tenant == "" {
		return "", fmt.Errorf("tenant claim not found in token")
	}
	return tenant, nil
}

// getPublicKeyFromJWKS fetches the public key from a JWKS endpoint.
func getPublicKeyFromJWKS(jwksURL, kid string) (interface{}, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(jwksURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	for _, key := range jwks.Keys {
		if key.Kid == kid {
			return parseRSAPublicKey(key.N, key.E)
		}
	}
	return nil, fmt.Errorf("key with kid %s not found", kid)
}

// parseRSAPublicKey parses an RSA public key from its base64url-encoded
// modulus and exponent.
func parseRSAPublicKey(n, e string) (interface{}, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var exp uint64
	if len(eb) == 3 {
		exp = uint64(eb[0])<<16 | uint64(eb[1])<<8 | uint64(eb[2])
	} else {
		for _, b := range eb {
			exp = (exp << 8) | uint64(b)
		}
	}

	nInt := new(big.Int).SetBytes(nb)
	return &rsa.PublicKey{N: nInt, E: int(exp)}, nil
}

// TenantFromContext retrieves the authenticated tenant id from the
// request context. Handlers call this instead of re-reading headers.
func TenantFromContext(ctx context.Context) (string, bool) {
	tenant, ok := ctx.Value(tenantContextKey).(string)
	return tenant, ok
}

// InternalAPIKeyMiddleware gates admin endpoints (freeze/unfreeze,
// settlement listing) behind a single shared internal API key, mirroring
// the teacher's own internal-service-to-service key check.
func InternalAPIKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expectedKey == "" || r.Header.Get("x-internal-api-key") != expectedKey {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
