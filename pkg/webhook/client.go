// Package webhook delivers signed JSON payloads to a tenant-configured
// outbox URL, the transport internal/notify uses to announce job
// completion/failure to external collaborators.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client POSTs signed webhook deliveries. One Client is shared across all
// tenants; the signing secret is resolved per call since different
// tenants sign with different secrets.
type Client struct {
	HTTPClient *http.Client
}

// NewClient builds a Client with the teacher's standard outbound timeout.
func NewClient() *Client {
	return &Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

// Deliver POSTs payload to url, signing the raw body with HMAC-SHA256
// under secret and carrying the signature in x-signature-sha256 as a
// bare hex digest, alongside x-tenant-id/x-job-type/x-job-id identifying
// the notification. A non-2xx response is returned as an error carrying
// the status code, which callers classify as retryable.
func (c *Client) Deliver(ctx context.Context, url, secret, tenant, jobType string, jobID uuid.UUID, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-tenant-id", tenant)
	req.Header.Set("x-job-type", jobType)
	req.Header.Set("x-job-id", jobID.String())
	req.Header.Set("x-signature-sha256", Sign(secret, body))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature (the raw x-signature-sha256 header
// value) matches body signed under secret, using a constant-time
// comparison.
func Verify(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// DeliveryError is returned for a non-2xx webhook response.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook delivery failed: status=%d body=%q", e.StatusCode, e.Body)
}
