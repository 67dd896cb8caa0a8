package payfast

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Validator posts a received ITN body back to PayFast's validation endpoint
// as a defense-in-depth check. Any transport or non-VALID outcome is treated
// as invalid (fail closed); the caller decides whether that is fatal
// (production) or advisory (sandbox).
type Validator struct {
	Host       string
	HTTPClient *http.Client
}

// NewValidator creates a validator for the given PayFast host.
func NewValidator(host string) *Validator {
	return &Validator{
		Host: host,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Validate echoes the raw payload to /eng/query/validate and requires the
// literal response VALID.
func (v *Validator) Validate(ctx context.Context, rawBody []byte) bool {
	base := strings.TrimSuffix(v.Host, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	url := base + "/eng/query/validate"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(rawBody))
	if err != nil {
		log.Errorf("[PayFast] building validate request failed: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		log.Warnf("[PayFast] validate call failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warnf("[PayFast] validate returned status=%d body=%q", resp.StatusCode, string(body))
		return false
	}

	return strings.TrimSpace(string(body)) == "VALID"
}
