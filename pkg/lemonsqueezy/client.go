// Package lemonsqueezy is a thin client for the parts of the LemonSqueezy
// JSON:API the shop relies on: hosted checkouts and webhook verification.
package lemonsqueezy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/craftmart/craftmart-backend/pkg/config"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

const (
	jsonAPIContentType = "application/vnd.api+json"
	defaultBaseURL     = "https://api.lemonsqueezy.com"
	defaultTimeout     = 15 * time.Second
	maxResponseBytes   = 1 << 20
)

var (
	errAPIKeyRequired    = errors.New("lemonsqueezy api key is required")
	errStoreIDRequired   = errors.New("lemonsqueezy store id is required")
	errVariantIDRequired = errors.New("lemonsqueezy variant id is required")
	errLoggerRequired    = errors.New("lemonsqueezy logger is required")
)

// Client talks to the LemonSqueezy REST API with bearer auth and a bounded timeout.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	storeID   string
	variantID string
	testMode  bool
	logger    *logger.Logger
}

// NewClient validates credentials and prepares an HTTP client. httpClient may be
// nil, in which case one is built from cfg.Timeout.
func NewClient(cfg config.LemonSqueezyConfig, httpClient *http.Client, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	storeID := strings.TrimSpace(cfg.StoreID)
	if storeID == "" {
		return nil, errStoreIDRequired
	}
	variantID := strings.TrimSpace(cfg.VariantID)
	if variantID == "" {
		return nil, errVariantIDRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		apiKey:    apiKey,
		storeID:   storeID,
		variantID: variantID,
		testMode:  cfg.TestMode,
		logger:    logg,
	}, nil
}

// TestMode reports whether checkouts are created in sandbox mode.
func (c *Client) TestMode() bool {
	if c == nil {
		return false
	}
	return c.testMode
}

// CreateCheckout creates a hosted checkout for a single custom-priced line and
// returns its id and URL.
func (c *Client) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout params")
	}

	body := params.toRequest(c.storeID, c.variantID, c.testMode)
	c.log(ctx, "request", "create_checkout", map[string]any{
		"order_id":     params.OrderID,
		"custom_price": params.AmountCents,
		"email":        params.Email,
		"test_mode":    c.testMode,
	})

	var resp checkoutResponse
	if err := c.do(ctx, http.MethodPost, "/v1/checkouts", body, &resp); err != nil {
		c.log(ctx, "error", "create_checkout", map[string]any{"error": err.Error()})
		return nil, err
	}

	out := &Checkout{ID: strings.TrimSpace(resp.Data.ID), URL: strings.TrimSpace(resp.Data.Attributes.URL)}
	if out.ID == "" || out.URL == "" {
		err := pkgerrors.New(pkgerrors.CodeDependency, "lemonsqueezy returned no checkout url")
		c.log(ctx, "error", "create_checkout", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_checkout", map[string]any{"checkout_id": out.ID})
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode lemonsqueezy request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build lemonsqueezy request")
	}
	req.Header.Set("Accept", jsonAPIContentType)
	req.Header.Set("Content-Type", jsonAPIContentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lemonsqueezy request failed")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read lemonsqueezy response")
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return mapAPIError(res.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode lemonsqueezy response")
	}
	return nil
}

type apiErrors struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func mapAPIError(status int, raw []byte) error {
	detail := ""
	var payload apiErrors
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Errors) > 0 {
		first := payload.Errors[0]
		detail = strings.TrimSpace(first.Detail)
		if detail == "" {
			detail = strings.TrimSpace(first.Title)
		}
	}
	cause := fmt.Errorf("lemonsqueezy status %d: %s", status, detail)
	return pkgerrors.Wrap(domainCodeForStatus(status), cause, "lemonsqueezy create checkout failed")
}

// Every upstream rejection is a dependency failure from the shopper's point of
// view; only throttling keeps its own code so callers can back off.
func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("lemonsqueezy %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("lemonsqueezy %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "key", "email", "name"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
