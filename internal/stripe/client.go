// Package stripe is a minimal client for the Stripe Checkout API.
//
// Only the two calls the payment service needs are implemented: creating a
// hosted checkout session and retrieving one for verification. Requests go
// through httpretry so transient Stripe errors are retried with backoff.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lawsonmobiletax/crm-server/internal/pkg/httpretry"
)

const defaultBaseURL = "https://api.stripe.com/v1"

// Client calls the Stripe API with a secret key.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Stripe client. timeout bounds each underlying HTTP
// attempt; retries add their own backoff on top.
func NewClient(secretKey string, timeout time.Duration) *Client {
	return &Client{
		secretKey:  secretKey,
		baseURL:    defaultBaseURL,
		httpClient: httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 2),
	}
}

// SetBaseURL overrides the API base URL (tests).
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// CheckoutSession is the subset of Stripe's checkout session object the
// payment service consumes.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"` // "paid", "unpaid", "no_payment_required"
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}

// APIError is a structured error returned by Stripe.
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// IsResourceMissing reports whether the error is Stripe's "no such
// session" response, which callers must distinguish from a session that
// simply hasn't completed yet.
func IsResourceMissing(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && (apiErr.Code == "resource_missing" || apiErr.StatusCode == http.StatusNotFound)
}

// CreateSessionParams describes a hosted checkout session.
type CreateSessionParams struct {
	AmountCents int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CreateCheckoutSession creates a hosted checkout session for a single
// line item. Amount must already be in minor currency units.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CreateSessionParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", p.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.Description)
	for k, v := range p.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var session CheckoutSession
	if err := c.do(ctx, "POST", "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetCheckoutSession retrieves a checkout session by id.
func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.do(ctx, "GET", "/checkout/sessions/"+url.PathEscape(id), nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, target any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("stripe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		encoded := form.Encode()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(encoded)), nil
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stripe: read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var wrapper struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: string(data)}
		}
		wrapper.Error.StatusCode = resp.StatusCode
		return &wrapper.Error
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("stripe: parse response: %w", err)
	}
	return nil
}
