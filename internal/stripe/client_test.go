package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("sk_test_123", 5*time.Second)
	c.SetBaseURL(srv.URL)
	return c
}

func TestCreateCheckoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.Form.Get("mode"))
		assert.Equal(t, "12999", r.Form.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "usd", r.Form.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "Tax Return Preparation", r.Form.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "org-1", r.Form.Get("metadata[organization_id]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_abc","url":"https://checkout.stripe.com/c/pay/cs_test_abc","payment_status":"unpaid","amount_total":12999,"currency":"usd"}`))
	})

	session, err := c.CreateCheckoutSession(context.Background(), CreateSessionParams{
		AmountCents: 12999,
		Currency:    "usd",
		Description: "Tax Return Preparation",
		SuccessURL:  "https://crm.example.com/payment/success",
		CancelURL:   "https://crm.example.com/payment/cancel",
		Metadata:    map[string]string{"organization_id": "org-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", session.ID)
	assert.Contains(t, session.URL, "checkout.stripe.com")
}

func TestGetCheckoutSessionPaid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/sessions/cs_test_abc", r.URL.Path)
		w.Write([]byte(`{"id":"cs_test_abc","payment_status":"paid","amount_total":10000,"currency":"usd"}`))
	})

	session, err := c.GetCheckoutSession(context.Background(), "cs_test_abc")
	require.NoError(t, err)
	assert.Equal(t, "paid", session.PaymentStatus)
}

func TestGetCheckoutSessionMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`))
	})

	_, err := c.GetCheckoutSession(context.Background(), "cs_nope")
	require.Error(t, err)
	assert.True(t, IsResourceMissing(err))
}

func TestAPIErrorSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := c.GetCheckoutSession(context.Background(), "cs_declined")
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "card_declined", apiErr.Code)
	assert.False(t, IsResourceMissing(err))
}
