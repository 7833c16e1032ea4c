package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httpretry"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioClient sends SMS through the Twilio Messages API. When the SMS
// feature is disabled it logs instead of sending.
type TwilioClient struct {
	cfg     config.SMSConfig
	baseURL string
	client  httpretry.HTTPDoer
}

// NewTwilioClient creates a Twilio SMS client with retry on transient
// provider errors.
func NewTwilioClient(cfg config.SMSConfig) *TwilioClient {
	return &TwilioClient{
		cfg:     cfg,
		baseURL: twilioAPIBase,
		client:  httpretry.NewRetryClient(&http.Client{Timeout: 15 * time.Second}, 2),
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *TwilioClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// twilioError is the provider's error envelope.
type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// SendSMS delivers one text message from the configured number.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) error {
	if !c.cfg.Enabled {
		logger.Info("sms disabled, skipping send", "to", to)
		return nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	payload := form.Encode()
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(payload)), nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var te twilioError
	if json.Unmarshal(raw, &te) == nil && te.Message != "" {
		return fmt.Errorf("twilio status %d code %d: %s", resp.StatusCode, te.Code, te.Message)
	}
	return fmt.Errorf("twilio status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}
