package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

type fakeSES struct {
	mu     sync.Mutex
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESMailerSend(t *testing.T) {
	ses := &fakeSES{}
	m := NewSESMailer(ses, config.EmailConfig{
		Enabled: true, FromEmail: "tax@lawsonmobiletax.com", FromName: "Lawson Mobile Tax",
	})

	err := m.Send(context.Background(), "ana@example.com", "Welcome", "<p>hi</p>")
	require.NoError(t, err)
	require.Len(t, ses.inputs, 1)

	in := ses.inputs[0]
	assert.Equal(t, "Lawson Mobile Tax <tax@lawsonmobiletax.com>", *in.FromEmailAddress)
	assert.Equal(t, []string{"ana@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Welcome", *in.Content.Simple.Subject.Data)
	assert.Equal(t, "<p>hi</p>", *in.Content.Simple.Body.Html.Data)
}

func TestSESMailerDisabledSkips(t *testing.T) {
	m := NewSESMailer(nil, config.EmailConfig{Enabled: false})
	assert.NoError(t, m.Send(context.Background(), "a@example.com", "s", "b"))
}

func TestSESMailerCampaignFrom(t *testing.T) {
	ses := &fakeSES{}
	m := NewSESMailer(ses, config.EmailConfig{Enabled: true, FromEmail: "default@example.com"})

	err := m.SendCampaign(context.Background(), "Promo", "promo@example.com", "to@example.com", "s", "b")
	require.NoError(t, err)
	assert.Equal(t, "Promo <promo@example.com>", *ses.inputs[0].FromEmailAddress)

	// Empty campaign sender falls back to the configured identity.
	err = m.SendCampaign(context.Background(), "", "", "to@example.com", "s", "b")
	require.NoError(t, err)
	assert.Equal(t, "default@example.com", *ses.inputs[1].FromEmailAddress)
}

func TestSESMailerErrorRedactsRecipient(t *testing.T) {
	m := NewSESMailer(&fakeSES{err: errors.New("throttled")}, config.EmailConfig{Enabled: true})
	err := m.Send(context.Background(), "janet@example.com", "s", "b")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "janet@example.com")
	assert.Contains(t, err.Error(), "throttled")
}

func TestTwilioSendSMS(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient(config.SMSConfig{
		Enabled: true, AccountSID: "AC42", AuthToken: "secret", FromNumber: "+15005550006",
	})
	c.SetBaseURL(srv.URL)

	err := c.SendSMS(context.Background(), "+15551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "/Accounts/AC42/Messages.json", gotPath)
	assert.Equal(t, "AC42", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "+15551234567", gotTo)
	assert.Equal(t, "+15005550006", gotFrom)
	assert.Equal(t, "hello", gotBody)
}

func TestTwilioErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"Invalid 'To' phone number"}`))
	}))
	defer srv.Close()

	c := NewTwilioClient(config.SMSConfig{Enabled: true, AccountSID: "AC42", AuthToken: "t"})
	c.SetBaseURL(srv.URL)

	err := c.SendSMS(context.Background(), "bogus", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Contains(t, err.Error(), "Invalid 'To' phone number")
}

func TestTwilioDisabledSkips(t *testing.T) {
	c := NewTwilioClient(config.SMSConfig{Enabled: false})
	assert.NoError(t, c.SendSMS(context.Background(), "+15551234567", "hi"))
}

type stubMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *stubMailer) Send(_ context.Context, to, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to)
	return nil
}

type stubSMS struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubSMS) SendSMS(_ context.Context, to, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to)
	return nil
}

func waitOutcomes(t *testing.T, d *Dispatcher, n int) []Outcome {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o := d.Outcomes(); len(o) >= n {
			return o
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d outcomes, have %d", n, len(d.Outcomes()))
	return nil
}

func TestDispatcherWelcomeLead(t *testing.T) {
	mailer := &stubMailer{}
	sms := &stubSMS{}
	d := NewDispatcher(mailer, sms)
	defer d.Close()

	d.WelcomeLead(&domain.Lead{
		FirstName: "Ana", Email: "ana@example.com", Phone: "+15551230000",
	})

	outcomes := waitOutcomes(t, d, 2)
	kinds := map[TaskKind]TaskStatus{}
	for _, o := range outcomes {
		kinds[o.Kind] = o.Status
	}
	assert.Equal(t, StatusDelivered, kinds[TaskEmail])
	assert.Equal(t, StatusDelivered, kinds[TaskSMS])
	assert.Equal(t, []string{"ana@example.com"}, mailer.sent)
	assert.Equal(t, []string{"+15551230000"}, sms.sent)
}

func TestDispatcherNoPhoneSkipsSMS(t *testing.T) {
	mailer := &stubMailer{}
	sms := &stubSMS{}
	d := NewDispatcher(mailer, sms)
	defer d.Close()

	d.WelcomeLead(&domain.Lead{FirstName: "Bo", Email: "bo@example.com"})

	outcomes := waitOutcomes(t, d, 1)
	assert.Len(t, outcomes, 1)
	assert.Equal(t, TaskEmail, outcomes[0].Kind)
	assert.Empty(t, sms.sent)
}

func TestDispatcherRecordsFailure(t *testing.T) {
	mailer := &stubMailer{err: errors.New("ses throttled")}
	d := NewDispatcher(mailer, nil)
	defer d.Close()

	d.WelcomeLead(&domain.Lead{FirstName: "Cy", Email: "cy@example.com"})

	outcomes := waitOutcomes(t, d, 1)
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Error, "ses throttled")
}

func TestDispatcherEnqueueDuringClose(t *testing.T) {
	d := NewDispatcher(&stubMailer{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.WelcomeLead(&domain.Lead{FirstName: "Ana", Email: "ana@example.com"})
			}
		}()
	}
	d.Close()
	wg.Wait()

	// Every task either ran or was dropped with an outcome; none may
	// panic on the closed channel.
	for _, o := range d.Outcomes() {
		assert.Contains(t, []TaskStatus{StatusDelivered, StatusFailed, StatusDropped}, o.Status)
	}
}

func TestDispatcherClosedDrops(t *testing.T) {
	d := NewDispatcher(&stubMailer{}, nil)
	d.Close()

	d.WelcomeLead(&domain.Lead{FirstName: "Dee", Email: "dee@example.com"})
	outcomes := d.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusDropped, outcomes[0].Status)
}
