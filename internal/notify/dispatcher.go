package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

const (
	// queueSize bounds the pending task backlog. When full, new tasks are
	// recorded as dropped rather than blocking the request path.
	queueSize = 256

	// maxOutcomes bounds the in-memory outcome log.
	maxOutcomes = 512

	taskTimeout = 30 * time.Second
)

// TaskKind identifies the delivery channel for an async task.
type TaskKind string

const (
	TaskEmail TaskKind = "email"
	TaskSMS   TaskKind = "sms"
)

// TaskStatus records how an async delivery ended.
type TaskStatus string

const (
	StatusDelivered TaskStatus = "delivered"
	StatusFailed    TaskStatus = "failed"
	StatusDropped   TaskStatus = "dropped"
)

// Outcome is the observable record of one async delivery attempt.
type Outcome struct {
	ID        string     `json:"id"`
	Kind      TaskKind   `json:"kind"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject,omitempty"`
	Status    TaskStatus `json:"status"`
	Error     string     `json:"error,omitempty"`
	At        time.Time  `json:"at"`
}

type task struct {
	id        string
	kind      TaskKind
	recipient string
	subject   string
	body      string
}

// Mailer sends a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMSSender sends a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Dispatcher runs lifecycle notifications off the request path. Each
// task produces an Outcome retrievable through Outcomes, so "fire and
// forget" never means "lost without trace".
type Dispatcher struct {
	mailer Mailer
	sms    SMSSender

	tasks chan task
	wg    sync.WaitGroup

	mu       sync.RWMutex
	outcomes []Outcome
	closed   bool
}

// NewDispatcher creates a dispatcher and starts its worker. mailer and
// sms may be nil; tasks for a missing channel fail with an outcome
// rather than panicking.
func NewDispatcher(mailer Mailer, sms SMSSender) *Dispatcher {
	d := &Dispatcher{
		mailer: mailer,
		sms:    sms,
		tasks:  make(chan task, queueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for t := range d.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		err := d.execute(ctx, t)
		cancel()

		status := StatusDelivered
		msg := ""
		if err != nil {
			status = StatusFailed
			msg = err.Error()
			logger.Error("notification failed",
				"task_id", t.id, "kind", string(t.kind), "recipient", t.recipient, "error", msg)
		} else {
			logger.Info("notification delivered",
				"task_id", t.id, "kind", string(t.kind), "recipient", t.recipient)
		}
		d.record(Outcome{
			ID: t.id, Kind: t.kind, Recipient: t.recipient, Subject: t.subject,
			Status: status, Error: msg, At: time.Now().UTC(),
		})
	}
}

func (d *Dispatcher) execute(ctx context.Context, t task) error {
	switch t.kind {
	case TaskEmail:
		if d.mailer == nil {
			return fmt.Errorf("no mailer configured")
		}
		return d.mailer.Send(ctx, t.recipient, t.subject, t.body)
	case TaskSMS:
		if d.sms == nil {
			return fmt.Errorf("no sms sender configured")
		}
		return d.sms.SendSMS(ctx, t.recipient, t.body)
	default:
		return fmt.Errorf("unknown task kind %q", t.kind)
	}
}

// enqueue holds the read lock across the send so Close cannot close the
// channel between the closed check and the send.
func (d *Dispatcher) enqueue(t task) {
	t.id = uuid.New().String()

	dropReason := ""
	d.mu.RLock()
	if d.closed {
		dropReason = "dispatcher closed"
	} else {
		select {
		case d.tasks <- t:
		default:
			dropReason = "queue full"
		}
	}
	d.mu.RUnlock()

	if dropReason != "" {
		d.record(Outcome{
			ID: t.id, Kind: t.kind, Recipient: t.recipient, Subject: t.subject,
			Status: StatusDropped, Error: dropReason, At: time.Now().UTC(),
		})
	}
}

func (d *Dispatcher) record(o Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, o)
	if len(d.outcomes) > maxOutcomes {
		d.outcomes = d.outcomes[len(d.outcomes)-maxOutcomes:]
	}
}

// Outcomes returns the recorded outcomes, most recent last.
func (d *Dispatcher) Outcomes() []Outcome {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Outcome, len(d.outcomes))
	copy(out, d.outcomes)
	return out
}

// WelcomeLead queues the welcome email, plus a text message when the
// lead left a phone number.
func (d *Dispatcher) WelcomeLead(l *domain.Lead) {
	d.enqueue(task{
		kind:      TaskEmail,
		recipient: l.Email,
		subject:   "Welcome to Lawson Mobile Tax",
		body:      welcomeEmailHTML(l),
	})
	if l.Phone != "" {
		d.enqueue(task{
			kind:      TaskSMS,
			recipient: l.Phone,
			body: fmt.Sprintf("Hi %s, thanks for reaching out to Lawson Mobile Tax! "+
				"A tax specialist will contact you within one business day.", l.FirstName),
		})
	}
}

func welcomeEmailHTML(l *domain.Lead) string {
	return fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Thanks for your interest in %s. One of our tax specialists will reach
out within one business day to talk through next steps.</p>
<p>&mdash; The Lawson Mobile Tax team</p>
</body></html>`, l.FirstName, interestOrDefault(l.ServiceInterest))
}

func interestOrDefault(interest string) string {
	if interest == "" {
		return "our tax services"
	}
	return interest
}

// Close stops accepting tasks and waits for in-flight deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()
	d.wg.Wait()
}
