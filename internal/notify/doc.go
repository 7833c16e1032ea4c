// Package notify delivers outbound email (SES) and SMS (Twilio) for the
// CRM. Lifecycle messages such as lead welcomes run through an async
// dispatcher that records an outcome per attempt, so side effects stay
// off the request path without becoming invisible.
package notify
