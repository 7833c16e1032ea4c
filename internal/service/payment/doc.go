// Package payment implements checkout session creation and verification.
//
// The provider strategy (live Stripe vs local mock) is chosen once when the
// service is constructed, from configuration — never per request. Mock mode
// simulates settlement locally with a deterministic fee so the rest of the
// system behaves identically with or without provider credentials.
package payment
