// Package lead implements lead intake, scoring, and lifecycle management.
//
// The service layer owns the probability heuristic and validation rules.
// It depends on the Repository interface defined in this package and on a
// Notifier for best-effort welcome messages; it never imports from api/.
//
// The Postgres implementation lives in repository/postgres.
package lead
