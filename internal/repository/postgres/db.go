// Package postgres implements the repository contracts against
// PostgreSQL. Every query on tenant data is scoped by organization id;
// sentinel errors from the owning service packages are returned so
// callers never see database/sql directly.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lawsonmobiletax/crm-server/internal/config"
)

// Sentinel errors for aggregates that have no dedicated service package.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrOrgNotFound      = errors.New("organization not found")
	ErrDuplicateUser    = errors.New("a user with this email already exists")
	ErrDuplicateSlug    = errors.New("an organization with this slug already exists")
	ErrClientNotFound   = errors.New("client not found")
	ErrDuplicateClient  = errors.New("a client with this email already exists")
	ErrReturnNotFound   = errors.New("tax return not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// uniqueViolation is the Postgres error code for unique constraint hits.
const uniqueViolation = "23505"

// Open connects to PostgreSQL and verifies the connection.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
