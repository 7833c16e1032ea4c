package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// UserRepo implements user and organization persistence. It satisfies
// auth.UserStore.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a Postgres-backed user repository.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, password_hash, name, role, created_at
		FROM users
		WHERE email = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(
		&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, email, password_hash, name, role, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(
		&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// CreateOrganizationWithAdmin creates a tenant and its first admin user
// atomically, used by signup.
func (r *UserRepo) CreateOrganizationWithAdmin(ctx context.Context, org *domain.Organization, user *domain.User) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.OrganizationID = org.ID
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin signup tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, slug, created_at)
		VALUES ($1, $2, $3, NOW())
	`, org.ID, org.Name, org.Slug)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("create organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, password_hash, name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, user.ID, user.OrganizationID, user.Email, user.PasswordHash, user.Name, user.Role)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateUser
		}
		return fmt.Errorf("create user: %w", err)
	}

	return tx.Commit()
}

func (r *UserRepo) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	o := &domain.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at FROM organizations WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

// GetOrganizationBySlug resolves a tenant by its public slug, used to
// attribute anonymous payments to the platform organization.
func (r *UserRepo) GetOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	o := &domain.Organization{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at FROM organizations WHERE slug = $1
	`, slug).Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by slug: %w", err)
	}
	return o, nil
}
