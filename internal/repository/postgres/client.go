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

// ClientRepo implements client persistence.
type ClientRepo struct{ db *sql.DB }

// NewClientRepo creates a Postgres-backed client repository.
func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

const clientColumns = `id, organization_id, first_name, last_name, email,
	COALESCE(phone,''), client_type, status, converted_from, created_at, updated_at`

func scanClient(row interface{ Scan(...interface{}) error }) (*domain.Client, error) {
	c := &domain.Client{}
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.Email,
		&c.Phone, &c.Type, &c.Status, &c.ConvertedFrom, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ClientRepo) Get(ctx context.Context, orgID, id string) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	c, err := scanClient(row)
	if err == sql.ErrNoRows {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// ClientFilter controls client list pagination and search.
type ClientFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

func (r *ClientRepo) List(ctx context.Context, orgID string, f ClientFilter) ([]domain.Client, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE organization_id = $1"
	args := []interface{}{orgID}
	idx := 2
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(
			" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d)",
			idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clients: %w", err)
	}

	q := "SELECT " + clientColumns + " FROM clients " + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ClientRepo) Create(ctx context.Context, c *domain.Client) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients
			(id, organization_id, first_name, last_name, email, phone,
			 client_type, status, converted_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.Type, c.Status, c.ConvertedFrom)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicateClient
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// ClientUpdateFields carries the mutable client attributes.
type ClientUpdateFields struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Type      *domain.ClientType
	Status    *domain.ClientStatus
}

func (r *ClientRepo) Update(ctx context.Context, orgID, id string, u ClientUpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.FirstName != nil {
		add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		add("last_name", *u.LastName)
	}
	if u.Email != nil {
		add("email", strings.ToLower(strings.TrimSpace(*u.Email)))
	}
	if u.Phone != nil {
		add("phone", *u.Phone)
	}
	if u.Type != nil {
		add("client_type", *u.Type)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(
		"UPDATE clients SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrClientNotFound
	}
	return nil
}

func (r *ClientRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM clients WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrClientNotFound
	}
	return nil
}
