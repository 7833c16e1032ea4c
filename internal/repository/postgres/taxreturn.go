package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// ReturnRepo implements tax return persistence.
type ReturnRepo struct{ db *sql.DB }

// NewReturnRepo creates a Postgres-backed tax return repository.
func NewReturnRepo(db *sql.DB) *ReturnRepo { return &ReturnRepo{db: db} }

const returnColumns = `id, organization_id, client_id, tax_year, return_type,
	status, refund_amount, balance_due, created_at, updated_at`

func scanReturn(row interface{ Scan(...interface{}) error }) (*domain.TaxReturn, error) {
	t := &domain.TaxReturn{}
	err := row.Scan(
		&t.ID, &t.OrganizationID, &t.ClientID, &t.TaxYear, &t.ReturnType,
		&t.Status, &t.RefundAmount, &t.BalanceDue, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *ReturnRepo) Get(ctx context.Context, orgID, id string) (*domain.TaxReturn, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+returnColumns+`
		FROM tax_returns
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	t, err := scanReturn(row)
	if err == sql.ErrNoRows {
		return nil, ErrReturnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tax return: %w", err)
	}
	return t, nil
}

// ReturnFilter controls tax return list pagination and filtering.
type ReturnFilter struct {
	ClientID string
	Status   string
	TaxYear  int
	Limit    int
	Offset   int
}

func (r *ReturnRepo) List(ctx context.Context, orgID string, f ReturnFilter) ([]domain.TaxReturn, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE organization_id = $1"
	args := []interface{}{orgID}
	idx := 2
	if f.ClientID != "" {
		where += fmt.Sprintf(" AND client_id = $%d", idx)
		args = append(args, f.ClientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.TaxYear != 0 {
		where += fmt.Sprintf(" AND tax_year = $%d", idx)
		args = append(args, f.TaxYear)
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tax_returns "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tax returns: %w", err)
	}

	q := "SELECT " + returnColumns + " FROM tax_returns " + where +
		fmt.Sprintf(" ORDER BY tax_year DESC, created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tax returns: %w", err)
	}
	defer rows.Close()

	var out []domain.TaxReturn
	for rows.Next() {
		t, err := scanReturn(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tax return: %w", err)
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func (r *ReturnRepo) Create(ctx context.Context, t *domain.TaxReturn) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tax_returns
			(id, organization_id, client_id, tax_year, return_type, status,
			 refund_amount, balance_due, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, t.ID, t.OrganizationID, t.ClientID, t.TaxYear, t.ReturnType, t.Status,
		t.RefundAmount, t.BalanceDue)
	if err != nil {
		return fmt.Errorf("create tax return: %w", err)
	}
	return nil
}

// ReturnUpdateFields carries the mutable tax return attributes. Status
// transitions are validated by the caller before the write.
type ReturnUpdateFields struct {
	Status       *domain.ReturnStatus
	ReturnType   *string
	RefundAmount *float64
	BalanceDue   *float64
}

func (r *ReturnRepo) Update(ctx context.Context, orgID, id string, u ReturnUpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.ReturnType != nil {
		add("return_type", *u.ReturnType)
	}
	if u.RefundAmount != nil {
		add("refund_amount", *u.RefundAmount)
	}
	if u.BalanceDue != nil {
		add("balance_due", *u.BalanceDue)
	}
	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(
		"UPDATE tax_returns SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update tax return: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrReturnNotFound
	}
	return nil
}

func (r *ReturnRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tax_returns WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete tax return: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrReturnNotFound
	}
	return nil
}
