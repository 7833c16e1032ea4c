package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/service/lead"
)

// LeadRepo implements lead.Repository against PostgreSQL.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `id, organization_id, first_name, last_name, email,
	COALESCE(phone,''), COALESCE(company,''), COALESCE(source,''),
	COALESCE(service_interest,''), estimated_value, probability, status,
	COALESCE(stage,''), assigned_to, created_at, updated_at`

func scanLead(row interface{ Scan(...interface{}) error }) (*domain.Lead, error) {
	l := &domain.Lead{}
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.FirstName, &l.LastName, &l.Email,
		&l.Phone, &l.Company, &l.Source, &l.ServiceInterest,
		&l.EstimatedValue, &l.Probability, &l.Status, &l.Stage,
		&l.AssignedTo, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *LeadRepo) Get(ctx context.Context, orgID, id string) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, lead.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepo) List(ctx context.Context, orgID string, f lead.ListFilter) ([]domain.Lead, int, error) {
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
			" AND (first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)",
			idx, idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	q := "SELECT " + leadColumns + " FROM leads " + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

func (r *LeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads
			(id, organization_id, first_name, last_name, email, phone, company,
			 source, service_interest, estimated_value, probability, status,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, l.ID, l.OrganizationID, l.FirstName, l.LastName, l.Email, l.Phone,
		l.Company, l.Source, l.ServiceInterest, l.EstimatedValue,
		l.Probability, l.Status)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return lead.ErrDuplicateEmail
		}
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

func (r *LeadRepo) Update(ctx context.Context, orgID, id string, u lead.UpdateFields) error {
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
	if u.Stage != nil {
		add("stage", *u.Stage)
	}
	if u.AssignedTo != nil {
		add("assigned_to", *u.AssignedTo)
	}
	if u.EstimatedValue != nil {
		add("estimated_value", *u.EstimatedValue)
	}
	if u.Phone != nil {
		add("phone", *u.Phone)
	}
	if u.Company != nil {
		add("company", *u.Company)
	}
	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(
		"UPDATE leads SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return lead.ErrNotFound
	}
	return nil
}

func (r *LeadRepo) ConvertToClient(ctx context.Context, orgID, id string) (*domain.Client, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin convert tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1 AND organization_id = $2
		FOR UPDATE
	`, id, orgID)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, lead.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock lead: %w", err)
	}
	if l.IsClosed() {
		return nil, lead.ErrAlreadyClosed
	}

	clientType := domain.ClientIndividual
	if l.Company != "" {
		clientType = domain.ClientBusiness
	}
	c := &domain.Client{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		FirstName:      l.FirstName,
		LastName:       l.LastName,
		Email:          l.Email,
		Phone:          l.Phone,
		Type:           clientType,
		Status:         domain.ClientActive,
		ConvertedFrom:  &l.ID,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO clients
			(id, organization_id, first_name, last_name, email, phone,
			 client_type, status, converted_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.Type, c.Status, c.ConvertedFrom)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return nil, ErrDuplicateClient
		}
		return nil, fmt.Errorf("insert client: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE leads SET status = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
	`, domain.LeadWon, id, orgID)
	if err != nil {
		return nil, fmt.Errorf("mark lead won: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit convert: %w", err)
	}
	return c, nil
}
