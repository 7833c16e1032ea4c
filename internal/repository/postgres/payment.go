package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/service/payment"
)

// PaymentRepo implements payment.Repository against PostgreSQL.
type PaymentRepo struct{ db *sql.DB }

// NewPaymentRepo creates a Postgres-backed payment repository.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, organization_id, client_id, tax_return_id, amount,
	fee, net_amount, currency, description, status, provider_session_id,
	mock, created_at, completed_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.ClientID, &p.TaxReturnID, &p.Amount,
		&p.Fee, &p.NetAmount, &p.Currency, &p.Description, &p.Status,
		&p.ProviderSessionID, &p.Mock, &p.CreatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments
			(id, organization_id, client_id, tax_return_id, amount, fee,
			 net_amount, currency, description, status, provider_session_id,
			 mock, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(),
			CASE WHEN $10 = 'completed' THEN NOW() ELSE NULL END)
	`, p.ID, p.OrganizationID, p.ClientID, p.TaxReturnID, p.Amount, p.Fee,
		p.NetAmount, p.Currency, p.Description, p.Status, p.ProviderSessionID,
		p.Mock)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepo) GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider_session_id = $1
	`, sessionID)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, payment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment by session: %w", err)
	}
	return p, nil
}

func (r *PaymentRepo) MarkCompleted(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = 'completed', completed_at = NOW()
		WHERE provider_session_id = $1 AND status <> 'completed'
	`, sessionID)
	if err != nil {
		return fmt.Errorf("mark payment completed: %w", err)
	}
	// Zero rows means either already completed (fine) or unknown session;
	// distinguish so unknown sessions still surface.
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM payments WHERE provider_session_id = $1)
		`, sessionID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check payment exists: %w", err)
		}
		if !exists {
			return payment.ErrNotFound
		}
	}
	return nil
}

func (r *PaymentRepo) List(ctx context.Context, orgID string, limit, offset int) ([]domain.Payment, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE organization_id = $1`, orgID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}
