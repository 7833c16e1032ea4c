package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// StatsRepo computes dashboard and analytics aggregates. Each metric is
// its own query so the API layer can fan them out concurrently.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed stats repository.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// LeadCounts holds lead volume metrics.
type LeadCounts struct {
	Total        int `json:"total"`
	NewThisMonth int `json:"newThisMonth"`
	Won          int `json:"won"`
}

func (r *StatsRepo) LeadCounts(ctx context.Context, orgID string) (*LeadCounts, error) {
	c := &LeadCounts{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= date_trunc('month', NOW())),
		       COUNT(*) FILTER (WHERE status = 'WON')
		FROM leads
		WHERE organization_id = $1
	`, orgID).Scan(&c.Total, &c.NewThisMonth, &c.Won)
	if err != nil {
		return nil, fmt.Errorf("lead counts: %w", err)
	}
	return c, nil
}

func (r *StatsRepo) ClientCount(ctx context.Context, orgID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM clients WHERE organization_id = $1 AND status = 'active'
	`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("client count: %w", err)
	}
	return n, nil
}

func (r *StatsRepo) ReturnStatusCounts(ctx context.Context, orgID string) (map[domain.ReturnStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM tax_returns
		WHERE organization_id = $1
		GROUP BY status
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("return status counts: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ReturnStatus]int)
	for rows.Next() {
		var status domain.ReturnStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan return count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

// RevenueTotals holds settled and outstanding payment sums.
type RevenueTotals struct {
	Completed float64 `json:"completed"`
	Pending   float64 `json:"pending"`
	Net       float64 `json:"net"`
}

func (r *StatsRepo) Revenue(ctx context.Context, orgID string) (*RevenueTotals, error) {
	t := &RevenueTotals{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
		       COALESCE(SUM(net_amount) FILTER (WHERE status = 'completed'), 0)
		FROM payments
		WHERE organization_id = $1
	`, orgID).Scan(&t.Completed, &t.Pending, &t.Net)
	if err != nil {
		return nil, fmt.Errorf("revenue totals: %w", err)
	}
	return t, nil
}

// PipelineValue sums the estimated value of open leads.
func (r *StatsRepo) PipelineValue(ctx context.Context, orgID string) (float64, error) {
	var v float64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(estimated_value), 0)
		FROM leads
		WHERE organization_id = $1 AND status NOT IN ('WON', 'LOST')
	`, orgID).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("pipeline value: %w", err)
	}
	return v, nil
}

// MonthlyRevenue is one month of settled revenue.
type MonthlyRevenue struct {
	Month   time.Time `json:"month"`
	Revenue float64   `json:"revenue"`
}

func (r *StatsRepo) MonthlyRevenue(ctx context.Context, orgID string, months int) ([]MonthlyRevenue, error) {
	if months <= 0 {
		months = 12
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT date_trunc('month', completed_at) AS month, SUM(amount)
		FROM payments
		WHERE organization_id = $1 AND status = 'completed'
		  AND completed_at >= date_trunc('month', NOW()) - ($2 || ' months')::interval
		GROUP BY month
		ORDER BY month
	`, orgID, months)
	if err != nil {
		return nil, fmt.Errorf("monthly revenue: %w", err)
	}
	defer rows.Close()

	var out []MonthlyRevenue
	for rows.Next() {
		var m MonthlyRevenue
		if err := rows.Scan(&m.Month, &m.Revenue); err != nil {
			return nil, fmt.Errorf("scan monthly revenue: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SourceCount is lead volume attributed to one acquisition source.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Won    int    `json:"won"`
}

func (r *StatsRepo) LeadSources(ctx context.Context, orgID string) ([]SourceCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(NULLIF(source, ''), 'unknown'),
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'WON')
		FROM leads
		WHERE organization_id = $1
		GROUP BY 1
		ORDER BY 2 DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("lead sources: %w", err)
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var s SourceCount
		if err := rows.Scan(&s.Source, &s.Count, &s.Won); err != nil {
			return nil, fmt.Errorf("scan lead source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *StatsRepo) RecentLeads(ctx context.Context, orgID string, n int) ([]domain.Lead, error) {
	if n <= 0 {
		n = 5
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orgID, n)
	if err != nil {
		return nil, fmt.Errorf("recent leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *StatsRepo) RecentPayments(ctx context.Context, orgID string, n int) ([]domain.Payment, error) {
	if n <= 0 {
		n = 5
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orgID, n)
	if err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent payment: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CampaignPerformance is one campaign's delivery and engagement totals.
type CampaignPerformance struct {
	CampaignID string  `json:"campaignId"`
	Name       string  `json:"name"`
	Sent       int     `json:"sent"`
	Opened     int     `json:"opened"`
	Clicked    int     `json:"clicked"`
	OpenRate   float64 `json:"openRate"`
	ClickRate  float64 `json:"clickRate"`
}

func (r *StatsRepo) CampaignPerformance(ctx context.Context, orgID string) ([]CampaignPerformance, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name,
		       COUNT(r.id) FILTER (WHERE r.sent_at IS NOT NULL),
		       COUNT(r.id) FILTER (WHERE r.opened_at IS NOT NULL),
		       COUNT(r.id) FILTER (WHERE r.clicked_at IS NOT NULL)
		FROM campaigns c
		LEFT JOIN campaign_recipients r ON r.campaign_id = c.id
		WHERE c.organization_id = $1
		GROUP BY c.id, c.name
		ORDER BY c.created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("campaign performance: %w", err)
	}
	defer rows.Close()

	var out []CampaignPerformance
	for rows.Next() {
		var p CampaignPerformance
		if err := rows.Scan(&p.CampaignID, &p.Name, &p.Sent, &p.Opened, &p.Clicked); err != nil {
			return nil, fmt.Errorf("scan campaign performance: %w", err)
		}
		if p.Sent > 0 {
			p.OpenRate = float64(p.Opened) / float64(p.Sent) * 100
			p.ClickRate = float64(p.Clicked) / float64(p.Sent) * 100
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
