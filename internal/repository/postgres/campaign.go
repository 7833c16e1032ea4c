package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository and campaign.AudienceLister
// against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// campaignSelect aggregates recipient engagement at read time; rates are
// derived in the domain layer, never stored.
const campaignSelect = `
	SELECT c.id, c.organization_id, c.name, c.subject,
	       COALESCE(c.from_name,''), c.from_email, c.html_content, c.status,
	       c.created_at, c.updated_at,
	       COUNT(r.id) AS recipient_count,
	       COUNT(r.opened_at) AS open_count,
	       COUNT(r.clicked_at) AS click_count
	FROM campaigns c
	LEFT JOIN campaign_recipients r ON r.campaign_id = c.id`

const campaignGroup = ` GROUP BY c.id, c.organization_id, c.name, c.subject,
	c.from_name, c.from_email, c.html_content, c.status, c.created_at, c.updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Subject, &c.FromName,
		&c.FromEmail, &c.HTMLContent, &c.Status, &c.CreatedAt, &c.UpdatedAt,
		&c.RecipientCount, &c.OpenCount, &c.ClickCount,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	row := r.db.QueryRowContext(ctx,
		campaignSelect+` WHERE c.id = $1 AND c.organization_id = $2`+campaignGroup,
		id, orgID)
	c, err := scanCampaign(row)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, orgID string) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		campaignSelect+` WHERE c.organization_id = $1`+campaignGroup+
			` ORDER BY c.created_at DESC`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, organization_id, name, subject, from_name, from_email,
			 html_content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, c.ID, c.OrganizationID, c.Name, c.Subject, c.FromName, c.FromEmail,
		c.HTMLContent, c.Status)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Update(ctx context.Context, orgID, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.FromName != nil {
		add("from_name", *u.FromName)
	}
	if u.FromEmail != nil {
		add("from_email", *u.FromEmail)
	}
	if u.HTMLContent != nil {
		add("html_content", *u.HTMLContent)
	}
	if len(sets) == 0 {
		return nil
	}

	q := fmt.Sprintf(
		"UPDATE campaigns SET %s, updated_at = NOW() WHERE id = $%d AND organization_id = $%d",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) SetStatus(ctx context.Context, orgID, id string, status domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3
	`, status, id, orgID)
	if err != nil {
		return fmt.Errorf("set campaign status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) AddRecipients(ctx context.Context, campaignID string, recipients []domain.CampaignRecipient) error {
	if len(recipients) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recipients tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"campaign_recipients", "id", "campaign_id", "email", "sent_at"))
	if err != nil {
		return fmt.Errorf("prepare recipients copy: %w", err)
	}
	for _, rec := range recipients {
		if _, err := stmt.ExecContext(ctx, rec.ID, campaignID, rec.Email, rec.SentAt); err != nil {
			stmt.Close()
			return fmt.Errorf("copy recipient: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush recipients copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close recipients copy: %w", err)
	}
	return tx.Commit()
}

func (r *CampaignRepo) Recipients(ctx context.Context, campaignID string) ([]domain.CampaignRecipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, email, sent_at, opened_at, clicked_at
		FROM campaign_recipients
		WHERE campaign_id = $1
		ORDER BY email
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignRecipient
	for rows.Next() {
		var rec domain.CampaignRecipient
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.Email,
			&rec.SentAt, &rec.OpenedAt, &rec.ClickedAt); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) MarkOpened(ctx context.Context, recipientID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients
		SET opened_at = COALESCE(opened_at, NOW())
		WHERE id = $1
	`, recipientID)
	if err != nil {
		return fmt.Errorf("mark opened: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrRecipientNotFound
	}
	return nil
}

func (r *CampaignRepo) MarkClicked(ctx context.Context, recipientID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_recipients
		SET opened_at = COALESCE(opened_at, NOW()),
		    clicked_at = COALESCE(clicked_at, NOW())
		WHERE id = $1
	`, recipientID)
	if err != nil {
		return fmt.Errorf("mark clicked: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrRecipientNotFound
	}
	return nil
}

// Audience unions lead and client emails for the organization,
// deduplicated, preferring the client record's name when both exist.
func (r *CampaignRepo) Audience(ctx context.Context, orgID string) ([]campaign.Audience, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (email) email, first_name, last_name FROM (
			SELECT email, first_name, last_name, 0 AS pref
			FROM clients WHERE organization_id = $1 AND status = 'active'
			UNION ALL
			SELECT email, first_name, last_name, 1 AS pref
			FROM leads WHERE organization_id = $1 AND status NOT IN ('LOST')
		) u
		ORDER BY email, pref
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("campaign audience: %w", err)
	}
	defer rows.Close()

	var out []campaign.Audience
	for rows.Next() {
		var a campaign.Audience
		if err := rows.Scan(&a.Email, &a.FirstName, &a.LastName); err != nil {
			return nil, fmt.Errorf("scan audience: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
