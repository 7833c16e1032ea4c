package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// DocumentRepo implements document metadata persistence. File content
// lives in the storage backend; only the key is stored here.
type DocumentRepo struct{ db *sql.DB }

// NewDocumentRepo creates a Postgres-backed document repository.
func NewDocumentRepo(db *sql.DB) *DocumentRepo { return &DocumentRepo{db: db} }

const documentColumns = `id, organization_id, client_id, file_name,
	storage_key, content_type, size_bytes, processed, extracted_data, created_at`

func scanDocument(row interface{ Scan(...interface{}) error }) (*domain.Document, error) {
	d := &domain.Document{}
	var extracted []byte
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.ClientID, &d.FileName, &d.StorageKey,
		&d.ContentType, &d.SizeBytes, &d.Processed, &extracted, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &d.ExtractedData); err != nil {
			return nil, fmt.Errorf("decode extracted data: %w", err)
		}
	}
	return d, nil
}

func (r *DocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, organization_id, client_id, file_name, storage_key,
			 content_type, size_bytes, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, NOW())
	`, d.ID, d.OrganizationID, d.ClientID, d.FileName, d.StorageKey,
		d.ContentType, d.SizeBytes)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, orgID, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// DocumentFilter controls document list pagination.
type DocumentFilter struct {
	ClientID string
	Limit    int
	Offset   int
}

func (r *DocumentRepo) List(ctx context.Context, orgID string, f DocumentFilter) ([]domain.Document, int, error) {
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

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	q := "SELECT " + documentColumns + " FROM documents " + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

// MarkProcessed stores analysis output for a document.
func (r *DocumentRepo) MarkProcessed(ctx context.Context, orgID, id string, extracted map[string]any) error {
	data, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET processed = true, extracted_data = $1
		WHERE id = $2 AND organization_id = $3
	`, data, id, orgID)
	if err != nil {
		return fmt.Errorf("mark document processed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM documents WHERE id = $1 AND organization_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
