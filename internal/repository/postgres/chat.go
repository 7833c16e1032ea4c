package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/assistant"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// ChatRepo implements assistant.Repository against PostgreSQL.
type ChatRepo struct{ db *sql.DB }

// NewChatRepo creates a Postgres-backed chat repository.
func NewChatRepo(db *sql.DB) *ChatRepo { return &ChatRepo{db: db} }

func (r *ChatRepo) CreateSession(ctx context.Context, s *domain.ChatSession) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, organization_id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, s.ID, s.OrganizationID, s.UserID, s.Title)
	if err != nil {
		return fmt.Errorf("create chat session: %w", err)
	}
	return nil
}

func (r *ChatRepo) GetSession(ctx context.Context, orgID, id string) (*domain.ChatSession, error) {
	s := &domain.ChatSession{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, user_id, title, created_at
		FROM chat_sessions
		WHERE id = $1 AND organization_id = $2
	`, id, orgID).Scan(&s.ID, &s.OrganizationID, &s.UserID, &s.Title, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, assistant.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat session: %w", err)
	}
	return s, nil
}

func (r *ChatRepo) ListSessions(ctx context.Context, orgID, userID string) ([]domain.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, user_id, title, created_at
		FROM chat_sessions
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY created_at DESC
	`, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatSession
	for rows.Next() {
		var s domain.ChatSession
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.UserID, &s.Title, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ChatRepo) AddMessage(ctx context.Context, m *domain.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, m.ID, m.SessionID, m.Role, m.Content)
	if err != nil {
		return fmt.Errorf("add chat message: %w", err)
	}
	return nil
}

// Messages returns a session's messages oldest first. A positive limit
// keeps only the most recent turns.
func (r *ChatRepo) Messages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	q := `
		SELECT id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC`
	args := []interface{}{sessionID}
	if limit > 0 {
		q = `
		SELECT id, session_id, role, content, created_at FROM (
			SELECT id, session_id, role, content, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
