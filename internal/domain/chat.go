package domain

import "time"

// ChatSession groups a user's conversation with the AI assistant.
type ChatSession struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	UserID         string    `json:"userId" db:"user_id"`
	Title          string    `json:"title" db:"title"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// ChatMessage is a single turn in a chat session. Role is "user" or
// "assistant".
type ChatMessage struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"sessionId" db:"session_id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
