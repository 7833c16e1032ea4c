// Package assistant implements the AI chat assistant on Amazon Bedrock.
// Conversations are persisted per organization; responses stream back to
// the caller chunk by chunk.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

var (
	// ErrSessionNotFound is returned for unknown or cross-org sessions.
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrDisabled is returned when the assistant feature is not
	// configured.
	ErrDisabled = errors.New("assistant not configured")

	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// historyLimit bounds how many prior turns are replayed to the model.
const historyLimit = 20

const systemPrompt = `You are the Lawson Mobile Tax assistant. You help tax
preparers with client questions, filing status rules, deduction eligibility,
deadlines, and practice workflows. Answer concisely. When a question needs
facts specific to a client file you do not have, say so instead of guessing.
Never invent IRS rules or figures.`

// eventStream is the subset of the Bedrock response stream we consume.
// The SDK's concrete stream cannot be constructed outside the
// deserializer, so the seam sits here for tests.
type eventStream interface {
	Events() <-chan brtypes.ResponseStream
	Close() error
	Err() error
}

// invoker starts a streaming model invocation.
type invoker interface {
	invoke(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error)
}

type bedrockInvoker struct {
	client *bedrockruntime.Client
}

func (b *bedrockInvoker) invoke(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error) {
	out, err := b.client.InvokeModelWithResponseStream(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.GetStream(), nil
}

// Repository persists chat sessions and messages.
type Repository interface {
	CreateSession(ctx context.Context, s *domain.ChatSession) error
	GetSession(ctx context.Context, orgID, id string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, orgID, userID string) ([]domain.ChatSession, error)
	AddMessage(ctx context.Context, m *domain.ChatMessage) error
	Messages(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
}

// Service drives assistant conversations.
type Service struct {
	inv  invoker
	repo Repository
	cfg  config.AssistantConfig
}

// NewService creates the assistant service. client may be nil when the
// feature is disabled; Chat then returns ErrDisabled.
func NewService(client *bedrockruntime.Client, repo Repository, cfg config.AssistantConfig) *Service {
	var inv invoker
	if client != nil {
		inv = &bedrockInvoker{client: client}
	}
	return &Service{inv: inv, repo: repo, cfg: cfg}
}

func newServiceWithInvoker(inv invoker, repo Repository, cfg config.AssistantConfig) *Service {
	return &Service{inv: inv, repo: repo, cfg: cfg}
}

// StartSession creates a new conversation titled from the opening
// message.
func (s *Service) StartSession(ctx context.Context, orgID, userID, firstMessage string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		UserID:         userID,
		Title:          sessionTitle(firstMessage),
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func sessionTitle(msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return "New conversation"
	}
	const max = 60
	runes := []rune(msg)
	if len(runes) > max {
		return string(runes[:max]) + "…"
	}
	return msg
}

// ListSessions returns the user's conversations.
func (s *Service) ListSessions(ctx context.Context, orgID, userID string) ([]domain.ChatSession, error) {
	return s.repo.ListSessions(ctx, orgID, userID)
}

// History returns a session's messages, oldest first.
func (s *Service) History(ctx context.Context, orgID, sessionID string) ([]domain.ChatMessage, error) {
	if _, err := s.repo.GetSession(ctx, orgID, sessionID); err != nil {
		return nil, err
	}
	return s.repo.Messages(ctx, sessionID, 0)
}

// anthropicRequest is the Bedrock Anthropic messages payload.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamChunk is one event of the Anthropic streaming response.
type streamChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// Chat records the user's message, streams the model's reply through
// onChunk as it arrives, persists the full reply, and returns it.
func (s *Service) Chat(ctx context.Context, orgID, sessionID, userMessage string, onChunk func(text string)) (*domain.ChatMessage, error) {
	if s.inv == nil || !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(userMessage) == "" {
		return nil, ErrEmptyMessage
	}
	session, err := s.repo.GetSession(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.Messages(ctx, session.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      "user",
		Content:   userMessage,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	payload := anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        s.cfg.MaxTokens,
		System:           systemPrompt,
	}
	for _, m := range history {
		payload.Messages = append(payload.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	payload.Messages = append(payload.Messages, anthropicMessage{Role: "user", Content: userMessage})

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	stream, err := s.inv.invoke(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(s.cfg.ModelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke: %w", err)
	}
	defer stream.Close()

	var reply strings.Builder
	for event := range stream.Events() {
		chunk, ok := event.(*brtypes.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var sc streamChunk
		if err := json.Unmarshal(chunk.Value.Bytes, &sc); err != nil {
			logger.Error("bedrock chunk decode failed", "error", err.Error())
			continue
		}
		if sc.Type == "content_block_delta" && sc.Delta.Text != "" {
			reply.WriteString(sc.Delta.Text)
			if onChunk != nil {
				onChunk(sc.Delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("bedrock stream: %w", err)
	}

	assistantMsg := &domain.ChatMessage{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Role:      "assistant",
		Content:   reply.String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AddMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	return assistantMsg, nil
}
