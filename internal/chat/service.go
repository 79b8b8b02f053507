package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai-integration/internal/models"
)

// SessionStore loads and saves chat sessions. Saves fail with ErrConflict
// when the session changed since it was loaded.
type SessionStore interface {
	Create(ctx context.Context, chat *models.ChatSession) error
	Get(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)
	Save(ctx context.Context, chat *models.ChatSession) error
	SaveExchange(ctx context.Context, chat *models.ChatSession, turns ...models.Message) error
}

// MessageStore holds conversation history and channel messages.
type MessageStore interface {
	History(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
	Clear(ctx context.Context, chat *models.ChatSession) (int64, error)
}

// Completer runs a chat completion.
type Completer interface {
	Chat(ctx context.Context, model string, messages []models.Message) (models.Message, error)
}

// ClearResult is the outcome of clearing a session.
type ClearResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Service implements the chat procedures: completion and clearing.
type Service struct {
	sessions  SessionStore
	messages  MessageStore
	completer Completer
	logger    *zap.Logger
}

// NewService creates a Service.
func NewService(sessions SessionStore, messages MessageStore, completer Completer, logger *zap.Logger) *Service {
	return &Service{sessions: sessions, messages: messages, completer: completer, logger: logger}
}

// Complete sends msg, after the session's history, to model and returns the
// reply. It stores nothing; the caller saves the exchange.
func (s *Service) Complete(ctx context.Context, chatID uuid.UUID, model string, msg models.Message) (string, error) {
	if _, err := s.sessions.Get(ctx, chatID); err != nil {
		return "", err
	}

	history, err := s.messages.History(ctx, chatID)
	if err != nil {
		return "", err
	}
	reply, err := s.completer.Chat(ctx, model, append(history, msg))
	if err != nil {
		s.logger.Error("Chat completion failed", zap.String("chat", chatID.String()), zap.String("model", model), zap.Error(err))
		return "", err
	}
	return reply.Content, nil
}

// ClearChat empties the session's history and deletes the messages its
// channel account exchanged for it. The stored prompt and response are reset
// and the revision bumped, so a completion still running for the session
// cannot be saved afterwards.
func (s *Service) ClearChat(ctx context.Context, chatID uuid.UUID) (ClearResult, error) {
	chat, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return ClearResult{}, err
	}
	deleted, err := s.messages.Clear(ctx, chat)
	if err != nil {
		return ClearResult{}, fmt.Errorf("clear chat: %w", err)
	}

	s.logger.Info("Chat cleared", zap.String("chat", chatID.String()), zap.Int64("deleted_messages", deleted))
	return ClearResult{
		Success: true,
		Message: fmt.Sprintf("Chat cleared successfully. Number of deleted messages (%d).", deleted),
	}, nil
}

// SelectModel persists model as the session's selected model.
func (s *Service) SelectModel(ctx context.Context, chatID uuid.UUID, model string) (*models.ChatSession, error) {
	chat, err := s.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if model == "" {
		return chat, nil
	}
	chat.SelectedModel = model
	chat.Model = model
	if err := s.sessions.Save(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}
