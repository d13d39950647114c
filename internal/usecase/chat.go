package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"support-agent/internal/domain"
	"support-agent/internal/logging"
)

const (
	defaultMaxContext = 20
	defaultMaxMessage = 2000
)

// ConversationStore is the append-only turn log.
type ConversationStore interface {
	AppendTurn(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Turn, error)
	GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
}

// Assistant produces one reply. Implementations own model choice and retries.
type Assistant interface {
	SendMessage(ctx context.Context, req domain.AssistantRequest) (string, error)
}

type ChatService struct {
	store           ConversationStore
	assistant       Assistant
	persona         string
	maxContextItems int
	maxMessageLen   int
}

type ChatInput struct {
	Message   string
	SessionID string
}

type ChatOutput struct {
	Response  string
	SessionID string
	// TurnID is the stored assistant turn; empty on fallback or a failed write.
	TurnID   string
	Fallback bool
}

func NewChatService(store ConversationStore, assistant Assistant, maxContextItems, maxMessageLen int) (*ChatService, error) {
	if store == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if assistant == nil {
		return nil, errors.New("usecase: assistant must not be nil")
	}
	if maxContextItems <= 0 {
		maxContextItems = defaultMaxContext
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{
		store:           store,
		assistant:       assistant,
		persona:         PersonaPrompt(),
		maxContextItems: maxContextItems,
		maxMessageLen:   maxMessageLen,
	}, nil
}

// Chat records the user turn, asks the assistant, and records the reply.
// Storage and assistant failures never fail the call: the caller always
// gets a response and a session id.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	trimmed := strings.TrimSpace(in.Message)
	if trimmed == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(trimmed) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	sessionID := ResolveSession(in.SessionID)
	log := logging.FromContext(ctx).With("session_id", sessionID)

	var history []domain.Turn
	if in.SessionID != "" {
		history = s.recentHistory(ctx, log, sessionID)
	}

	// The turn keeps the caller's text verbatim; only validation trims.
	if _, err := s.store.AppendTurn(ctx, sessionID, domain.RoleUser, in.Message); err != nil {
		log.Error("failed to record user turn; history may be incomplete", "err", err)
	}

	reply, err := s.assistant.SendMessage(ctx, domain.AssistantRequest{
		SessionID: sessionID,
		Persona:   s.persona,
		History:   historyToPromptMessages(history),
		Text:      in.Message,
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty assistant reply")
	}
	if err != nil {
		log.Warn("assistant gateway failed; returning fallback", "err", err)
		return ChatOutput{Response: FallbackMessage, SessionID: sessionID, Fallback: true}, nil
	}

	out := ChatOutput{Response: reply, SessionID: sessionID}
	turn, err := s.store.AppendTurn(ctx, sessionID, domain.RoleAssistant, reply)
	if err != nil {
		log.Error("failed to record assistant turn; history may be incomplete", "err", err)
		return out, nil
	}
	out.TurnID = turn.TurnID
	log.Info("chat response generated", "reply_len", len(reply), "context_turns", len(history))
	return out, nil
}

// History returns every turn of a session in creation order.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	if sessionID == "" {
		return nil, newError(ErrorInvalidInput, "empty_session_id", nil)
	}
	turns, err := s.store.GetHistory(ctx, sessionID, 0)
	if err != nil {
		return nil, newError(ErrorStorage, "history_read_error", err)
	}
	return turns, nil
}

func (s *ChatService) recentHistory(ctx context.Context, log *slog.Logger, sessionID string) []domain.Turn {
	turns, err := s.store.GetHistory(ctx, sessionID, s.maxContextItems)
	if err != nil {
		log.Warn("failed to load conversation context", "err", err)
		return nil
	}
	return turns
}
