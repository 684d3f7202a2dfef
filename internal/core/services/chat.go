package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// ChatService answers questions from retrieved excerpts and session history.
type ChatService struct {
	retriever    driving.Retriever
	builder      *ContextBuilder
	conversation driven.ConversationStore
	llm          driven.LLMService
	rag          domain.RAGSettings
	now          func() time.Time
}

// NewChatService creates a chat service.
// llm may be nil, in which case every reply is degraded.
func NewChatService(
	retriever driving.Retriever,
	builder *ContextBuilder,
	conversation driven.ConversationStore,
	llm driven.LLMService,
	rag domain.RAGSettings,
) *ChatService {
	if rag.GenerationTimeout <= 0 {
		rag.GenerationTimeout = domain.DefaultRAGSettings().GenerationTimeout
	}
	return &ChatService{
		retriever:    retriever,
		builder:      builder,
		conversation: conversation,
		llm:          llm,
		rag:          rag,
		now:          time.Now,
	}
}

// Ask runs one chat turn and records it in the session.
func (s *ChatService) Ask(ctx context.Context, sessionID, query string) (*domain.ChatReply, error) {
	start := s.now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	logger.Section("Chat")
	logger.Debug("Session: %s", sessionID)

	history, err := s.conversation.Get(ctx, sessionID, s.rag.MaxHistory)
	if err != nil {
		logger.Warn("load history for %s: %v", sessionID, err)
		history = nil
	}

	threshold := s.rag.SimilarityThreshold
	retrieved := s.retriever.Retrieve(ctx, query, s.rag.TopK, &threshold)

	messages, sources := s.builder.Build(query, retrieved.Results, history, s.rag.MaxHistory)

	reply := &domain.ChatReply{
		SessionID:     sessionID,
		Sources:       sources,
		RelevantCount: len(retrieved.Results),
		Retrieval:     retrieved.Reason,
	}

	gen, err := s.generate(ctx, messages)
	if err != nil {
		logger.Warn("generation for %s: %v", sessionID, err)
		reply.Content = s.builder.Fallback(retrieved.Results)
		reply.Degraded = true
	} else {
		reply.Content = gen.Content
		reply.TokenUsage = gen.TokenUsage
	}

	s.record(ctx, sessionID, domain.RoleUser, query)
	s.record(ctx, sessionID, domain.RoleAssistant, reply.Content)

	reply.ResponseTime = s.now().Sub(start)
	return reply, nil
}

func (s *ChatService) generate(ctx context.Context, messages []driven.ChatMessage) (*driven.Generation, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.rag.GenerationTimeout)
	defer cancel()

	gen, err := s.llm.Chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   s.rag.MaxTokens,
		Temperature: s.rag.Temperature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGeneration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	if gen == nil || strings.TrimSpace(gen.Content) == "" {
		return nil, fmt.Errorf("%w: empty completion", domain.ErrGeneration)
	}
	return gen, nil
}

// record appends a message, logging rather than failing on error.
func (s *ChatService) record(ctx context.Context, sessionID string, role domain.Role, content string) {
	if _, err := s.conversation.Append(ctx, sessionID, role, content); err != nil {
		logger.Error("save %s message for %s: %v", role, sessionID, err)
	}
}

// History returns a session's messages oldest first.
func (s *ChatService) History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	return s.conversation.Get(ctx, sessionID, limit)
}

// Clear deletes a session's history.
func (s *ChatService) Clear(ctx context.Context, sessionID string) error {
	return s.conversation.Clear(ctx, sessionID)
}

// Sessions lists every known session.
func (s *ChatService) Sessions(ctx context.Context) ([]domain.Session, error) {
	return s.conversation.ListSessions(ctx)
}
