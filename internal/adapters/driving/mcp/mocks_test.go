package mcp

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// mockRetriever is a mock implementation of driving.Retriever.
type mockRetriever struct {
	outcome   domain.RetrievalOutcome
	query     string
	topK      int
	threshold *float64
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, topK int, threshold *float64) domain.RetrievalOutcome {
	m.query = query
	m.topK = topK
	m.threshold = threshold
	return m.outcome
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	reply     *domain.ChatReply
	messages  []domain.Message
	err       error
	sessionID string
	question  string
}

func (m *mockChatService) Ask(_ context.Context, sessionID, query string) (*domain.ChatReply, error) {
	m.sessionID = sessionID
	m.question = query
	return m.reply, m.err
}

func (m *mockChatService) History(_ context.Context, sessionID string, _ int) ([]domain.Message, error) {
	m.sessionID = sessionID
	return m.messages, m.err
}

func (m *mockChatService) Clear(_ context.Context, _ string) error {
	return m.err
}

func (m *mockChatService) Sessions(_ context.Context) ([]domain.Session, error) {
	return nil, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	documents []domain.Document
	err       error
}

func (m *mockIngestionService) Submit(_ context.Context, _ *domain.Document, _ string) error {
	return m.err
}

func (m *mockIngestionService) Process(_ context.Context, _ *domain.Document, _ string) (int, error) {
	return 0, m.err
}

func (m *mockIngestionService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return nil, m.err
}

func (m *mockIngestionService) List(_ context.Context) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockIngestionService) Delete(_ context.Context, _ string) (int, error) {
	return 0, m.err
}

func (m *mockIngestionService) Wait() {}
