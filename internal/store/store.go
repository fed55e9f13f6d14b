// Package store provides durable persistence for conversations, messages,
// guardrail audit events, and the document chunk index.
package store

import (
	"context"
	"time"

	"github.com/clearquote/assistant/internal/domain"
)

// StoredChunk is a chunk row with its embedding, as loaded for similarity
// search.
type StoredChunk struct {
	DocumentID   string
	DocumentName string
	Content      string
	PageNumber   int
	Embedding    []float64
}

// Store is the persistence contract consumed by the chat pipeline.
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, tenantID, ownerID string, limit int) ([]domain.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	UpdateConversationTitle(ctx context.Context, id, title string) error

	// Messages
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessages(ctx context.Context, conversationID string, limit int, before string) ([]domain.Message, error)
	CountMessages(ctx context.Context, conversationID string) (int, error)

	// Guardrail audit
	CreateGuardrailEvent(ctx context.Context, evt *domain.GuardrailEvent) error
	ListGuardrailEvents(ctx context.Context, tenantID string, limit int) ([]domain.GuardrailEvent, error)

	// Guardrail config
	GetGuardrailConfig(ctx context.Context, tenantID string) (*domain.GuardrailConfig, error)
	UpsertGuardrailConfig(ctx context.Context, tenantID string, cfg *domain.GuardrailConfig) error

	// Projects and documents (owned by the ingestion collaborator; this core
	// reads them and tests seed them)
	GetProject(ctx context.Context, tenantID, projectID string) (*domain.Project, error)
	CreateProject(ctx context.Context, p *domain.Project) error
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	InsertChunks(ctx context.Context, documentID string, chunks []StoredChunk) error
	GetChunksForDocuments(ctx context.Context, tenantID string, documentIDs []string) ([]StoredChunk, error)
	GetChunksForProject(ctx context.Context, tenantID, projectID string) ([]StoredChunk, error)

	// Preferences
	GetUserPreferences(ctx context.Context, tenantID, userID string) (*domain.UserPreferences, error)
	UpsertUserPreferences(ctx context.Context, tenantID, userID string, prefs *domain.UserPreferences) error

	Close() error
}
