// Package domain defines the core domain models for the assistant.
package domain

import "time"

// ChatRequest is the inbound body for a chat turn.
type ChatRequest struct {
	ConversationID string       `json:"conversationId,omitempty"`
	ProjectID      string       `json:"projectId,omitempty"`
	Message        string       `json:"message"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// Attachment references a document the caller attached to the conversation.
type Attachment struct {
	DocumentID string `json:"documentId"`
	Type       string `json:"type"` // "pdf" or "image"
}

// Conversation is a durable chat thread owned by one user within a tenant.
type Conversation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	OwnerID   string    `json:"ownerId"`
	ProjectID string    `json:"projectId,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one immutable turn in a conversation. Append-only ordering by
// CreatedAt defines the history.
type Message struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	TenantID       string          `json:"tenantId"`
	Role           string          `json:"role"` // "user" or "assistant"
	Content        string          `json:"content"`
	Sources        []Citation      `json:"sources,omitempty"`
	Confidence     ConfidenceLevel `json:"confidence,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Document is an ingested source document. Owned by the ingestion pipeline;
// read-only to the chat core.
type Document struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	ProjectID string    `json:"projectId,omitempty"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // "ready" once chunks are embedded
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentChunk is a pre-embedded slice of a document returned by similarity
// search.
type DocumentChunk struct {
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName"`
	Content      string  `json:"content"`
	PageNumber   int     `json:"pageNumber,omitempty"`
	Similarity   float64 `json:"embeddingSimilarity"`
}

// DocumentContext groups retrieved chunks by their source document, in rank
// order. It lives for the duration of one request.
type DocumentContext struct {
	DocumentID   string          `json:"documentId"`
	DocumentName string          `json:"documentName"`
	Chunks       []DocumentChunk `json:"chunks"`
}

// Citation is a resolved reference from generated text back to a retrieved
// document.
type Citation struct {
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	Page         int    `json:"page,omitempty"`
	Text         string `json:"text"`
	StartOffset  int    `json:"startOffset,omitempty"`
	EndOffset    int    `json:"endOffset,omitempty"`
}

// RestrictedTopic is one tenant-configured guardrail entry.
type RestrictedTopic struct {
	Trigger          string `json:"trigger"`
	RedirectGuidance string `json:"redirectGuidance"`
	Enabled          bool   `json:"enabled"`
}

// GuardrailConfig is the tenant content policy, loaded fresh per request.
type GuardrailConfig struct {
	RestrictedTopics        []RestrictedTopic `json:"restrictedTopics"`
	CustomRules             string            `json:"customRules,omitempty"` // rego module source
	RestrictedTopicsEnabled bool              `json:"restrictedTopicsEnabled"`
}

// TopicMatch is the restricted topic that fired for a message.
type TopicMatch struct {
	Trigger  string `json:"trigger"`
	Redirect string `json:"redirect"`
}

// GuardrailMatch is the per-request evaluation result. Ephemeral; a firing
// produces a durable GuardrailEvent.
type GuardrailMatch struct {
	TriggeredTopic *TopicMatch `json:"triggeredTopic,omitempty"`
	AppliedRules   []string    `json:"appliedRules,omitempty"`
}

// Triggered reports whether any policy fired for the message.
func (m GuardrailMatch) Triggered() bool {
	return m.TriggeredTopic != nil || len(m.AppliedRules) > 0
}

// GuardrailEvent is the durable audit record of a guardrail firing.
type GuardrailEvent struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	TriggeredTopic string    `json:"triggeredTopic"`
	RedirectText   string    `json:"redirectText"`
	MessageExcerpt string    `json:"originalMessageExcerpt"`
	LoggedAt       time.Time `json:"loggedAt"`
}

// RateLimitDecision is the outcome of a rate-limit check. Ephemeral.
type RateLimitDecision struct {
	Allowed bool      `json:"allowed"`
	Tier    string    `json:"tier"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"resetAt"`
}

// UserPreferences personalizes the system prompt. Absent fields are
// zero-valued and omitted from the prompt.
type UserPreferences struct {
	DisplayName        string   `json:"displayName,omitempty"`
	Role               string   `json:"role,omitempty"`
	LinesOfBusiness    []string `json:"linesOfBusiness,omitempty"`
	PreferredCarriers  []string `json:"preferredCarriers,omitempty"`
	LicensedStates     []string `json:"licensedStates,omitempty"`
	CommunicationStyle string   `json:"communicationStyle,omitempty"`
}

// Project groups documents and structured extraction context for a tenant.
type Project struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenantId"`
	Name              string    `json:"name"`
	StructuredContext string    `json:"structuredContext,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Identity is the caller resolved by the identity provider.
type Identity struct {
	UserID   string
	TenantID string
}
