package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clearquote/assistant/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			project_id TEXT,
			title TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(tenant_id, owner_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sources TEXT,
			confidence TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS guardrail_events (
			event_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			conversation_id TEXT,
			triggered_topic TEXT NOT NULL,
			redirect_text TEXT,
			message_excerpt TEXT,
			logged_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guardrail_events_tenant ON guardrail_events(tenant_id, logged_at)`,
		`CREATE TABLE IF NOT EXISTS guardrail_configs (
			tenant_id TEXT PRIMARY KEY,
			config TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			structured_context TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			document_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			project_id TEXT,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'processing',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(tenant_id, project_id)`,
		`CREATE TABLE IF NOT EXISTS document_chunks (
			chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL,
			page_number INTEGER,
			embedding TEXT,
			FOREIGN KEY (document_id) REFERENCES documents(document_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document_id)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			tenant_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			prefs TEXT NOT NULL,
			PRIMARY KEY (tenant_id, user_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation creates a new conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, tenant_id, owner_id, project_id, title, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.TenantID, conv.OwnerID, nullable(conv.ProjectID), conv.Title, conv.CreatedAt, conv.UpdatedAt)
	return err
}

// GetConversation retrieves a conversation by ID. Returns nil if not found.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var projectID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, tenant_id, owner_id, project_id, title, created_at, updated_at
		 FROM conversations WHERE conversation_id = ?`, id).
		Scan(&conv.ID, &conv.TenantID, &conv.OwnerID, &projectID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	conv.ProjectID = projectID.String
	return &conv, nil
}

// ListConversations lists conversations for an owner, most recent first.
func (s *SQLiteStore) ListConversations(ctx context.Context, tenantID, ownerID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, tenant_id, owner_id, project_id, title, created_at, updated_at
		 FROM conversations WHERE tenant_id = ? AND owner_id = ?
		 ORDER BY updated_at DESC LIMIT ?`, tenantID, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		var projectID sql.NullString
		if err := rows.Scan(&conv.ID, &conv.TenantID, &conv.OwnerID, &projectID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		conv.ProjectID = projectID.String
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// TouchConversation bumps updated_at.
func (s *SQLiteStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE conversation_id = ?`, at, id)
	return err
}

// UpdateConversationTitle replaces the conversation title.
func (s *SQLiteStore) UpdateConversationTitle(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE conversation_id = ?`, title, id)
	return err
}

// CreateMessage appends a message to a conversation.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	var sources sql.NullString
	if len(msg.Sources) > 0 {
		b, err := json.Marshal(msg.Sources)
		if err != nil {
			return fmt.Errorf("failed to marshal sources: %w", err)
		}
		sources = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, conversation_id, tenant_id, role, content, sources, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.TenantID, msg.Role, msg.Content, sources,
		nullable(string(msg.Confidence)), msg.CreatedAt)
	return err
}

// GetMessages retrieves the newest messages for a conversation, returned in
// ascending created_at order. The window must anchor at the newest row so a
// long conversation never pushes the latest turns out of the model history.
// If before is a message ID, only messages older than it are considered.
func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string, limit int, before string) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT message_id, conversation_id, tenant_id, role, content, sources, confidence, created_at
		 FROM messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}
	if before != "" {
		query += ` AND created_at < (SELECT created_at FROM messages WHERE message_id = ?)`
		args = append(args, before)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var msg domain.Message
		var sources, confidence sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.TenantID, &msg.Role, &msg.Content, &sources, &confidence, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if sources.Valid && sources.String != "" {
			if err := json.Unmarshal([]byte(sources.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources for %s: %w", msg.ID, err)
			}
		}
		msg.Confidence = domain.ConfidenceLevel(confidence.String)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// The query walks newest-first; callers get chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountMessages counts messages in a conversation.
func (s *SQLiteStore) CountMessages(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	return n, err
}

// CreateGuardrailEvent appends a guardrail audit event.
func (s *SQLiteStore) CreateGuardrailEvent(ctx context.Context, evt *domain.GuardrailEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guardrail_events (event_id, tenant_id, user_id, conversation_id, triggered_topic, redirect_text, message_excerpt, logged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.TenantID, evt.UserID, nullable(evt.ConversationID), evt.TriggeredTopic,
		evt.RedirectText, evt.MessageExcerpt, evt.LoggedAt)
	return err
}

// ListGuardrailEvents lists audit events for a tenant, newest first.
func (s *SQLiteStore) ListGuardrailEvents(ctx context.Context, tenantID string, limit int) ([]domain.GuardrailEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, tenant_id, user_id, conversation_id, triggered_topic, redirect_text, message_excerpt, logged_at
		 FROM guardrail_events WHERE tenant_id = ? ORDER BY logged_at DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.GuardrailEvent
	for rows.Next() {
		var evt domain.GuardrailEvent
		var convID sql.NullString
		if err := rows.Scan(&evt.ID, &evt.TenantID, &evt.UserID, &convID, &evt.TriggeredTopic, &evt.RedirectText, &evt.MessageExcerpt, &evt.LoggedAt); err != nil {
			return nil, err
		}
		evt.ConversationID = convID.String
		events = append(events, evt)
	}
	return events, rows.Err()
}

// GetGuardrailConfig loads the tenant guardrail config. Returns nil if the
// tenant has none.
func (s *SQLiteStore) GetGuardrailConfig(ctx context.Context, tenantID string) (*domain.GuardrailConfig, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT config FROM guardrail_configs WHERE tenant_id = ?`, tenantID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg domain.GuardrailConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guardrail config: %w", err)
	}
	return &cfg, nil
}

// UpsertGuardrailConfig stores the tenant guardrail config.
func (s *SQLiteStore) UpsertGuardrailConfig(ctx context.Context, tenantID string, cfg *domain.GuardrailConfig) error {
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal guardrail config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO guardrail_configs (tenant_id, config) VALUES (?, ?)
		 ON CONFLICT(tenant_id) DO UPDATE SET config = excluded.config`,
		tenantID, string(b))
	return err
}

// GetProject retrieves a project scoped to a tenant. Returns nil if not found.
func (s *SQLiteStore) GetProject(ctx context.Context, tenantID, projectID string) (*domain.Project, error) {
	var p domain.Project
	var structured sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, tenant_id, name, structured_context, created_at
		 FROM projects WHERE project_id = ? AND tenant_id = ?`, projectID, tenantID).
		Scan(&p.ID, &p.TenantID, &p.Name, &structured, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.StructuredContext = structured.String
	return &p, nil
}

// CreateProject creates a project.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *domain.Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (project_id, tenant_id, name, structured_context, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.Name, nullable(p.StructuredContext), p.CreatedAt)
	return err
}

// CreateDocument creates a document record.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (document_id, tenant_id, project_id, name, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.TenantID, nullable(doc.ProjectID), doc.Name, doc.Status, doc.CreatedAt)
	return err
}

// GetDocument retrieves a document by ID. Returns nil if not found.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	var projectID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, tenant_id, project_id, name, status, created_at
		 FROM documents WHERE document_id = ?`, id).
		Scan(&doc.ID, &doc.TenantID, &projectID, &doc.Name, &doc.Status, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.ProjectID = projectID.String
	return &doc, nil
}

// InsertChunks stores embedded chunks for a document.
func (s *SQLiteStore) InsertChunks(ctx context.Context, documentID string, chunks []StoredChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range chunks {
		embedding, err := json.Marshal(c.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_chunks (document_id, content, page_number, embedding) VALUES (?, ?, ?, ?)`,
			documentID, c.Content, c.PageNumber, string(embedding)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksForDocuments loads embedded chunks for the given ready documents,
// tenant scoped.
func (s *SQLiteStore) GetChunksForDocuments(ctx context.Context, tenantID string, documentIDs []string) ([]StoredChunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(documentIDs)), ",")
	args := []interface{}{tenantID}
	for _, id := range documentIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(
		`SELECT c.document_id, d.name, c.content, c.page_number, c.embedding
		 FROM document_chunks c
		 JOIN documents d ON d.document_id = c.document_id
		 WHERE d.tenant_id = ? AND d.status = 'ready' AND c.document_id IN (%s)`, placeholders)
	return s.queryChunks(ctx, query, args...)
}

// GetChunksForProject loads embedded chunks for all ready documents in a
// project.
func (s *SQLiteStore) GetChunksForProject(ctx context.Context, tenantID, projectID string) ([]StoredChunk, error) {
	return s.queryChunks(ctx,
		`SELECT c.document_id, d.name, c.content, c.page_number, c.embedding
		 FROM document_chunks c
		 JOIN documents d ON d.document_id = c.document_id
		 WHERE d.tenant_id = ? AND d.project_id = ? AND d.status = 'ready'`,
		tenantID, projectID)
}

func (s *SQLiteStore) queryChunks(ctx context.Context, query string, args ...interface{}) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []StoredChunk
	for rows.Next() {
		var c StoredChunk
		var page sql.NullInt64
		var embedding sql.NullString
		if err := rows.Scan(&c.DocumentID, &c.DocumentName, &c.Content, &page, &embedding); err != nil {
			return nil, err
		}
		c.PageNumber = int(page.Int64)
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &c.Embedding); err != nil {
				// A chunk with a corrupt embedding is skipped, not fatal.
				continue
			}
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetUserPreferences loads preferences. Returns nil if the user has none.
func (s *SQLiteStore) GetUserPreferences(ctx context.Context, tenantID, userID string) (*domain.UserPreferences, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT prefs FROM user_preferences WHERE tenant_id = ? AND user_id = ?`, tenantID, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var prefs domain.UserPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	return &prefs, nil
}

// UpsertUserPreferences stores preferences.
func (s *SQLiteStore) UpsertUserPreferences(ctx context.Context, tenantID, userID string, prefs *domain.UserPreferences) error {
	b, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (tenant_id, user_id, prefs) VALUES (?, ?, ?)
		 ON CONFLICT(tenant_id, user_id) DO UPDATE SET prefs = excluded.prefs`,
		tenantID, userID, string(b))
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
