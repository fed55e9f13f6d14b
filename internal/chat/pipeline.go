package chat

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/clearquote/assistant/internal/adapter/llm"
	"github.com/clearquote/assistant/internal/domain"
	"github.com/clearquote/assistant/internal/guardrail"
	"github.com/clearquote/assistant/internal/prompt"
	"github.com/clearquote/assistant/internal/ratelimit"
	"github.com/clearquote/assistant/internal/retrieval"
)

const (
	maxMessageLen    = 4000
	titleLen         = 50
	excerptLen       = 200
	historyLimit     = 50
	eventBufferSize  = 64
	minTitleMessages = 2
)

// Stream runs the pipeline for one request and returns the event channel the
// transport consumes. The channel is closed after the terminal event. If the
// caller's context is cancelled mid-stream, the upstream model call is
// cancelled and the partial assistant turn is dropped.
func (s *Service) Stream(ctx context.Context, id domain.Identity, req domain.ChatRequest) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent, eventBufferSize)
	go func() {
		defer close(events)
		s.run(ctx, id, req, events)
	}()
	return events
}

// emit delivers an event unless the client is gone.
func emit(ctx context.Context, events chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) run(ctx context.Context, id domain.Identity, req domain.ChatRequest, events chan<- domain.StreamEvent) {
	// Validating. Rejection here must precede every side effect, including the
	// rate-limit increment: malformed input never consumes quota.
	if code, msg := validate(req); code != "" {
		emit(ctx, events, domain.ErrorEvent(code, msg))
		return
	}

	// RateChecking.
	decision := s.limiter.Check(id.UserID, id.TenantID, ratelimit.DefaultTier)
	if !decision.Allowed {
		ev := domain.ErrorEvent(domain.ErrCodeRateLimitExceeded, "rate limit exceeded, retry later")
		ev.RetryAfter = retryAfterSeconds(s.now(), decision.ResetAt)
		emit(ctx, events, ev)
		return
	}

	// GuardrailEvaluating. A load failure degrades to the default snapshot the
	// loader already returned; matching never blocks the request.
	guardCfg, err := s.guardrailLoader.Load(ctx, id.TenantID)
	if err != nil {
		log.Printf("WARN: guardrail config load failed for tenant %s, using default: %v", id.TenantID, err)
	}
	match := s.matcher.Evaluate(ctx, req.Message, guardCfg)

	// ConversationResolving. A supplied id must exist and belong to the
	// caller; a missing id creates a conversation with a derived title. This
	// is the one durable write allowed before streaming begins.
	conv, code, msg := s.resolveConversation(ctx, id, req)
	if code != "" {
		emit(ctx, events, domain.ErrorEvent(code, msg))
		return
	}

	// The user message must be durable before the model call so a mid-stream
	// crash still leaves a consistent record of what was asked.
	userMsg := &domain.Message{
		ID:             "msg_" + uuid.New().String()[:8],
		ConversationID: conv.ID,
		TenantID:       id.TenantID,
		Role:           domain.RoleUser,
		Content:        req.Message,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		log.Printf("ERROR: failed to save user message: %v", err)
		emit(ctx, events, domain.ErrorEvent(domain.ErrCodeInternalError, "failed to persist message"))
		return
	}

	// Retrieving. Both scopes run concurrently inside the retriever; any
	// failure downgrades to empty context rather than failing the turn.
	var docContexts []domain.DocumentContext
	scopeConfidence := domain.ScopeConfidence("")
	attachmentIDs := make([]string, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachmentIDs = append(attachmentIDs, a.DocumentID)
	}
	projectID := req.ProjectID
	if projectID == "" {
		projectID = conv.ProjectID
	}
	result, err := s.retriever.Retrieve(ctx, id.TenantID, req.Message, attachmentIDs, projectID)
	if err != nil {
		log.Printf("WARN: retrieval failed, answering without document context: %v", err)
		result = &retrieval.Result{Degraded: true}
	} else {
		scopeConfidence = result.Confidence
	}
	docContexts = result.Context

	// PromptBuilding.
	prefs, err := s.store.GetUserPreferences(ctx, id.TenantID, id.UserID)
	if err != nil {
		log.Printf("WARN: failed to load preferences: %v", err)
		prefs = nil
	}
	structured := ""
	if projectID != "" {
		if p, err := s.store.GetProject(ctx, id.TenantID, projectID); err == nil && p != nil {
			structured = p.StructuredContext
		}
	}
	systemPrompt := prompt.Build(prefs, match, docContexts, structured)

	history, err := s.store.GetMessages(ctx, conv.ID, historyLimit, "")
	if err != nil {
		log.Printf("WARN: failed to load history: %v", err)
		history = []domain.Message{{Role: domain.RoleUser, Content: req.Message}}
	}
	llmMessages := make([]llm.ChatMessage, 0, len(history)+1)
	llmMessages = append(llmMessages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		llmMessages = append(llmMessages, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	// Streaming. Each delta is relayed as soon as it arrives; nothing is held
	// back for completeness.
	var response strings.Builder
	streamErr := s.llm.StreamComplete(ctx, &llm.ChatCompletionRequest{
		Model:    s.config.LLMModel,
		Messages: llmMessages,
	}, func(delta string) error {
		response.WriteString(delta)
		if !emit(ctx, events, domain.ChunkEvent(delta)) {
			return ctx.Err()
		}
		return nil
	})
	if streamErr != nil {
		if ctx.Err() != nil {
			// Client went away: stop the turn, drop the partial reply.
			log.Printf("INFO: client disconnected mid-stream for conversation %s", conv.ID)
			return
		}
		// Upstream failure: tokens already relayed stand, no assistant message
		// is persisted for this turn.
		log.Printf("ERROR: model stream failed: %v", streamErr)
		emit(ctx, events, domain.ErrorEvent(domain.ErrCodeUpstreamModelError, "the model failed to complete the response"))
		return
	}

	// Finalizing.
	responseText := response.String()
	citations := ExtractCitations(responseText, docContexts)
	level := CollapseConfidence(scopeConfidence, len(docContexts) > 0, citations, responseText)

	if !emit(ctx, events, domain.SourcesEvent(citations)) {
		return
	}
	if !emit(ctx, events, domain.ConfidenceEvent(level)) {
		return
	}

	assistantMsg := &domain.Message{
		ID:             "msg_" + uuid.New().String()[:8],
		ConversationID: conv.ID,
		TenantID:       id.TenantID,
		Role:           domain.RoleAssistant,
		Content:        responseText,
		Sources:        citations,
		Confidence:     level,
		CreatedAt:      s.now(),
	}
	// Persistence failures past this point are degraded-but-recoverable: the
	// client already has the generated text, so the stream still ends in done.
	if err := s.store.CreateMessage(ctx, assistantMsg); err != nil {
		log.Printf("ERROR: failed to save assistant message: %v", err)
	}
	if err := s.store.TouchConversation(ctx, conv.ID, s.now()); err != nil {
		log.Printf("ERROR: failed to touch conversation: %v", err)
	}
	if match.TriggeredTopic != nil {
		evt := &domain.GuardrailEvent{
			ID:             "evt_" + uuid.New().String()[:8],
			TenantID:       id.TenantID,
			UserID:         id.UserID,
			ConversationID: conv.ID,
			TriggeredTopic: match.TriggeredTopic.Trigger,
			RedirectText:   match.TriggeredTopic.Redirect,
			MessageExcerpt: guardrail.Excerpt(req.Message, excerptLen),
			LoggedAt:       s.now(),
		}
		if err := s.store.CreateGuardrailEvent(ctx, evt); err != nil {
			log.Printf("ERROR: failed to record guardrail event: %v", err)
		}
	}

	emit(ctx, events, domain.DoneEvent(conv.ID, assistantMsg.ID))

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.maybeRefineTitle(conv.ID, req.Message)
	}()
}

// validate applies the synchronous input checks that must run before any side
// effect. Returns an empty code when the request is well formed.
func validate(req domain.ChatRequest) (domain.ErrorCode, string) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return domain.ErrCodeValidationError, "message must not be empty"
	}
	// The limit counts characters, not bytes; multibyte text must not be
	// penalized for its encoding.
	if utf8.RuneCountInString(req.Message) > maxMessageLen {
		return domain.ErrCodeValidationError, "message exceeds the 4000 character limit"
	}
	for _, a := range req.Attachments {
		if a.DocumentID == "" {
			return domain.ErrCodeValidationError, "attachment documentId must not be empty"
		}
		if a.Type != domain.AttachmentTypePDF && a.Type != domain.AttachmentTypeImage {
			return domain.ErrCodeInvalidAttachmentType, "attachment type must be pdf or image"
		}
	}
	return "", ""
}

func (s *Service) resolveConversation(ctx context.Context, id domain.Identity, req domain.ChatRequest) (*domain.Conversation, domain.ErrorCode, string) {
	if req.ProjectID != "" {
		p, err := s.store.GetProject(ctx, id.TenantID, req.ProjectID)
		if err != nil {
			log.Printf("ERROR: failed to load project: %v", err)
			return nil, domain.ErrCodeInternalError, "failed to load project"
		}
		if p == nil {
			return nil, domain.ErrCodeProjectNotFound, "project not found"
		}
	}

	if req.ConversationID != "" {
		conv, err := s.store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			log.Printf("ERROR: failed to load conversation: %v", err)
			return nil, domain.ErrCodeInternalError, "failed to load conversation"
		}
		// A missing or foreign id always fails; it never silently creates.
		if conv == nil || conv.TenantID != id.TenantID || conv.OwnerID != id.UserID {
			return nil, domain.ErrCodeConversationNotFound, "conversation not found"
		}
		return conv, "", ""
	}

	now := s.now()
	conv := &domain.Conversation{
		ID:        "conv_" + uuid.New().String()[:8],
		TenantID:  id.TenantID,
		OwnerID:   id.UserID,
		ProjectID: req.ProjectID,
		Title:     deriveTitle(req.Message),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		log.Printf("ERROR: failed to create conversation: %v", err)
		return nil, domain.ErrCodeInternalError, "failed to create conversation"
	}
	return conv, "", ""
}

// deriveTitle takes the first 50 characters of the first message. Truncation
// happens on rune boundaries so the stored title stays valid UTF-8.
func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if r := []rune(title); len(r) > titleLen {
		title = string(r[:titleLen])
	}
	return title
}

func retryAfterSeconds(now, resetAt time.Time) int {
	secs := int(resetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
