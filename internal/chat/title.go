package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/clearquote/assistant/internal/adapter/llm"
)

const titleTimeout = 15 * time.Second

// maybeRefineTitle replaces the derived title with a short model-generated one
// after the first full exchange. Best effort: any failure keeps the derived
// title.
func (s *Service) maybeRefineTitle(conversationID, firstMessage string) {
	ctx, cancel := context.WithTimeout(context.Background(), titleTimeout)
	defer cancel()

	n, err := s.store.CountMessages(ctx, conversationID)
	if err != nil || n != minTitleMessages {
		return
	}

	title, err := s.llm.Complete(ctx, &llm.ChatCompletionRequest{
		Model: s.config.LLMModel,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: "Generate a short title (at most 6 words) for a conversation that starts with the user message below. Reply with the title only."},
			{Role: "user", Content: firstMessage},
		},
	})
	if err != nil {
		log.Printf("WARN: title generation failed for %s: %v", conversationID, err)
		return
	}

	title = strings.Trim(strings.TrimSpace(title), `"'`)
	title = strings.ReplaceAll(title, "\n", " ")
	if title == "" || len(title) > 100 {
		return
	}

	if err := s.store.UpdateConversationTitle(ctx, conversationID, title); err != nil {
		log.Printf("WARN: failed to update conversation title: %v", err)
		return
	}
	log.Printf("INFO: conversation %s titled %s", conversationID, fmt.Sprintf("%q", title))
}
