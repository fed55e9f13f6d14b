// Package chat drives the retrieval-augmented, guardrail-enforced streaming
// chat pipeline: one inbound message in, one ordered event stream out.
package chat

import (
	"sync"
	"time"

	"github.com/clearquote/assistant/internal/adapter/llm"
	"github.com/clearquote/assistant/internal/config"
	"github.com/clearquote/assistant/internal/guardrail"
	"github.com/clearquote/assistant/internal/ratelimit"
	"github.com/clearquote/assistant/internal/retrieval"
	"github.com/clearquote/assistant/internal/store"
)

// Service coordinates the chat pipeline stages. All collaborators are
// injected; no stage reaches for package-level state.
type Service struct {
	store           store.Store
	limiter         *ratelimit.Limiter
	matcher         *guardrail.Matcher
	guardrailLoader guardrail.Loader
	retriever       *retrieval.Retriever
	llm             llm.LLMClient
	config          *config.Config
	now             func() time.Time

	// background tracks fire-and-forget work (title refinement) so tests and
	// shutdown can wait for it.
	background sync.WaitGroup
}

// Wait blocks until all background work spawned by finished streams is done.
func (s *Service) Wait() {
	s.background.Wait()
}

// New creates a chat service.
func New(st store.Store, limiter *ratelimit.Limiter, matcher *guardrail.Matcher, loader guardrail.Loader, retriever *retrieval.Retriever, llmClient llm.LLMClient, cfg *config.Config) *Service {
	return &Service{
		store:           st,
		limiter:         limiter,
		matcher:         matcher,
		guardrailLoader: loader,
		retriever:       retriever,
		llm:             llmClient,
		config:          cfg,
		now:             time.Now,
	}
}
