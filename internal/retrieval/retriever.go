// Package retrieval performs similarity search over pre-embedded document
// chunks and merges results across scopes.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/clearquote/assistant/internal/domain"
	"github.com/clearquote/assistant/internal/store"
)

// Embedder generates a vector embedding for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Result is the merged retrieval outcome for one request.
type Result struct {
	// Context groups chunks by source document, attachment scope first.
	Context []domain.DocumentContext
	// Confidence is the scope-local heuristic signal. The internal scale is
	// wider than the stored one; collapsing happens at persistence time.
	Confidence domain.ScopeConfidence
	// Degraded is set when a scope query failed and was replaced by an empty
	// result.
	Degraded bool
}

// HasContext reports whether any chunk was retrieved.
func (r *Result) HasContext() bool {
	return len(r.Context) > 0
}

// Retriever runs embedding search over the chunk index.
type Retriever struct {
	store         store.Store
	embedder      Embedder
	topK          int
	minSimilarity float64
	highThreshold float64
}

// NewRetriever creates a retriever. minSimilarity is the floor below which a
// chunk is not considered relevant at all.
func NewRetriever(st store.Store, embedder Embedder, topK int, minSimilarity float64) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{
		store:         st,
		embedder:      embedder,
		topK:          topK,
		minSimilarity: minSimilarity,
		highThreshold: 0.65,
	}
}

type scopeResult struct {
	name   string
	chunks []domain.DocumentChunk
	err    error
}

// Retrieve embeds the message once and searches the conversation-attachment
// and project-document scopes concurrently. Attachment context is primary;
// project context is appended, de-duplicated by documentId. Scope failures
// degrade to an empty scope rather than failing the request.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, message string, attachmentDocIDs []string, projectID string) (*Result, error) {
	if len(attachmentDocIDs) == 0 && projectID == "" {
		return &Result{Confidence: domain.ScopeConfidenceConversational}, nil
	}
	if isSmallTalk(message) {
		return &Result{Confidence: domain.ScopeConfidenceConversational}, nil
	}

	queryVector, err := r.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to embed message: %w", err)
	}

	results := make(chan scopeResult, 2)
	scopes := 0

	if len(attachmentDocIDs) > 0 {
		scopes++
		go func() {
			chunks, err := r.store.GetChunksForDocuments(ctx, tenantID, attachmentDocIDs)
			results <- scopeResult{name: "attachments", chunks: r.rank(queryVector, chunks), err: err}
		}()
	}
	if projectID != "" {
		scopes++
		go func() {
			chunks, err := r.store.GetChunksForProject(ctx, tenantID, projectID)
			results <- scopeResult{name: "project", chunks: r.rank(queryVector, chunks), err: err}
		}()
	}

	var attachment, project []domain.DocumentChunk
	degraded := false
	for i := 0; i < scopes; i++ {
		res := <-results
		if res.err != nil {
			log.Printf("WARN: %s scope retrieval failed, continuing without it: %v", res.name, res.err)
			degraded = true
			continue
		}
		if res.name == "attachments" {
			attachment = res.chunks
		} else {
			project = res.chunks
		}
	}

	merged := mergeScopes(attachment, project)
	return &Result{
		Context:    groupByDocument(merged),
		Confidence: r.scoreScopes(attachment, project),
		Degraded:   degraded,
	}, nil
}

// rank scores chunks against the query vector, drops those below the
// relevance floor, sorts by similarity descending, and caps to topK.
func (r *Retriever) rank(queryVector []float64, stored []store.StoredChunk) []domain.DocumentChunk {
	var scored []domain.DocumentChunk
	for _, c := range stored {
		if len(c.Embedding) == 0 {
			continue
		}
		sim := cosineSimilarity(queryVector, c.Embedding)
		if sim < r.minSimilarity {
			continue
		}
		scored = append(scored, domain.DocumentChunk{
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			Content:      c.Content,
			PageNumber:   c.PageNumber,
			Similarity:   sim,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}
	return scored
}

// mergeScopes appends project chunks after attachment chunks, dropping
// project chunks whose document already appears in the attachment scope.
func mergeScopes(attachment, project []domain.DocumentChunk) []domain.DocumentChunk {
	seen := make(map[string]bool, len(attachment))
	for _, c := range attachment {
		seen[c.DocumentID] = true
	}
	merged := append([]domain.DocumentChunk{}, attachment...)
	for _, c := range project {
		if seen[c.DocumentID] {
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

// groupByDocument groups chunks by source document preserving rank order.
func groupByDocument(chunks []domain.DocumentChunk) []domain.DocumentContext {
	var contexts []domain.DocumentContext
	index := make(map[string]int)
	for _, c := range chunks {
		i, ok := index[c.DocumentID]
		if !ok {
			index[c.DocumentID] = len(contexts)
			contexts = append(contexts, domain.DocumentContext{
				DocumentID:   c.DocumentID,
				DocumentName: c.DocumentName,
			})
			i = len(contexts) - 1
		}
		contexts[i].Chunks = append(contexts[i].Chunks, c)
	}
	return contexts
}

// scoreScopes derives the scope-local confidence signal. The attachment scope
// is authoritative when it produced anything.
func (r *Retriever) scoreScopes(attachment, project []domain.DocumentChunk) domain.ScopeConfidence {
	primary := attachment
	if len(primary) == 0 {
		primary = project
	}
	if len(primary) == 0 {
		return domain.ScopeConfidenceNotFound
	}
	if primary[0].Similarity >= r.highThreshold && len(primary) >= 2 {
		return domain.ScopeConfidenceHigh
	}
	return domain.ScopeConfidenceNeedsReview
}

// isSmallTalk reports whether the message does not warrant retrieval at all.
func isSmallTalk(message string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(message))
	trimmed = strings.Trim(trimmed, "!.?")
	switch trimmed {
	case "hello", "hi", "hey", "good morning", "good afternoon", "thanks", "thank you", "ok", "okay", "bye":
		return true
	}
	return false
}
