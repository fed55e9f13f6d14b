package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clearquote/assistant/internal/domain"
	"github.com/clearquote/assistant/internal/store"
	"github.com/clearquote/assistant/tests/helpers"
)

// fixedEmbedder returns the same vector for every input.
type fixedEmbedder struct {
	vector []float64
	err    error
}

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

func seedDocument(t *testing.T, st store.Store, tenantID, projectID, docID, name string, chunks []store.StoredChunk) {
	t.Helper()
	ctx := context.Background()
	doc := &domain.Document{
		ID:        docID,
		TenantID:  tenantID,
		ProjectID: projectID,
		Name:      name,
		Status:    domain.DocumentStatusReady,
		CreatedAt: time.Now(),
	}
	if err := st.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := st.InsertChunks(ctx, docID, chunks); err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
}

func TestRetrieveRanksAndCaps(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)
	embedder := &fixedEmbedder{vector: []float64{1, 0, 0}}
	r := NewRetriever(st, embedder, 2, 0.3)

	seedDocument(t, st, "t1", "", "doc1", "policy.pdf", []store.StoredChunk{
		{Content: "low relevance", PageNumber: 1, Embedding: []float64{0.4, 1, 0}},
		{Content: "high relevance", PageNumber: 2, Embedding: []float64{1, 0.05, 0}},
		{Content: "mid relevance", PageNumber: 3, Embedding: []float64{1, 0.8, 0}},
		{Content: "irrelevant", PageNumber: 4, Embedding: []float64{0, 1, 0}},
	})

	res, err := r.Retrieve(context.Background(), "t1", "what is the deductible?", []string{"doc1"}, "")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Context) != 1 {
		t.Fatalf("expected 1 document context, got %d", len(res.Context))
	}
	chunks := res.Context[0].Chunks
	if len(chunks) != 2 {
		t.Fatalf("expected top-2 cap, got %d chunks", len(chunks))
	}
	if chunks[0].Content != "high relevance" {
		t.Fatalf("expected highest similarity first, got %q", chunks[0].Content)
	}
	if chunks[0].Similarity <= chunks[1].Similarity {
		t.Fatalf("chunks out of order: %v then %v", chunks[0].Similarity, chunks[1].Similarity)
	}
	if res.Confidence != domain.ScopeConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", res.Confidence)
	}
}

func TestRetrieveMergesScopesWithAttachmentPriority(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)
	embedder := &fixedEmbedder{vector: []float64{1, 0, 0}}
	r := NewRetriever(st, embedder, 5, 0.3)

	// doc1 is both attached and in the project; attachment scope must win the dedup.
	seedDocument(t, st, "t1", "p1", "doc1", "shared.pdf", []store.StoredChunk{
		{Content: "shared chunk", PageNumber: 1, Embedding: []float64{1, 0.1, 0}},
	})
	seedDocument(t, st, "t1", "p1", "doc2", "project-only.pdf", []store.StoredChunk{
		{Content: "project chunk", PageNumber: 1, Embedding: []float64{1, 0.3, 0}},
	})

	res, err := r.Retrieve(context.Background(), "t1", "coverage question", []string{"doc1"}, "p1")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Context) != 2 {
		t.Fatalf("expected 2 document contexts, got %d", len(res.Context))
	}
	if res.Context[0].DocumentID != "doc1" {
		t.Fatalf("attachment context should come first, got %s", res.Context[0].DocumentID)
	}
	if len(res.Context[0].Chunks) != 1 {
		t.Fatalf("doc1 should not gain duplicate chunks from the project scope")
	}
	if res.Context[1].DocumentID != "doc2" {
		t.Fatalf("project-only document should be appended, got %s", res.Context[1].DocumentID)
	}
}

func TestRetrieveNotFoundBelowThreshold(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)
	embedder := &fixedEmbedder{vector: []float64{1, 0, 0}}
	r := NewRetriever(st, embedder, 5, 0.5)

	seedDocument(t, st, "t1", "", "doc1", "policy.pdf", []store.StoredChunk{
		{Content: "orthogonal", PageNumber: 1, Embedding: []float64{0, 1, 0}},
	})

	res, err := r.Retrieve(context.Background(), "t1", "unrelated question", []string{"doc1"}, "")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.HasContext() {
		t.Fatalf("expected no context, got %d", len(res.Context))
	}
	if res.Confidence != domain.ScopeConfidenceNotFound {
		t.Fatalf("expected not_found, got %s", res.Confidence)
	}
}

func TestRetrieveConversational(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)
	embedder := &fixedEmbedder{err: errors.New("embedder must not be called")}
	r := NewRetriever(st, embedder, 5, 0.3)

	res, err := r.Retrieve(context.Background(), "t1", "Hello!", []string{"doc1"}, "")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Confidence != domain.ScopeConfidenceConversational {
		t.Fatalf("expected conversational, got %s", res.Confidence)
	}

	// No scopes at all is conversational too.
	res, err = r.Retrieve(context.Background(), "t1", "What is subrogation?", nil, "")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Confidence != domain.ScopeConfidenceConversational {
		t.Fatalf("expected conversational with no scopes, got %s", res.Confidence)
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	st := helpers.NewTestSQLiteStore(t)
	embedder := &fixedEmbedder{err: errors.New("embedding service down")}
	r := NewRetriever(st, embedder, 5, 0.3)

	_, err := r.Retrieve(context.Background(), "t1", "real question", []string{"doc1"}, "")
	if err == nil {
		t.Fatalf("expected an error from embed failure")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float64{1, 0}, []float64{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors should score ~1, got %v", got)
	}
	if got := cosineSimilarity([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors should score 0, got %v", got)
	}
	if got := cosineSimilarity([]float64{1, 0}, []float64{1}); got != 0 {
		t.Fatalf("mismatched lengths should score 0, got %v", got)
	}
	if got := cosineSimilarity(nil, nil); got != 0 {
		t.Fatalf("empty vectors should score 0, got %v", got)
	}
}
