package chat

import (
	"regexp"
	"strconv"

	"github.com/clearquote/assistant/internal/domain"
)

// citation markers follow the convention the prompt instructs the model to
// use: [doc:<documentId> p.<page>], page optional.
var citationMarker = regexp.MustCompile(`\[doc:([A-Za-z0-9_-]+)(?: p\.(\d+))?\]`)

// ExtractCitations scans the generated text for citation markers and resolves
// each against the retrieved context. Markers referencing documents that were
// not retrieved are dropped: the model may hallucinate a marker, and only real
// retrieved chunks become citations. Duplicate (document, page) markers
// collapse to the first occurrence.
func ExtractCitations(responseText string, contexts []domain.DocumentContext) []domain.Citation {
	if len(contexts) == 0 {
		return nil
	}

	byID := make(map[string]domain.DocumentContext, len(contexts))
	for _, dc := range contexts {
		byID[dc.DocumentID] = dc
	}

	type key struct {
		doc  string
		page int
	}
	seen := make(map[key]bool)

	var citations []domain.Citation
	for _, m := range citationMarker.FindAllStringSubmatchIndex(responseText, -1) {
		docID := responseText[m[2]:m[3]]
		dc, ok := byID[docID]
		if !ok {
			continue
		}

		page := 0
		if m[4] >= 0 {
			page, _ = strconv.Atoi(responseText[m[4]:m[5]])
		}
		k := key{doc: docID, page: page}
		if seen[k] {
			continue
		}
		seen[k] = true

		citations = append(citations, domain.Citation{
			DocumentID:   docID,
			DocumentName: dc.DocumentName,
			Page:         page,
			Text:         snippetFor(dc, page),
			StartOffset:  m[0],
			EndOffset:    m[1],
		})
	}
	return citations
}

// snippetFor picks the retrieved chunk text the marker points at: the
// best-ranked chunk on the cited page, or the document's best chunk when the
// page does not match.
func snippetFor(dc domain.DocumentContext, page int) string {
	for _, c := range dc.Chunks {
		if c.PageNumber == page {
			return truncateSnippet(c.Content)
		}
	}
	if len(dc.Chunks) > 0 {
		return truncateSnippet(dc.Chunks[0].Content)
	}
	return ""
}

func truncateSnippet(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "..."
}
