// Package hybrid ranks corpus documents by a weighted blend of tf-idf
// similarity and raw keyword overlap.
package hybrid

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/textindex"
)

const (
	TFIDFWeight   = 0.7
	KeywordWeight = 0.3
)

type indexedDocument struct {
	doc    domain.Document
	vector textindex.SparseVector
	tokens map[string]struct{}
}

// Retriever is immutable after construction and safe for concurrent Search.
type Retriever struct {
	vectorizer *textindex.Vectorizer
	docs       []indexedDocument
}

func New(corpus domain.Corpus) *Retriever {
	normalized := make([]string, len(corpus))
	for i, doc := range corpus {
		normalized[i] = textindex.Normalize(doc.Content)
	}
	vectorizer, vectors := textindex.FitTransform(normalized)

	docs := make([]indexedDocument, len(corpus))
	for i, doc := range corpus {
		docs[i] = indexedDocument{
			doc:    doc,
			vector: vectors[i],
			tokens: whitespaceTokenSet(normalized[i]),
		}
	}
	return &Retriever{vectorizer: vectorizer, docs: docs}
}

func (r *Retriever) Size() int { return len(r.docs) }

// Search returns at most topK documents in descending hybrid score. Equal
// scores keep corpus order. A non-empty category restricts eligibility to
// documents whose category matches case-insensitively.
func (r *Retriever) Search(query string, topK int, category string) []domain.RetrievalResult {
	if query == "" || topK <= 0 || len(r.docs) == 0 {
		return []domain.RetrievalResult{}
	}

	normalized := textindex.Normalize(query)
	queryVector := r.vectorizer.Transform(normalized)
	queryTokens := whitespaceTokenSet(normalized)

	tfidf := make([]float64, len(r.docs))
	keyword := make([]float64, len(r.docs))
	for i, d := range r.docs {
		tfidf[i] = d.vector.Dot(queryVector)
		keyword[i] = float64(overlap(queryTokens, d.tokens))
	}
	rescaleByMax(keyword)
	rescaleByMax(tfidf)

	hybrid := make([]float64, len(r.docs))
	for i := range r.docs {
		hybrid[i] = TFIDFWeight*tfidf[i] + KeywordWeight*keyword[i]
	}
	if category != "" {
		for i, d := range r.docs {
			if !strings.EqualFold(d.doc.Category, category) {
				hybrid[i] = math.Inf(-1)
			}
		}
	}

	order := make([]int, len(r.docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return hybrid[order[a]] > hybrid[order[b]]
	})
	if len(order) > topK {
		order = order[:topK]
	}

	out := make([]domain.RetrievalResult, 0, len(order))
	for _, idx := range order {
		if math.IsInf(hybrid[idx], -1) {
			continue
		}
		d := r.docs[idx].doc
		out = append(out, domain.RetrievalResult{
			Title:       d.Title,
			Content:     d.Content,
			HybridScore: hybrid[idx],
			TFIDFScore:  tfidf[idx],
		})
	}
	return out
}

func rescaleByMax(scores []float64) {
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore <= 0 {
		return
	}
	for i := range scores {
		scores[i] /= maxScore
	}
}

func whitespaceTokenSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func overlap(query, doc map[string]struct{}) int {
	n := 0
	for token := range query {
		if _, ok := doc[token]; ok {
			n++
		}
	}
	return n
}
