package usecase

import (
	"slices"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const evalRetrieverTopK = 3

// Evaluator scores the classifier and retriever on caller-supplied data.
type Evaluator struct {
	classifier ports.QueryClassifier
	retriever  ports.Retriever
}

func NewEvaluator(classifier ports.QueryClassifier, retriever ports.Retriever) *Evaluator {
	return &Evaluator{classifier: classifier, retriever: retriever}
}

// EvalClassifier compares predictions with labels pairwise. Extra entries on
// either side are ignored.
func (e *Evaluator) EvalClassifier(queries []string, labels []domain.Label) domain.ClassifierMetrics {
	n := min(len(queries), len(labels))
	predicted := make([]domain.Label, n)
	for i := 0; i < n; i++ {
		predicted[i] = e.classifier.Predict(queries[i])
	}
	return domain.WeightedScores(labels[:n], predicted)
}

// EvalRetriever is the share of examples with at least one expected title in
// the unfiltered top three.
func (e *Evaluator) EvalRetriever(examples []domain.RetrievalExample) float64 {
	if len(examples) == 0 {
		return 0
	}
	hits := 0
	for _, ex := range examples {
		results := e.retriever.Search(ex.Query, evalRetrieverTopK, "")
		titles := make([]string, 0, len(results))
		for _, r := range results {
			titles = append(titles, r.Title)
		}
		for _, want := range ex.ExpectedTitles {
			if slices.Contains(titles, want) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(examples))
}
