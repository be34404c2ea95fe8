package ports

import (
	"context"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// KnowledgeSource supplies the corpus, the classifier training set and the
// specialty keyword table.
type KnowledgeSource interface {
	LoadCorpus(ctx context.Context) (domain.Corpus, error)
	LoadTrainingSet(ctx context.Context) ([]domain.LabeledQuery, error)
	LoadSpecialties(ctx context.Context) ([]domain.Specialty, error)
}

// QueryClassifier assigns a routing label to a query.
type QueryClassifier interface {
	Predict(query string) domain.Label
	Metrics() domain.ClassifierMetrics
}

// Retriever ranks corpus documents against a query. An empty category means
// no restriction.
type Retriever interface {
	Search(query string, topK int, category string) []domain.RetrievalResult
}

// Calculator evaluates a sanitized arithmetic expression.
type Calculator interface {
	Evaluate(expr string) (float64, error)
}

// RandomSource picks greeting variants. *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

// ChatObserver is notified once per completed turn.
type ChatObserver interface {
	ObserveTurn(label domain.Label, usedRAG bool, sources int, duration time.Duration)
}

// FeedbackSink receives recorded feedback: a log, a queue or a repository.
type FeedbackSink interface {
	RecordFeedback(ctx context.Context, feedback domain.Feedback) error
}

// FeedbackReader lists stored feedback, newest last. An empty sessionID
// matches every session.
type FeedbackReader interface {
	ListFeedback(ctx context.Context, sessionID string, limit int) ([]domain.Feedback, error)
}

// FeedbackRepository persists feedback records.
type FeedbackRepository interface {
	FeedbackReader
	EnsureSchema(ctx context.Context) error
	SaveFeedback(ctx context.Context, feedback domain.Feedback) error
}

// FeedbackQueue publishes and consumes feedback events.
type FeedbackQueue interface {
	PublishFeedback(ctx context.Context, feedback domain.Feedback) error
	SubscribeFeedback(ctx context.Context, handler func(context.Context, domain.Feedback) error) error
}

// EvaluationReportWriter stores the rows of a batch evaluation run.
type EvaluationReportWriter interface {
	WriteReport(rows []domain.EvaluationRow, metrics domain.ClassifierMetrics) error
}
