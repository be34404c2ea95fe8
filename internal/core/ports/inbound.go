package ports

import (
	"context"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// ChatService is the inbound contract of the conversational assistant.
type ChatService interface {
	Ask(query string) string
	AskDetailed(query string) domain.Reply
	History() []domain.ConversationTurn
	ClassifierMetrics() domain.ClassifierMetrics
}

// EvaluationService scores the classifier and retriever against caller data.
type EvaluationService interface {
	EvalClassifier(queries []string, labels []domain.Label) domain.ClassifierMetrics
	EvalRetriever(examples []domain.RetrievalExample) float64
}

// FeedbackService turns a raw usefulness answer into a stored feedback record.
type FeedbackService interface {
	Record(ctx context.Context, sessionID, query, reply, raw string) (domain.Feedback, error)
	List(ctx context.Context, sessionID string, limit int) ([]domain.Feedback, error)
}
