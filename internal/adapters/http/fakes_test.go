package httpadapter

import (
	"context"
	"net/http"
	"testing"

	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

type chatFake struct {
	queries []string
	reply   domain.Reply
	metrics domain.ClassifierMetrics
}

func (f *chatFake) Ask(query string) string {
	return f.AskDetailed(query).Formatted
}

func (f *chatFake) AskDetailed(query string) domain.Reply {
	f.queries = append(f.queries, query)
	return f.reply
}

func (f *chatFake) History() []domain.ConversationTurn {
	turns := make([]domain.ConversationTurn, 0, len(f.queries)*2)
	for _, q := range f.queries {
		turns = append(turns,
			domain.ConversationTurn{Role: domain.RoleUser, Text: q},
			domain.ConversationTurn{Role: domain.RoleAssistant, Text: f.reply.Formatted},
		)
	}
	return turns
}

func (f *chatFake) ClassifierMetrics() domain.ClassifierMetrics { return f.metrics }

type evalFake struct {
	queries  []string
	labels   []domain.Label
	examples []domain.RetrievalExample
	hitRate  float64
}

func (f *evalFake) EvalClassifier(queries []string, labels []domain.Label) domain.ClassifierMetrics {
	f.queries = queries
	f.labels = labels
	return domain.ClassifierMetrics{Precision: 1, Recall: 1, F1: 1}
}

func (f *evalFake) EvalRetriever(examples []domain.RetrievalExample) float64 {
	f.examples = examples
	return f.hitRate
}

type retrieverFake struct {
	query    string
	topK     int
	category string
	results  []domain.RetrievalResult
}

func (f *retrieverFake) Search(query string, topK int, category string) []domain.RetrievalResult {
	f.query = query
	f.topK = topK
	f.category = category
	if len(f.results) > topK {
		return f.results[:topK]
	}
	return f.results
}

type feedbackFake struct {
	raw       string
	err       error
	items     []domain.Feedback
	listErr   error
	sessionID string
	limit     int
}

func (f *feedbackFake) List(_ context.Context, sessionID string, limit int) ([]domain.Feedback, error) {
	f.sessionID = sessionID
	f.limit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *feedbackFake) Record(_ context.Context, sessionID, query, reply, raw string) (domain.Feedback, error) {
	f.raw = raw
	if f.err != nil {
		return domain.Feedback{}, f.err
	}
	return domain.Feedback{
		ID:        "fb-1",
		SessionID: sessionID,
		Query:     query,
		Reply:     reply,
		Useful:    raw == "sim",
		Raw:       raw,
	}, nil
}

type testDeps struct {
	chat      *chatFake
	eval      *evalFake
	retriever *retrieverFake
	feedback  *feedbackFake
}

func newTestDeps() *testDeps {
	return &testDeps{
		chat: &chatFake{reply: domain.Reply{
			Answer:    domain.Answer{Label: domain.LabelCalculation, Text: "O resultado é 4."},
			Formatted: "O resultado é 4.",
		}},
		eval: &evalFake{hitRate: 0.5},
		retriever: &retrieverFake{results: []domain.RetrievalResult{
			{Title: "Direito de Arrependimento", Content: "sete dias", HybridScore: 1, TFIDFScore: 0.4},
			{Title: "Garantia Legal", Content: "noventa dias", HybridScore: 0.5, TFIDFScore: 0.2},
		}},
		feedback: &feedbackFake{},
	}
}

func newTestHandler(t *testing.T, cfg config.Config, deps *testDeps) http.Handler {
	t.Helper()
	if cfg.RAGTopK == 0 {
		cfg.RAGTopK = 3
	}
	handler, err := NewRouter(cfg, deps.chat, deps.eval, deps.retriever, deps.feedback, nil, nil).Handler()
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	return handler
}
