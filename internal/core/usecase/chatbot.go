package usecase

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const defaultTopK = 3

type ChatBotOptions struct {
	TopK     int
	Random   ports.RandomSource
	Observer ports.ChatObserver
	Logger   *slog.Logger
}

// ChatBot routes each query to a handler and keeps the conversation
// history. It is not safe for concurrent use; see SerializedChat.
type ChatBot struct {
	classifier ports.QueryClassifier
	retriever  ports.Retriever
	calc       ports.Calculator
	detector   *SpecialtyDetector
	random     ports.RandomSource
	observer   ports.ChatObserver
	logger     *slog.Logger
	topK       int

	history []domain.ConversationTurn
}

func NewChatBot(
	classifier ports.QueryClassifier,
	retriever ports.Retriever,
	calc ports.Calculator,
	specialties []domain.Specialty,
	opts ChatBotOptions,
) *ChatBot {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.Random == nil {
		opts.Random = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &ChatBot{
		classifier: classifier,
		retriever:  retriever,
		calc:       calc,
		detector:   NewSpecialtyDetector(specialties),
		random:     opts.Random,
		observer:   opts.Observer,
		logger:     opts.Logger,
		topK:       opts.TopK,
		history:    make([]domain.ConversationTurn, 0),
	}
}

// Ask answers one query and never fails.
func (b *ChatBot) Ask(query string) string {
	return b.AskDetailed(query).Formatted
}

func (b *ChatBot) AskDetailed(query string) domain.Reply {
	started := time.Now()
	b.history = append(b.history, domain.ConversationTurn{Role: domain.RoleUser, Text: query})

	label := b.classifier.Predict(query)
	answer := b.dispatch(label, query)
	formatted := FormatAnswer(answer)

	b.history = append(b.history, domain.ConversationTurn{Role: domain.RoleAssistant, Text: formatted})

	elapsed := time.Since(started)
	if b.observer != nil {
		b.observer.ObserveTurn(label, answer.UsedRAG, len(answer.Sources), elapsed)
	}
	b.logger.Info("chat_turn",
		"label", label,
		"used_rag", answer.UsedRAG,
		"confidence", answer.Confidence,
		"sources", len(answer.Sources),
		"duration_ms", elapsed.Milliseconds(),
	)

	return domain.Reply{Answer: answer, Formatted: formatted}
}

func (b *ChatBot) dispatch(label domain.Label, query string) domain.Answer {
	switch label {
	case domain.LabelGeneralConversation:
		return domain.Answer{Label: label, Text: handleGeneral(query, b.random), Sources: []string{}}
	case domain.LabelOutOfScope:
		return domain.Answer{Label: label, Text: handleOutOfScope(query), Sources: []string{}}
	case domain.LabelCalculation:
		return domain.Answer{Label: label, Text: handleCalculation(query, b.calc), Sources: []string{}}
	default:
		return handleRAG(query, b.topK, b.detector, b.retriever)
	}
}

// History returns a copy of the turns so far.
func (b *ChatBot) History() []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, len(b.history))
	copy(out, b.history)
	return out
}

func (b *ChatBot) ClassifierMetrics() domain.ClassifierMetrics {
	return b.classifier.Metrics()
}

func (b *ChatBot) EvaluationFunctions() *Evaluator {
	return NewEvaluator(b.classifier, b.retriever)
}
