package usecase

import (
	"sync"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// SerializedChat lets several callers share one ChatBot.
type SerializedChat struct {
	mu  sync.Mutex
	bot *ChatBot
}

func NewSerializedChat(bot *ChatBot) *SerializedChat {
	return &SerializedChat{bot: bot}
}

func (s *SerializedChat) Ask(query string) string {
	return s.AskDetailed(query).Formatted
}

func (s *SerializedChat) AskDetailed(query string) domain.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bot.AskDetailed(query)
}

func (s *SerializedChat) History() []domain.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bot.History()
}

// ClassifierMetrics reads immutable state and takes no lock.
func (s *SerializedChat) ClassifierMetrics() domain.ClassifierMetrics {
	return s.bot.ClassifierMetrics()
}

func (s *SerializedChat) EvaluationFunctions() *Evaluator {
	return s.bot.EvaluationFunctions()
}
