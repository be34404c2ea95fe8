package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

var usefulAnswers = map[string]bool{
	"sim": true, "s": true, "yes": true, "y": true, "útil": true, "util": true,
}

// ParseUseful reports whether a free-form answer to "Essa resposta foi útil?"
// is affirmative.
func ParseUseful(raw string) bool {
	return usefulAnswers[strings.TrimSpace(strings.ToLower(raw))]
}

const (
	DefaultFeedbackListLimit = 50
	MaxFeedbackListLimit     = 500
)

type FeedbackUseCase struct {
	sink   ports.FeedbackSink
	reader ports.FeedbackReader
	logger *slog.Logger
	now    func() time.Time
}

func NewFeedbackUseCase(sink ports.FeedbackSink, logger *slog.Logger) *FeedbackUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackUseCase{sink: sink, logger: logger, now: time.Now}
}

func (uc *FeedbackUseCase) Record(ctx context.Context, sessionID, query, reply, raw string) (domain.Feedback, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return domain.Feedback{}, domain.WrapError(domain.ErrInvalidInput, "record feedback", fmt.Errorf("answer is required"))
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}

	fb := domain.Feedback{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Query:     query,
		Reply:     reply,
		Useful:    ParseUseful(raw),
		Raw:       raw,
		CreatedAt: uc.now().UTC(),
	}
	if err := uc.sink.RecordFeedback(ctx, fb); err != nil {
		return domain.Feedback{}, fmt.Errorf("record feedback: %w", err)
	}
	uc.logger.Info("feedback_recorded", "feedback_id", fb.ID, "session_id", fb.SessionID, "useful", fb.Useful)
	return fb, nil
}

// WithReader enables List. Sinks that only forward feedback (log, queue)
// leave it unset.
func (uc *FeedbackUseCase) WithReader(reader ports.FeedbackReader) *FeedbackUseCase {
	uc.reader = reader
	return uc
}

// List returns stored feedback of a session, or of every session when
// sessionID is empty. A non-positive limit means DefaultFeedbackListLimit.
func (uc *FeedbackUseCase) List(ctx context.Context, sessionID string, limit int) ([]domain.Feedback, error) {
	if uc.reader == nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "list feedback", fmt.Errorf("feedback sink is write-only"))
	}
	switch {
	case limit <= 0:
		limit = DefaultFeedbackListLimit
	case limit > MaxFeedbackListLimit:
		limit = MaxFeedbackListLimit
	}

	items, err := uc.reader.ListFeedback(ctx, strings.TrimSpace(sessionID), limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if items == nil {
		items = []domain.Feedback{}
	}
	return items, nil
}

// LogFeedbackSink only writes feedback to the log.
type LogFeedbackSink struct {
	logger *slog.Logger
}

func NewLogFeedbackSink(logger *slog.Logger) *LogFeedbackSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogFeedbackSink{logger: logger}
}

func (s *LogFeedbackSink) RecordFeedback(_ context.Context, fb domain.Feedback) error {
	s.logger.Info("feedback", "feedback_id", fb.ID, "session_id", fb.SessionID, "useful", fb.Useful, "raw", fb.Raw)
	return nil
}

// PersistFeedbackUseCase stores feedback events consumed by the worker.
type PersistFeedbackUseCase struct {
	repo ports.FeedbackRepository
}

func NewPersistFeedbackUseCase(repo ports.FeedbackRepository) *PersistFeedbackUseCase {
	return &PersistFeedbackUseCase{repo: repo}
}

func (uc *PersistFeedbackUseCase) Handle(ctx context.Context, fb domain.Feedback) error {
	if strings.TrimSpace(fb.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "persist feedback", fmt.Errorf("feedback id is required"))
	}
	if err := uc.repo.SaveFeedback(ctx, fb); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}
