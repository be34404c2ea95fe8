package usecase

import (
	"fmt"
	"log/slog"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

type BatchResult struct {
	Rows             []domain.EvaluationRow
	Metrics          domain.ClassifierMetrics
	RetrieverHitRate float64
}

// BatchEvaluationUseCase asks every question of a labelled set, scores the
// routing and hands the rows to a report writer.
type BatchEvaluationUseCase struct {
	chat   ports.ChatService
	eval   ports.EvaluationService
	writer ports.EvaluationReportWriter
	logger *slog.Logger
}

func NewBatchEvaluationUseCase(
	chat ports.ChatService,
	eval ports.EvaluationService,
	writer ports.EvaluationReportWriter,
	logger *slog.Logger,
) *BatchEvaluationUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchEvaluationUseCase{chat: chat, eval: eval, writer: writer, logger: logger}
}

func (uc *BatchEvaluationUseCase) Run(questions []domain.EvaluationRow, examples []domain.RetrievalExample) (BatchResult, error) {
	if len(questions) == 0 {
		return BatchResult{}, domain.WrapError(domain.ErrInvalidInput, "batch evaluation", fmt.Errorf("no questions"))
	}

	rows := make([]domain.EvaluationRow, 0, len(questions))
	queries := make([]string, 0, len(questions))
	labels := make([]domain.Label, 0, len(questions))
	for _, q := range questions {
		reply := uc.chat.AskDetailed(q.Question)
		rows = append(rows, domain.EvaluationRow{
			Question:       q.Question,
			ExpectedLabel:  q.ExpectedLabel,
			PredictedLabel: reply.Answer.Label,
			Answer:         reply.Formatted,
		})
		queries = append(queries, q.Question)
		labels = append(labels, q.ExpectedLabel)
	}

	result := BatchResult{
		Rows:             rows,
		Metrics:          uc.eval.EvalClassifier(queries, labels),
		RetrieverHitRate: uc.eval.EvalRetriever(examples),
	}
	uc.logger.Info("batch_evaluation_finished",
		"questions", len(rows),
		"precision", result.Metrics.Precision,
		"recall", result.Metrics.Recall,
		"f1", result.Metrics.F1,
		"retriever_hit_rate", result.RetrieverHitRate,
	)

	if uc.writer != nil {
		if err := uc.writer.WriteReport(rows, result.Metrics); err != nil {
			return result, fmt.Errorf("write report: %w", err)
		}
	}
	return result, nil
}
