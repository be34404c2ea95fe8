package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kirillkom/legal-rag-assistant/internal/bootstrap"
	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/knowledge/yamlkb"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/report"
	"github.com/kirillkom/legal-rag-assistant/internal/observability/logging"
)

const (
	csvReportName  = "resultados_chatbot.csv"
	xlsxReportName = "resultados_chatbot.xlsx"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "legal-evaluate", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("evaluation_failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	evalSet, err := loadEvaluation(cfg.EvalQuestionsPath)
	if err != nil {
		return err
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	if err := os.MkdirAll(cfg.EvalOutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	csvWriter, err := report.NewCSVWriter(filepath.Join(cfg.EvalOutputDir, csvReportName), cfg.EvalCSVDelimiter)
	if err != nil {
		return err
	}
	xlsxWriter := report.NewXLSXWriter(filepath.Join(cfg.EvalOutputDir, xlsxReportName))

	uc := usecase.NewBatchEvaluationUseCase(app.Bot, app.Evaluator, report.Multi{csvWriter, xlsxWriter}, logger)
	result, err := uc.Run(evalSet.Questions, evalSet.Retrieval)
	if err != nil {
		return err
	}

	fmt.Printf("Métricas do classificador: precision=%.4f recall=%.4f f1=%.4f\n",
		result.Metrics.Precision, result.Metrics.Recall, result.Metrics.F1)
	fmt.Printf("Precisão@3 do retriever: %.4f\n", result.RetrieverHitRate)
	fmt.Printf("Respostas salvas em %s e %s\n", csvWriter.Path(), xlsxWriter.Path())
	return nil
}

func loadEvaluation(path string) (yamlkb.EvaluationSet, error) {
	if path == "" {
		return yamlkb.DefaultEvaluation()
	}
	return yamlkb.LoadEvaluation(path)
}
