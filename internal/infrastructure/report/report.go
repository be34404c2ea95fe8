package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	resultsSheet = "resultados"
	summarySheet = "summary"
)

var header = []string{"Pergunta", "Categoria esperada", "Categoria prevista", "Resposta"}

func rowValues(row domain.EvaluationRow) []string {
	return []string{row.Question, string(row.ExpectedLabel), string(row.PredictedLabel), row.Answer}
}

// CSVWriter writes one line per evaluated question. Metrics are not part of
// the CSV output.
type CSVWriter struct {
	path  string
	comma rune
}

func NewCSVWriter(path, delimiter string) (*CSVWriter, error) {
	comma := ';'
	if delimiter != "" {
		r, size := utf8.DecodeRuneInString(delimiter)
		if size != len(delimiter) || r == '"' || r == '\r' || r == '\n' {
			return nil, domain.WrapError(domain.ErrInvalidInput, "csv report", fmt.Errorf("unsupported delimiter %q", delimiter))
		}
		comma = r
	}
	return &CSVWriter{path: path, comma: comma}, nil
}

func (w *CSVWriter) Path() string { return w.path }

func (w *CSVWriter) WriteReport(rows []domain.EvaluationRow, _ domain.ClassifierMetrics) (err error) {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create csv report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close csv report: %w", closeErr)
		}
	}()

	cw := csv.NewWriter(f)
	cw.Comma = w.comma
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(rowValues(row)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv report: %w", err)
	}
	return nil
}

// XLSXWriter writes the rows to a results sheet and the classifier metrics to
// a summary sheet.
type XLSXWriter struct {
	path string
}

func NewXLSXWriter(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

func (w *XLSXWriter) Path() string { return w.path }

func (w *XLSXWriter) WriteReport(rows []domain.EvaluationRow, metrics domain.ClassifierMetrics) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close xlsx report: %w", closeErr)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), resultsSheet); err != nil {
		return fmt.Errorf("rename results sheet: %w", err)
	}
	if err := setRow(f, resultsSheet, 1, toAny(header)); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, resultsSheet, i+2, toAny(rowValues(row))); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]any{
		{"Métrica", "Valor"},
		{"precision", metrics.Precision},
		{"recall", metrics.Recall},
		{"f1", metrics.F1},
		{"perguntas", len(rows)},
	}
	for i, values := range summary {
		if err := setRow(f, summarySheet, i+1, values); err != nil {
			return err
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save xlsx report: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Multi fans one report out to several writers and joins their errors.
type Multi []ports.EvaluationReportWriter

func (m Multi) WriteReport(rows []domain.EvaluationRow, metrics domain.ClassifierMetrics) error {
	var errs []error
	for _, w := range m {
		if err := w.WriteReport(rows, metrics); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
