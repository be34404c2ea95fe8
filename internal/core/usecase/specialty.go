package usecase

import (
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// SpecialtyDetector maps a query to the first legal area whose keyword
// occurs in it. Row order decides ties.
type SpecialtyDetector struct {
	table []domain.Specialty
}

func NewSpecialtyDetector(table []domain.Specialty) *SpecialtyDetector {
	rows := make([]domain.Specialty, len(table))
	copy(rows, table)
	return &SpecialtyDetector{table: rows}
}

func (d *SpecialtyDetector) Detect(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, row := range d.table {
		for _, kw := range row.Keywords {
			if strings.Contains(q, kw) {
				return row.Category, true
			}
		}
	}
	return "", false
}
