package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

const (
	noSourcesText  = "Nenhuma fonte relevante"
	disclaimerText = "⚠️ Esta resposta é informativa e não substitui consulta profissional."
	limitationText = "Limitações: base de conhecimento sintética; respostas podem ser incompletas."
)

// FormatAnswer renders the user-facing text of a turn.
func FormatAnswer(answer domain.Answer) string {
	mode := "(Resposta direta)"
	if answer.UsedRAG {
		mode = "(Resposta via RAG)"
	}
	sources := noSourcesText
	if len(answer.Sources) > 0 {
		sources = strings.Join(answer.Sources, "; ")
	}
	confidence := int(math.Round(answer.Confidence * 100))
	return fmt.Sprintf("%s Confiança: %d%%\n%s\n\nFontes: %s\n%s\n%s",
		mode, confidence, answer.Text, sources, disclaimerText, limitationText)
}
