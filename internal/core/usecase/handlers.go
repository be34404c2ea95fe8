package usecase

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
)

const (
	fallbackGeneralText = "Estou disponível para falar sobre direitos, leis e também bater um papo."
	outOfScopeText      = "Desculpe, essa pergunta está fora do escopo do meu conhecimento jurídico."
	calculationFailText = "Desculpe, não consegui calcular essa expressão."
	noResultsText       = "Não encontrei informações relevantes."
)

var greetings = []string{
	"Olá! Como posso ajudar?",
	"Oi! Estou aqui para conversar ou esclarecer dúvidas jurídicas.",
	"Olá! Pergunte-me algo sobre leis ou apenas cumprimente.",
}

var greetingTriggers = []string{"oi", "olá", "bom dia", "boa tarde", "boa noite"}

// Two-word operator phrases are matched before single words.
var phraseOperators = map[string]string{
	"dividido por": "/",
	"elevado à":    "**",
	"elevado a":    "**",
}

var wordOperators = map[string]string{
	"mais":        "+",
	"somar":       "+",
	"soma":        "+",
	"adição":      "+",
	"add":         "+",
	"e":           "+",
	"menos":       "-",
	"subtrair":    "-",
	"subtraia":    "-",
	"vezes":       "*",
	"multiplicar": "*",
	"multiplique": "*",
	"dividir":     "/",
}

func handleGeneral(query string, random ports.RandomSource) string {
	q := strings.ToLower(query)
	for _, trigger := range greetingTriggers {
		if strings.Contains(q, trigger) {
			return greetings[random.Intn(len(greetings))]
		}
	}
	return fallbackGeneralText
}

func handleOutOfScope(string) string { return outOfScopeText }

func handleCalculation(query string, calc ports.Calculator) string {
	expr := rewriteArithmetic(query)
	v, err := calc.Evaluate(expr)
	if err != nil {
		return calculationFailText
	}
	return "O resultado é " + formatNumber(v) + "."
}

// formatNumber renders whole numbers without a fractional part, and switches
// to exponent notation below 1e-4 or from 1e16 up.
func formatNumber(v float64) string {
	if v == 0 {
		v = 0 // drops the sign of -0
	}
	abs := math.Abs(v)
	if v == math.Trunc(v) && abs < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	if abs < 1e-4 || abs >= 1e16 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func handleRAG(query string, topK int, detector *SpecialtyDetector, retriever ports.Retriever) domain.Answer {
	category, _ := detector.Detect(query)
	results := retriever.Search(query, topK, category)
	if len(results) == 0 {
		return domain.Answer{Label: domain.LabelRAGRequired, Text: noResultsText, UsedRAG: true, Sources: []string{}}
	}

	contents := make([]string, 0, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		contents = append(contents, r.Content)
		sources = append(sources, r.Title)
	}
	return domain.Answer{
		Label:      domain.LabelRAGRequired,
		Text:       strings.Join(contents, " "),
		UsedRAG:    true,
		Confidence: results[0].HybridScore,
		Sources:    sources,
	}
}

type segment struct {
	text string
	word bool
}

// rewriteArithmetic turns a Portuguese arithmetic question into an
// expression over digits, + - * / ( ) . and single spaces.
func rewriteArithmetic(query string) string {
	segs := splitWords(strings.ToLower(query))

	var b strings.Builder
	for i := 0; i < len(segs); i++ {
		s := segs[i]
		if !s.word {
			b.WriteString(s.text)
			continue
		}
		if i+2 < len(segs) && segs[i+2].word && strings.TrimSpace(segs[i+1].text) == "" {
			if op, ok := phraseOperators[s.text+" "+segs[i+2].text]; ok {
				b.WriteString(" " + op + " ")
				i += 2
				continue
			}
		}
		if op, ok := wordOperators[s.text]; ok {
			b.WriteString(" " + op + " ")
			continue
		}
		b.WriteString(" ")
	}

	sanitized := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || strings.ContainsRune("+-*/().", r) {
			return r
		}
		return ' '
	}, b.String())
	return strings.Join(strings.Fields(sanitized), " ")
}

func splitWords(text string) []segment {
	var segs []segment
	var cur []rune
	inWord := false
	flush := func() {
		if len(cur) > 0 {
			segs = append(segs, segment{text: string(cur), word: inWord})
			cur = cur[:0]
		}
	}
	for _, r := range text {
		isLetter := unicode.IsLetter(r)
		if isLetter != inWord {
			flush()
			inWord = isLetter
		}
		cur = append(cur, r)
	}
	flush()
	return segs
}
