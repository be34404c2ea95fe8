package usecase

import (
	"time"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

type classifierFake struct {
	labels  map[string]domain.Label
	def     domain.Label
	metrics domain.ClassifierMetrics
	calls   []string
}

func (f *classifierFake) Predict(query string) domain.Label {
	f.calls = append(f.calls, query)
	if label, ok := f.labels[query]; ok {
		return label
	}
	return f.def
}

func (f *classifierFake) Metrics() domain.ClassifierMetrics { return f.metrics }

type retrieverFake struct {
	results      []domain.RetrievalResult
	lastQuery    string
	lastTopK     int
	lastCategory string
}

func (f *retrieverFake) Search(query string, topK int, category string) []domain.RetrievalResult {
	f.lastQuery = query
	f.lastTopK = topK
	f.lastCategory = category
	if len(f.results) > topK {
		return f.results[:topK]
	}
	return f.results
}

type randomFake struct {
	n int
}

func (f randomFake) Intn(int) int { return f.n }

type observerFake struct {
	turns []observedTurn
}

type observedTurn struct {
	label   domain.Label
	usedRAG bool
	sources int
}

func (f *observerFake) ObserveTurn(label domain.Label, usedRAG bool, sources int, _ time.Duration) {
	f.turns = append(f.turns, observedTurn{label: label, usedRAG: usedRAG, sources: sources})
}

var testSpecialties = []domain.Specialty{
	{Category: "Consumidor", Keywords: []string{"consumidor", "produto"}},
	{Category: "Civil", Keywords: []string{"civil", "usucapi", "posse"}},
	{Category: "Penal", Keywords: []string{"penal", "pena", "furto"}},
}
