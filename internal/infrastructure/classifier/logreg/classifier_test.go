package logreg

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/knowledge/yamlkb"
)

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func defaultTraining(t *testing.T) []domain.LabeledQuery {
	t.Helper()
	kb, err := yamlkb.Default().KnowledgeBase()
	if err != nil {
		t.Fatalf("load knowledge base: %v", err)
	}
	return kb.Training
}

func TestTrainRejectsEmptySet(t *testing.T) {
	_, err := Train(nil, quietOptions())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTrainHoldsOutRoundedUpShare(t *testing.T) {
	c, err := Train(defaultTraining(t), quietOptions())
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	train, test := c.SplitSizes()
	if train != 32 || test != 8 {
		t.Fatalf("expected 32/8 split, got %d/%d", train, test)
	}
	m := c.Metrics()
	for name, v := range map[string]float64{"precision": m.Precision, "recall": m.Recall, "f1": m.F1} {
		if v < 0 || v > 1 {
			t.Fatalf("%s out of range: %f", name, v)
		}
	}
}

func TestTrainIsDeterministic(t *testing.T) {
	examples := defaultTraining(t)
	a, err := Train(examples, quietOptions())
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	b, err := Train(examples, quietOptions())
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	if a.Metrics() != b.Metrics() {
		t.Fatalf("metrics differ between runs: %+v vs %+v", a.Metrics(), b.Metrics())
	}
	queries := []string{"Oi, tudo bem?", "Quanto é 7 ao quadrado?", "O que é JavaScript?", "Como funciona a usucapião ordinária?"}
	pa, pb := a.PredictBatch(queries), b.PredictBatch(queries)
	for i := range queries {
		if pa[i] != pb[i] {
			t.Fatalf("prediction for %q differs: %s vs %s", queries[i], pa[i], pb[i])
		}
	}
}

func TestTrainOnFullSetFitsTrainingExamples(t *testing.T) {
	examples := defaultTraining(t)
	opts := quietOptions()
	opts.TestRatio = 0
	c, err := Train(examples, opts)
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	if _, test := c.SplitSizes(); test != 0 {
		t.Fatalf("expected no held-out examples, got %d", test)
	}
	if c.Metrics() != (domain.ClassifierMetrics{}) {
		t.Fatalf("expected zero metrics without a held-out set, got %+v", c.Metrics())
	}

	correct := 0
	for _, ex := range examples {
		if c.Predict(ex.Query) == ex.Label {
			correct++
		}
	}
	if float64(correct)/float64(len(examples)) < 0.85 {
		t.Fatalf("training accuracy too low: %d/%d", correct, len(examples))
	}

	if got := c.Predict("Calcule 100 menos 25."); got != domain.LabelCalculation {
		t.Fatalf("expected calculation, got %s", got)
	}
	if got := c.Predict("Quais são os deveres do empregador segundo a CLT?"); got != domain.LabelRAGRequired {
		t.Fatalf("expected rag_required, got %s", got)
	}
}

func TestClassesAreSorted(t *testing.T) {
	opts := quietOptions()
	opts.TestRatio = 0
	c, err := Train([]domain.LabeledQuery{
		{Query: "bolo de chocolate", Label: domain.LabelOutOfScope},
		{Query: "quanto é dois mais dois", Label: domain.LabelCalculation},
		{Query: "direito do consumidor", Label: domain.LabelRAGRequired},
	}, opts)
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	want := []domain.Label{domain.LabelCalculation, domain.LabelOutOfScope, domain.LabelRAGRequired}
	got := c.Classes()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("classes = %v, want %v", got, want)
		}
	}
	if p := c.Predict("chocolate"); p != domain.LabelOutOfScope {
		t.Fatalf("expected out_of_scope for a known token, got %s", p)
	}
}

func TestSplitNeverEmptiesTrainingPart(t *testing.T) {
	examples := []domain.LabeledQuery{
		{Query: "a1", Label: domain.LabelCalculation},
		{Query: "b1", Label: domain.LabelOutOfScope},
	}
	train, test := split(examples, 0.9, 1)
	if len(train) != 1 || len(test) != 1 {
		t.Fatalf("expected 1/1 split, got %d/%d", len(train), len(test))
	}
	if examples[0].Query != "a1" {
		t.Fatalf("split must not reorder its input")
	}
}

func TestDefaultClassifierRoutesReferenceQueries(t *testing.T) {
	training := defaultTraining(t)
	clf, err := Train(training, quietOptions())
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	cases := map[string]domain.Label{
		"Oi, tudo bem?":            domain.LabelGeneralConversation,
		"Quem pintou a Mona Lisa?": domain.LabelOutOfScope,
	}
	for query, want := range cases {
		if got := clf.Predict(query); got != want {
			t.Fatalf("Predict(%q) = %s, want %s", query, got, want)
		}
	}

	queries := make([]string, 0, len(training))
	for _, ex := range training {
		queries = append(queries, ex.Query)
	}
	reached := make(map[domain.Label]bool)
	for _, label := range clf.PredictBatch(queries) {
		reached[label] = true
	}
	for _, label := range domain.Labels() {
		if !reached[label] {
			t.Fatalf("label %s is never predicted over the training queries", label)
		}
	}
}
