package domain

import (
	"fmt"
	"strings"
)

type Label string

const (
	LabelRAGRequired         Label = "rag_required"
	LabelGeneralConversation Label = "general_conversation"
	LabelCalculation         Label = "calculation"
	LabelOutOfScope          Label = "out_of_scope"
)

// Labels returns every routing label in declaration order.
func Labels() []Label {
	return []Label{LabelRAGRequired, LabelGeneralConversation, LabelOutOfScope, LabelCalculation}
}

func ParseLabel(raw string) (Label, error) {
	label := Label(strings.TrimSpace(strings.ToLower(raw)))
	switch label {
	case LabelRAGRequired, LabelGeneralConversation, LabelCalculation, LabelOutOfScope:
		return label, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse label", fmt.Errorf("unknown label %q", raw))
	}
}

type LabeledQuery struct {
	Query string `json:"query" yaml:"query"`
	Label Label  `json:"label" yaml:"label"`
}

type ClassifierMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// WeightedScores computes support-weighted precision, recall and F1 of
// predicted against gold. Undefined ratios count as zero.
func WeightedScores(gold, predicted []Label) ClassifierMetrics {
	n := len(gold)
	if len(predicted) < n {
		n = len(predicted)
	}
	if n == 0 {
		return ClassifierMetrics{}
	}

	type counts struct{ tp, fp, fn, support int }
	perLabel := make(map[Label]*counts)
	get := func(l Label) *counts {
		c, ok := perLabel[l]
		if !ok {
			c = &counts{}
			perLabel[l] = c
		}
		return c
	}

	for i := 0; i < n; i++ {
		g, p := gold[i], predicted[i]
		get(g).support++
		if g == p {
			get(g).tp++
			continue
		}
		get(p).fp++
		get(g).fn++
	}

	var out ClassifierMetrics
	total := 0
	for _, c := range perLabel {
		if c.support == 0 {
			continue
		}
		precision := ratio(c.tp, c.tp+c.fp)
		recall := ratio(c.tp, c.tp+c.fn)
		f1 := ratio(2*c.tp, 2*c.tp+c.fp+c.fn)
		w := float64(c.support)
		out.Precision += precision * w
		out.Recall += recall * w
		out.F1 += f1 * w
		total += c.support
	}
	if total == 0 {
		return ClassifierMetrics{}
	}
	out.Precision /= float64(total)
	out.Recall /= float64(total)
	out.F1 /= float64(total)
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
