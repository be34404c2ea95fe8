// Package logreg trains a multinomial logistic regression over tf-idf
// features to route queries to a label.
package logreg

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/infrastructure/textindex"
)

type Options struct {
	// TestRatio is the held-out share; the held-out size is rounded up.
	TestRatio    float64
	Seed         int64
	Iterations   int
	LearningRate float64
	// C is the inverse L2 regularization strength.
	C      float64
	Logger *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		TestRatio:    0.2,
		Seed:         42,
		Iterations:   1500,
		LearningRate: 0.05,
		C:            1.0,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.TestRatio < 0 || o.TestRatio >= 1 {
		o.TestRatio = def.TestRatio
	}
	if o.Iterations <= 0 {
		o.Iterations = def.Iterations
	}
	if o.LearningRate <= 0 {
		o.LearningRate = def.LearningRate
	}
	if o.C <= 0 {
		o.C = def.C
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Classifier is immutable after Train.
type Classifier struct {
	vectorizer *textindex.Vectorizer
	classes    []domain.Label
	weights    [][]float64
	bias       []float64
	metrics    domain.ClassifierMetrics
	trainSize  int
	testSize   int
}

// Train splits examples, fits the model on the training part and caches the
// held-out weighted metrics.
func Train(examples []domain.LabeledQuery, opts Options) (*Classifier, error) {
	opts = opts.normalize()
	if len(examples) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "train classifier", fmt.Errorf("training set is empty"))
	}

	train, test := split(examples, opts.TestRatio, opts.Seed)
	if len(train) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "train classifier", fmt.Errorf("no examples left for training"))
	}

	c := fit(train, opts)
	c.trainSize = len(train)
	c.testSize = len(test)

	if len(test) > 0 {
		gold := make([]domain.Label, len(test))
		queries := make([]string, len(test))
		for i, ex := range test {
			gold[i] = ex.Label
			queries[i] = ex.Query
		}
		c.metrics = domain.WeightedScores(gold, c.PredictBatch(queries))
	}

	opts.Logger.Info("classifier_trained",
		"train_size", c.trainSize,
		"test_size", c.testSize,
		"classes", len(c.classes),
		"features", c.vectorizer.Dimension(),
		"precision", c.metrics.Precision,
		"recall", c.metrics.Recall,
		"f1", c.metrics.F1,
	)
	return c, nil
}

func (c *Classifier) Predict(query string) domain.Label {
	x := c.vectorizer.Transform(query)
	best := 0
	bestScore := math.Inf(-1)
	for k := range c.classes {
		score := x.DotDense(c.weights[k]) + c.bias[k]
		if score > bestScore {
			best = k
			bestScore = score
		}
	}
	return c.classes[best]
}

func (c *Classifier) PredictBatch(queries []string) []domain.Label {
	out := make([]domain.Label, len(queries))
	for i, q := range queries {
		out[i] = c.Predict(q)
	}
	return out
}

// Metrics returns the held-out evaluation computed at training time.
func (c *Classifier) Metrics() domain.ClassifierMetrics { return c.metrics }

func (c *Classifier) Classes() []domain.Label {
	out := make([]domain.Label, len(c.classes))
	copy(out, c.classes)
	return out
}

func (c *Classifier) SplitSizes() (train, test int) { return c.trainSize, c.testSize }

// split shuffles a copy of examples with a seeded source and holds out the
// first ceil(ratio*n) of them.
func split(examples []domain.LabeledQuery, ratio float64, seed int64) (train, test []domain.LabeledQuery) {
	shuffled := make([]domain.LabeledQuery, len(examples))
	copy(shuffled, examples)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nTest := int(math.Ceil(ratio * float64(len(shuffled))))
	if nTest >= len(shuffled) {
		nTest = len(shuffled) - 1
	}
	return shuffled[nTest:], shuffled[:nTest]
}

// fit minimizes C * cross-entropy + 0.5 * ||W||^2 by full-batch gradient
// descent. The intercept is not regularized.
func fit(train []domain.LabeledQuery, opts Options) *Classifier {
	queries := make([]string, len(train))
	for i, ex := range train {
		queries[i] = ex.Query
	}
	vectorizer, xs := textindex.FitTransform(queries)

	classes := sortedClasses(train)
	classIndex := make(map[domain.Label]int, len(classes))
	for i, l := range classes {
		classIndex[l] = i
	}
	ys := make([]int, len(train))
	for i, ex := range train {
		ys[i] = classIndex[ex.Label]
	}

	dim := vectorizer.Dimension()
	k := len(classes)
	weights := make([][]float64, k)
	gradW := make([][]float64, k)
	for i := range weights {
		weights[i] = make([]float64, dim)
		gradW[i] = make([]float64, dim)
	}
	bias := make([]float64, k)
	gradB := make([]float64, k)
	probs := make([]float64, k)

	for iter := 0; iter < opts.Iterations; iter++ {
		for j := 0; j < k; j++ {
			copy(gradW[j], weights[j])
			gradB[j] = 0
		}
		for n, x := range xs {
			softmax(x, weights, bias, probs)
			for j := 0; j < k; j++ {
				diff := probs[j]
				if j == ys[n] {
					diff -= 1
				}
				diff *= opts.C
				gradB[j] += diff
				for t, idx := range x.Indices {
					gradW[j][idx] += diff * x.Values[t]
				}
			}
		}
		for j := 0; j < k; j++ {
			for d := range weights[j] {
				weights[j][d] -= opts.LearningRate * gradW[j][d]
			}
			bias[j] -= opts.LearningRate * gradB[j]
		}
	}

	return &Classifier{
		vectorizer: vectorizer,
		classes:    classes,
		weights:    weights,
		bias:       bias,
	}
}

func softmax(x textindex.SparseVector, weights [][]float64, bias, out []float64) {
	maxScore := math.Inf(-1)
	for j := range weights {
		out[j] = x.DotDense(weights[j]) + bias[j]
		if out[j] > maxScore {
			maxScore = out[j]
		}
	}
	var sum float64
	for j := range out {
		out[j] = math.Exp(out[j] - maxScore)
		sum += out[j]
	}
	for j := range out {
		out[j] /= sum
	}
}

func sortedClasses(examples []domain.LabeledQuery) []domain.Label {
	seen := make(map[domain.Label]struct{})
	out := make([]domain.Label, 0, 4)
	for _, ex := range examples {
		if _, ok := seen[ex.Label]; ok {
			continue
		}
		seen[ex.Label] = struct{}{}
		out = append(out, ex.Label)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
