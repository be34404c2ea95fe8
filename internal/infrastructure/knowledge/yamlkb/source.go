// Package yamlkb loads the knowledge base and evaluation sets from YAML,
// either from disk or from the copy compiled into the binary.
package yamlkb

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

//go:embed evaluation.yaml
var defaultEvaluation []byte

type knowledgeFile struct {
	Documents   []domain.Document  `yaml:"documents"`
	Training    []trainingEntry    `yaml:"training"`
	Specialties []domain.Specialty `yaml:"specialties"`
}

type trainingEntry struct {
	Query string `yaml:"query"`
	Label string `yaml:"label"`
}

type evaluationFile struct {
	Questions []evaluationEntry         `yaml:"questions"`
	Retrieval []domain.RetrievalExample `yaml:"retrieval"`
}

type evaluationEntry struct {
	Question string `yaml:"question"`
	Label    string `yaml:"label"`
}

// Source serves a parsed knowledge file.
type Source struct {
	name   string
	raw    []byte
	logger *slog.Logger

	once sync.Once
	kb   domain.KnowledgeBase
	err  error
}

// Default returns the knowledge base shipped with the binary.
func Default() *Source {
	return &Source{name: "embedded", raw: defaultKnowledge, logger: slog.Default()}
}

// Open reads a knowledge file from path. An empty path selects Default.
func Open(path string) (*Source, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file %s: %w", path, err)
	}
	return &Source{name: path, raw: raw, logger: slog.Default()}, nil
}

func (s *Source) WithLogger(logger *slog.Logger) *Source {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Source) Name() string { return s.name }

func (s *Source) LoadCorpus(_ context.Context) (domain.Corpus, error) {
	kb, err := s.KnowledgeBase()
	if err != nil {
		return nil, err
	}
	return kb.Corpus, nil
}

func (s *Source) LoadTrainingSet(_ context.Context) ([]domain.LabeledQuery, error) {
	kb, err := s.KnowledgeBase()
	if err != nil {
		return nil, err
	}
	return kb.Training, nil
}

func (s *Source) LoadSpecialties(_ context.Context) ([]domain.Specialty, error) {
	kb, err := s.KnowledgeBase()
	if err != nil {
		return nil, err
	}
	return kb.Specialties, nil
}

// KnowledgeBase parses and validates the whole file once. Duplicate titles
// are accepted but logged since sources are reported by title.
func (s *Source) KnowledgeBase() (domain.KnowledgeBase, error) {
	s.once.Do(func() {
		s.kb, s.err = s.parse()
	})
	return s.kb, s.err
}

func (s *Source) parse() (domain.KnowledgeBase, error) {
	var file knowledgeFile
	if err := yaml.Unmarshal(s.raw, &file); err != nil {
		return domain.KnowledgeBase{}, domain.WrapError(domain.ErrInvalidInput, "parse knowledge file", fmt.Errorf("%s: %w", s.name, err))
	}

	corpus := domain.Corpus(file.Documents)
	if err := corpus.Validate(); err != nil {
		return domain.KnowledgeBase{}, err
	}
	if dups := corpus.DuplicateTitles(); len(dups) > 0 {
		s.logger.Warn("knowledge_duplicate_titles", "source", s.name, "titles", dups)
	}

	training := make([]domain.LabeledQuery, 0, len(file.Training))
	for i, entry := range file.Training {
		label, err := domain.ParseLabel(entry.Label)
		if err != nil {
			return domain.KnowledgeBase{}, fmt.Errorf("training entry %d: %w", i, err)
		}
		if entry.Query == "" {
			return domain.KnowledgeBase{}, domain.WrapError(domain.ErrInvalidInput, "parse knowledge file", fmt.Errorf("training entry %d: query is required", i))
		}
		training = append(training, domain.LabeledQuery{Query: entry.Query, Label: label})
	}
	if len(training) == 0 {
		return domain.KnowledgeBase{}, domain.WrapError(domain.ErrInvalidInput, "parse knowledge file", fmt.Errorf("%s: training set is empty", s.name))
	}

	for i, sp := range file.Specialties {
		if sp.Category == "" || len(sp.Keywords) == 0 {
			return domain.KnowledgeBase{}, domain.WrapError(domain.ErrInvalidInput, "parse knowledge file", fmt.Errorf("specialty %d: category and keywords are required", i))
		}
	}

	return domain.KnowledgeBase{
		Corpus:      corpus,
		Training:    training,
		Specialties: file.Specialties,
	}, nil
}

// EvaluationSet is a batch of labelled questions plus retrieval examples.
type EvaluationSet struct {
	Questions []domain.EvaluationRow
	Retrieval []domain.RetrievalExample
}

// DefaultEvaluation returns the bundled evaluation questions.
func DefaultEvaluation() (EvaluationSet, error) {
	return parseEvaluation("embedded", defaultEvaluation)
}

// LoadEvaluation reads an evaluation file. An empty path selects the bundled set.
func LoadEvaluation(path string) (EvaluationSet, error) {
	if path == "" {
		return DefaultEvaluation()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return EvaluationSet{}, fmt.Errorf("read evaluation file %s: %w", path, err)
	}
	return parseEvaluation(path, raw)
}

func parseEvaluation(name string, raw []byte) (EvaluationSet, error) {
	var file evaluationFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return EvaluationSet{}, domain.WrapError(domain.ErrInvalidInput, "parse evaluation file", fmt.Errorf("%s: %w", name, err))
	}
	set := EvaluationSet{
		Questions: make([]domain.EvaluationRow, 0, len(file.Questions)),
		Retrieval: file.Retrieval,
	}
	for i, q := range file.Questions {
		label, err := domain.ParseLabel(q.Label)
		if err != nil {
			return EvaluationSet{}, fmt.Errorf("question %d: %w", i, err)
		}
		set.Questions = append(set.Questions, domain.EvaluationRow{Question: q.Question, ExpectedLabel: label})
	}
	return set, nil
}
