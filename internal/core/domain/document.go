package domain

import (
	"fmt"
	"strings"
)

// Document is one passage of the legal knowledge base.
type Document struct {
	Title    string `json:"title" yaml:"title"`
	Content  string `json:"content" yaml:"content"`
	Category string `json:"category" yaml:"category"`
}

// Corpus is the ordered document collection. The position of a document is
// its index in every structure derived from the corpus.
type Corpus []Document

func (c Corpus) Validate() error {
	if len(c) == 0 {
		return WrapError(ErrInvalidInput, "validate corpus", fmt.Errorf("corpus is empty"))
	}
	for i, doc := range c {
		switch {
		case strings.TrimSpace(doc.Title) == "":
			return WrapError(ErrInvalidInput, "validate corpus", fmt.Errorf("document %d: title is required", i))
		case strings.TrimSpace(doc.Content) == "":
			return WrapError(ErrInvalidInput, "validate corpus", fmt.Errorf("document %d (%s): content is required", i, doc.Title))
		case strings.TrimSpace(doc.Category) == "":
			return WrapError(ErrInvalidInput, "validate corpus", fmt.Errorf("document %d (%s): category is required", i, doc.Title))
		}
	}
	return nil
}

// DuplicateTitles lists titles that occur more than once, in first-seen order.
func (c Corpus) DuplicateTitles() []string {
	seen := make(map[string]int, len(c))
	out := make([]string, 0)
	for _, doc := range c {
		seen[doc.Title]++
		if seen[doc.Title] == 2 {
			out = append(out, doc.Title)
		}
	}
	return out
}

func (c Corpus) Categories() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, doc := range c {
		if _, ok := seen[doc.Category]; ok {
			continue
		}
		seen[doc.Category] = struct{}{}
		out = append(out, doc.Category)
	}
	return out
}

// Specialty maps a legal domain to the keyword substrings that identify it.
type Specialty struct {
	Category string   `json:"category" yaml:"category"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// KnowledgeBase bundles everything the assistant is built from.
type KnowledgeBase struct {
	Corpus      Corpus
	Training    []LabeledQuery
	Specialties []Specialty
}
