package domain

type RetrievalResult struct {
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	HybridScore float64 `json:"hybrid_score"`
	TFIDFScore  float64 `json:"tfidf_score"`
}

// RetrievalExample is a query with the titles a good retriever should surface.
type RetrievalExample struct {
	Query          string   `json:"query" yaml:"query"`
	ExpectedTitles []string `json:"expected_titles" yaml:"expected_titles"`
}

type Answer struct {
	Label      Label    `json:"label"`
	Text       string   `json:"text"`
	UsedRAG    bool     `json:"used_rag"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

type Reply struct {
	Answer    Answer `json:"answer"`
	Formatted string `json:"formatted"`
}
