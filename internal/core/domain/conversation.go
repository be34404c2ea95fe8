package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ConversationTurn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type Feedback struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Reply     string    `json:"reply"`
	Useful    bool      `json:"useful"`
	Raw       string    `json:"raw"`
	CreatedAt time.Time `json:"created_at"`
}

// EvaluationRow is one question of a batch run.
type EvaluationRow struct {
	Question       string `json:"question" yaml:"question"`
	ExpectedLabel  Label  `json:"expected_label" yaml:"label"`
	PredictedLabel Label  `json:"predicted_label" yaml:"-"`
	Answer         string `json:"answer" yaml:"-"`
}
