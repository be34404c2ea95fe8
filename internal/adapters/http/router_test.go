package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestChatReturnsFormattedAnswer(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps)

	res := postJSON(t, handler, "/v1/chat", map[string]any{"query": "Quanto é 2 + 2?", "session_id": "s-1"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp chatResponse
	decodeBody(t, res, &resp)
	if resp.Answer != "O resultado é 4." || resp.Label != domain.LabelCalculation || resp.SessionID != "s-1" {
		t.Fatalf("unexpected chat response: %+v", resp)
	}
	if len(deps.chat.queries) != 1 || deps.chat.queries[0] != "Quanto é 2 + 2?" {
		t.Fatalf("expected query forwarded to chat service, got %v", deps.chat.queries)
	}
}

func TestChatFlattensAnswerFields(t *testing.T) {
	deps := newTestDeps()
	deps.chat.reply = domain.Reply{
		Answer: domain.Answer{
			Label:      domain.LabelRAGRequired,
			Text:       "Você tem sete dias para desistir.",
			UsedRAG:    true,
			Confidence: 0.82,
			Sources:    []string{"Direito de Arrependimento"},
		},
		Formatted: "Você tem sete dias para desistir.\n\nFontes: Direito de Arrependimento",
	}
	handler := newTestHandler(t, config.Config{}, deps)

	res := postJSON(t, handler, "/v1/chat", map[string]any{"query": "Posso devolver compra online?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var raw map[string]any
	decodeBody(t, res, &raw)
	for _, key := range []string{"label", "answer", "used_rag", "confidence", "sources"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("expected key %q in %v", key, raw)
		}
	}
	if _, ok := raw["detail"]; ok {
		t.Fatalf("answer fields must not be nested: %v", raw)
	}
	if _, ok := raw["session_id"]; ok {
		t.Fatalf("empty session id should be omitted: %v", raw)
	}
	if raw["used_rag"] != true || raw["confidence"] != 0.82 {
		t.Fatalf("unexpected rag fields: %v", raw)
	}
	sources, _ := raw["sources"].([]any)
	if len(sources) != 1 || sources[0] != "Direito de Arrependimento" {
		t.Fatalf("unexpected sources: %v", raw["sources"])
	}
}

func TestChatReturnsEmptySourcesArray(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestDeps())

	res := postJSON(t, handler, "/v1/chat", map[string]any{"query": "Quanto é 2 + 2?"})
	if !strings.Contains(res.Body.String(), `"sources":[]`) {
		t.Fatalf("expected empty sources array, got %s", res.Body.String())
	}
}

func TestChatHistoryListsTurns(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps)
	postJSON(t, handler, "/v1/chat", map[string]any{"query": "Olá"})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/chat/history", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp struct {
		Turns []domain.ConversationTurn `json:"turns"`
	}
	decodeBody(t, res, &resp)
	if len(resp.Turns) != 2 || resp.Turns[0].Role != domain.RoleUser || resp.Turns[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected history: %+v", resp.Turns)
	}
}

func TestChatRejectsWrongMethod(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestDeps())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestChatRejectsMalformedJSON(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestDeps())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchUsesConfiguredTopKByDefault(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{RAGTopK: 2}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/search?q=arrependimento", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if deps.retriever.query != "arrependimento" || deps.retriever.topK != 2 || deps.retriever.category != "" {
		t.Fatalf("unexpected retriever call: %+v", deps.retriever)
	}

	var resp struct {
		Results []domain.RetrievalResult `json:"results"`
	}
	decodeBody(t, res, &resp)
	if len(resp.Results) != 2 || resp.Results[0].Title != "Direito de Arrependimento" {
		t.Fatalf("unexpected results: %+v", resp.Results)
	}
}

func TestSearchPassesTopKAndCategory(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/search?q=garantia&top_k=1&category=Consumidor", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if deps.retriever.topK != 1 || deps.retriever.category != "Consumidor" {
		t.Fatalf("unexpected retriever call: %+v", deps.retriever)
	}
}

func TestSearchRejectsBadParameters(t *testing.T) {
	for _, validate := range []bool{false, true} {
		handler := newTestHandler(t, config.Config{APIValidateSchema: validate}, newTestDeps())
		for _, target := range []string{"/v1/search", "/v1/search?q=x&top_k=abc"} {
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, target, nil))
			if res.Code != http.StatusBadRequest {
				t.Fatalf("validate=%v %s: expected 400, got %d", validate, target, res.Code)
			}
		}
	}
}

func TestClassifierMetricsEndpoint(t *testing.T) {
	deps := newTestDeps()
	deps.chat.metrics = domain.ClassifierMetrics{Precision: 0.9, Recall: 0.8, F1: 0.85}
	handler := newTestHandler(t, config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/classifier/metrics", nil))

	var got domain.ClassifierMetrics
	decodeBody(t, res, &got)
	if got != deps.chat.metrics {
		t.Fatalf("expected %+v, got %+v", deps.chat.metrics, got)
	}
}

func TestEvalClassifierParsesLabels(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{}, deps)

	res := postJSON(t, handler, "/v1/eval/classifier", map[string]any{
		"queries": []string{"Olá", "Quanto é 2 + 2?"},
		"labels":  []string{"general_conversation", "calculation"},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(deps.eval.labels) != 2 || deps.eval.labels[1] != domain.LabelCalculation {
		t.Fatalf("unexpected labels forwarded: %v", deps.eval.labels)
	}
}

func TestEvalClassifierRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
	}{
		{"length mismatch", map[string]any{"queries": []string{"a", "b"}, "labels": []string{"calculation"}}},
		{"unknown label", map[string]any{"queries": []string{"a"}, "labels": []string{"poetry"}}},
	}
	for _, validate := range []bool{false, true} {
		handler := newTestHandler(t, config.Config{APIValidateSchema: validate}, newTestDeps())
		for _, tc := range cases {
			res := postJSON(t, handler, "/v1/eval/classifier", tc.payload)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("validate=%v %s: expected 400, got %d", validate, tc.name, res.Code)
			}
		}
	}
}

func TestEvalRetrieverReturnsHitRate(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{APIValidateSchema: true}, deps)

	res := postJSON(t, handler, "/v1/eval/retriever", map[string]any{
		"examples": []map[string]any{
			{"query": "devolver produto", "expected_titles": []string{"Direito de Arrependimento"}},
		},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp map[string]float64
	decodeBody(t, res, &resp)
	if resp["hit_rate"] != 0.5 {
		t.Fatalf("expected hit_rate 0.5, got %v", resp)
	}
	if len(deps.eval.examples) != 1 || deps.eval.examples[0].ExpectedTitles[0] != "Direito de Arrependimento" {
		t.Fatalf("unexpected examples forwarded: %+v", deps.eval.examples)
	}
}

func TestFeedbackMapsUsefulToRawAnswer(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{APIValidateSchema: true}, deps)

	res := postJSON(t, handler, "/v1/feedback", map[string]any{
		"session_id": "s-1", "query": "q", "reply": "r", "useful": false,
	})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if deps.feedback.raw != "não" {
		t.Fatalf("expected raw answer não, got %q", deps.feedback.raw)
	}

	postJSON(t, handler, "/v1/feedback", map[string]any{"query": "q", "reply": "r", "useful": true})
	if deps.feedback.raw != "sim" {
		t.Fatalf("expected raw answer sim, got %q", deps.feedback.raw)
	}
}

func TestFeedbackRequiresUseful(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestDeps())

	res := postJSON(t, handler, "/v1/feedback", map[string]any{"query": "q", "reply": "r"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestFeedbackMapsSinkFailureTo503(t *testing.T) {
	deps := newTestDeps()
	deps.feedback.err = domain.WrapError(domain.ErrUnavailable, "publish feedback", errors.New("nats down"))
	handler := newTestHandler(t, config.Config{}, deps)

	res := postJSON(t, handler, "/v1/feedback", map[string]any{"query": "q", "reply": "r", "useful": true})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestFeedbackListPassesQueryParameters(t *testing.T) {
	deps := newTestDeps()
	deps.feedback.items = []domain.Feedback{{ID: "fb-1", SessionID: "s-9", Useful: true, Raw: "sim"}}
	handler := newTestHandler(t, config.Config{APIValidateSchema: true}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/feedback?session_id=s-9&limit=20", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Items []domain.Feedback `json:"items"`
	}
	decodeBody(t, res, &resp)
	if len(resp.Items) != 1 || resp.Items[0].ID != "fb-1" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
	if deps.feedback.sessionID != "s-9" || deps.feedback.limit != 20 {
		t.Fatalf("unexpected list arguments: session=%q limit=%d", deps.feedback.sessionID, deps.feedback.limit)
	}
}

func TestFeedbackListRejectsBadLimit(t *testing.T) {
	for _, validate := range []bool{false, true} {
		handler := newTestHandler(t, config.Config{APIValidateSchema: validate}, newTestDeps())
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/feedback?limit=many", nil))
		if res.Code != http.StatusBadRequest {
			t.Fatalf("validate=%v: expected 400, got %d", validate, res.Code)
		}
	}

	handler := newTestHandler(t, config.Config{APIValidateSchema: true}, newTestDeps())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/feedback?limit=501", nil))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 above the schema maximum, got %d", res.Code)
	}
}

func TestFeedbackListWithWriteOnlySinkIs503(t *testing.T) {
	deps := newTestDeps()
	deps.feedback.listErr = domain.WrapError(domain.ErrUnavailable, "list feedback", errors.New("feedback sink is write-only"))
	handler := newTestHandler(t, config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/feedback", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestSchemaValidationRejectsChatWithoutQuery(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(t, config.Config{APIValidateSchema: true}, deps)

	res := postJSON(t, handler, "/v1/chat", map[string]any{"session_id": "s-1"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(deps.chat.queries) != 0 {
		t.Fatalf("handler must not run for invalid requests")
	}

	res = postJSON(t, handler, "/v1/chat", map[string]any{"query": strings.Repeat("a", 4001)})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized query, got %d", res.Code)
	}
}

func TestSchemaValidationRejectsUnknownMethod(t *testing.T) {
	handler := newTestHandler(t, config.Config{APIValidateSchema: true}, newTestDeps())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/feedback", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrUnavailable, "op", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
