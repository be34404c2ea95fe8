package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/legal-rag-assistant/internal/config"
	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
	"github.com/kirillkom/legal-rag-assistant/internal/core/ports"
	"github.com/kirillkom/legal-rag-assistant/internal/observability/metrics"
)

const (
	maxRequestBodyBytes = 1 << 20
	backpressureWait    = 250 * time.Millisecond
)

type Router struct {
	cfg       config.Config
	chat      ports.ChatService
	eval      ports.EvaluationService
	retriever ports.Retriever
	feedback  ports.FeedbackService
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
}

func NewRouter(
	cfg config.Config,
	chat ports.ChatService,
	eval ports.EvaluationService,
	retriever ports.Retriever,
	feedback ports.FeedbackService,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:       cfg,
		chat:      chat,
		eval:      eval,
		retriever: retriever,
		feedback:  feedback,
		metrics:   httpMetrics,
		logger:    logger,
	}
}

// Handler assembles the routes and the middleware chain. It fails only when
// the embedded API schema cannot be loaded.
func (rt *Router) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatTurn)
	mux.HandleFunc("/v1/chat/history", rt.chatHistory)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/classifier/metrics", rt.classifierMetrics)
	mux.HandleFunc("/v1/eval/classifier", rt.evalClassifier)
	mux.HandleFunc("/v1/eval/retriever", rt.evalRetriever)
	mux.HandleFunc("/v1/feedback", rt.feedbackRoute)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var onReject func(string)
	if rt.metrics != nil {
		onReject = rt.metrics.RecordRejected
	}

	var handler http.Handler = mux
	if rt.cfg.APIValidateSchema {
		validator, err := newRequestValidator()
		if err != nil {
			return nil, err
		}
		handler = validator.middleware(handler)
	}
	handler = apiKeyMiddleware(handler, rt.cfg.APIKey, onReject)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureWait, onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	SessionID  string       `json:"session_id,omitempty"`
	Label      domain.Label `json:"label"`
	Answer     string       `json:"answer"`
	UsedRAG    bool         `json:"used_rag"`
	Confidence float64      `json:"confidence"`
	Sources    []string     `json:"sources"`
}

func (rt *Router) chatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req chatRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	reply := rt.chat.AskDetailed(req.Query)
	sources := reply.Answer.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		SessionID:  req.SessionID,
		Label:      reply.Answer.Label,
		Answer:     reply.Formatted,
		UsedRAG:    reply.Answer.UsedRAG,
		Confidence: reply.Answer.Confidence,
		Sources:    sources,
	})
}

func (rt *Router) chatHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": rt.chat.History()})
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	query := r.URL.Query()
	var (
		q        string
		topK     int
		category string
	)
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &q); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", query, &topK); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "category", query, &category); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	if topK <= 0 {
		topK = rt.cfg.RAGTopK
	}

	results := rt.retriever.Search(q, topK, category)
	if results == nil {
		results = []domain.RetrievalResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) classifierMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.chat.ClassifierMetrics())
}

type evalClassifierRequest struct {
	Queries []string `json:"queries"`
	Labels  []string `json:"labels"`
}

func (rt *Router) evalClassifier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req evalClassifierRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Queries) != len(req.Labels) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("queries and labels differ in length: %d != %d", len(req.Queries), len(req.Labels)),
		})
		return
	}

	labels := make([]domain.Label, 0, len(req.Labels))
	for _, raw := range req.Labels {
		label, err := domain.ParseLabel(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		labels = append(labels, label)
	}

	writeJSON(w, http.StatusOK, rt.eval.EvalClassifier(req.Queries, labels))
}

type evalRetrieverRequest struct {
	Examples []domain.RetrievalExample `json:"examples"`
}

func (rt *Router) evalRetriever(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req evalRetrieverRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"hit_rate": rt.eval.EvalRetriever(req.Examples)})
}

type feedbackRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Reply     string `json:"reply"`
	Useful    *bool  `json:"useful"`
}

func (rt *Router) feedbackRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.recordFeedback(w, r)
	case http.MethodGet:
		rt.listFeedback(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) listFeedback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		sessionID string
		limit     int
	)
	if err := runtime.BindQueryParameter("form", true, false, "session_id", query, &sessionID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	items, err := rt.feedback.List(r.Context(), sessionID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (rt *Router) recordFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Useful == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "useful is required"})
		return
	}

	raw := "não"
	if *req.Useful {
		raw = "sim"
	}
	fb, err := rt.feedback.Record(r.Context(), req.SessionID, req.Query, req.Reply, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, fb)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("body exceeds %d bytes", maxErr.Limit))
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
