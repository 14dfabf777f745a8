package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
	"github.com/kirillkom/rag-pipeline/internal/observability/metrics"
)

const serviceName = "rag-api"

type Router struct {
	askService ports.QuestionService
	submitter  ports.QuestionSubmitter
	metrics    *metrics.HTTPServerMetrics
}

// NewRouter wires the synchronous ask endpoint and, when a submitter is
// provided, the asynchronous submission endpoint. metrics may be nil.
func NewRouter(askService ports.QuestionService, submitter ports.QuestionSubmitter, m *metrics.HTTPServerMetrics) *Router {
	return &Router{
		askService: askService,
		submitter:  submitter,
		metrics:    m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/questions", rt.submitQuestion)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	handler := http.Handler(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return chain(handler, recoverMiddleware, accessLogMiddleware, requestIDMiddleware)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askResponse struct {
	Answer      string                      `json:"answer"`
	ContextUsed []domain.RetrievedChunk     `json:"context_used"`
	Results     []domain.SearchResultBundle `json:"results"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	out, err := rt.askService.Ask(r.Context(), req)
	if rt.metrics != nil {
		iterations := make([]int, 0, len(out.Results))
		for _, bundle := range out.Results {
			iterations = append(iterations, bundle.Iterations)
		}
		rt.metrics.RecordAsk(serviceName, "/v1/ask", iterations, len(out.ContextUsed), time.Since(start), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := askResponse{
		Answer:      out.Answer,
		ContextUsed: out.ContextUsed,
		Results:     out.Results,
	}
	if resp.ContextUsed == nil {
		resp.ContextUsed = []domain.RetrievedChunk{}
	}
	if resp.Results == nil {
		resp.Results = []domain.SearchResultBundle{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) submitQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.submitter == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "asynchronous submission is not enabled"})
		return
	}

	req, ok := decodeAskRequest(w, r)
	if !ok {
		return
	}

	id, err := rt.submitter.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"question_id": id})
}

func decodeAskRequest(w http.ResponseWriter, r *http.Request) (domain.AskRequest, bool) {
	var req domain.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return domain.AskRequest{}, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return domain.AskRequest{}, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
