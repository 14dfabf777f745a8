package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

type askServiceFake struct {
	out domain.PipelineContext
	err error

	gotRequest domain.AskRequest
}

func (f *askServiceFake) Ask(_ context.Context, request domain.AskRequest) (domain.PipelineContext, error) {
	f.gotRequest = request
	return f.out, f.err
}

type submitterFake struct {
	id  string
	err error
}

func (f *submitterFake) Submit(context.Context, domain.AskRequest) (string, error) {
	return f.id, f.err
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAskReturnsAnswerAndSources(t *testing.T) {
	service := &askServiceFake{
		out: domain.PipelineContext{
			Answer:      "Elixir is a functional language.",
			ContextUsed: []domain.RetrievedChunk{{ID: "c1", Text: "elixir"}},
			Results: []domain.SearchResultBundle{
				{Question: "What is Elixir?", Collection: "default", Iterations: 2},
			},
		},
	}
	handler := NewRouter(service, nil, nil).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/v1/ask", `{"question": "What is Elixir?", "limit": 3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if service.gotRequest.Question != "What is Elixir?" || service.gotRequest.Limit != 3 {
		t.Fatalf("unexpected forwarded request %+v", service.gotRequest)
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "Elixir is a functional language." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if len(resp.ContextUsed) != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected payload %+v", resp)
	}
	if resp.Results[0].Iterations != 2 {
		t.Fatalf("unexpected iterations %d", resp.Results[0].Iterations)
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	handler := NewRouter(&askServiceFake{}, nil, nil).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/v1/ask", `{"question": "   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAskRejectsInvalidJSON(t *testing.T) {
	handler := NewRouter(&askServiceFake{}, nil, nil).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/v1/ask", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAskMapsErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "op", fmt.Errorf("bad")), http.StatusBadRequest},
		{"temporary", domain.WrapError(domain.ErrTemporary, "op", fmt.Errorf("down")), http.StatusServiceUnavailable},
		{"retrieval", domain.WrapError(domain.ErrRetrieval, "op", fmt.Errorf("backend")), http.StatusBadGateway},
		{"generation", domain.WrapError(domain.ErrGeneration, "op", fmt.Errorf("llm")), http.StatusBadGateway},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewRouter(&askServiceFake{err: tc.err}, nil, nil).Handler()
			rec := doRequest(t, handler, http.MethodPost, "/v1/ask", `{"question": "q"}`)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestSubmitQuestionReturnsAccepted(t *testing.T) {
	handler := NewRouter(&askServiceFake{}, &submitterFake{id: "job-1"}, nil).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/v1/questions", `{"question": "q"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["question_id"] != "job-1" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestSubmitQuestionWithoutQueueIsNotImplemented(t *testing.T) {
	handler := NewRouter(&askServiceFake{}, nil, nil).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/v1/questions", `{"question": "q"}`)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := NewRouter(&askServiceFake{}, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := NewRouter(&askServiceFake{}, nil, nil).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/v1/ask", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
