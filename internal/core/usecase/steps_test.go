package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// pairLexicalFake is safe for concurrent pair evaluation. Collections
// listed in failing return an error.
type pairLexicalFake struct {
	mu      sync.Mutex
	calls   []string
	chunks  []domain.RetrievedChunk
	failing map[string]bool
}

func (f *pairLexicalFake) Search(_ context.Context, collection, query string, _ int) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	f.calls = append(f.calls, collection+"/"+query)
	f.mu.Unlock()
	if f.failing[collection] {
		return nil, fmt.Errorf("collection %s unavailable", collection)
	}
	return f.chunks, nil
}

// staticJudge always returns the same structured verdict; safe for
// concurrent use.
type staticJudge struct {
	response string
}

func (f *staticJudge) GenerateFromPrompt(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func (f *staticJudge) GenerateJSONFromPrompt(context.Context, string) (string, error) {
	return f.response, nil
}

type generatorFake struct {
	answers     []string
	jsonReplies []string
	err         error
	calls       int
	jsonCalls   int
	lastPrompt  string
}

func (f *generatorFake) GenerateFromPrompt(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) > 0 {
		answer := f.answers[0]
		if len(f.answers) > 1 {
			f.answers = f.answers[1:]
		}
		return answer, nil
	}
	return "generated answer", nil
}

func (f *generatorFake) GenerateJSONFromPrompt(context.Context, string) (string, error) {
	idx := f.jsonCalls
	f.jsonCalls++
	if idx < len(f.jsonReplies) {
		return f.jsonReplies[idx], nil
	}
	return "", errors.New("no reply scripted")
}

func newTestSearchStep(t *testing.T, lexical *pairLexicalFake, judge *staticJudge, graph *GraphSearcher) *SearchStep {
	t.Helper()
	searcher, err := NewSelfCorrectingSearcher(newLexicalRetrieverFromPairFake(t, lexical), judge, 3)
	if err != nil {
		t.Fatalf("NewSelfCorrectingSearcher() error = %v", err)
	}
	step, err := NewSearchStep(searcher, graph, SearchStepConfig{SelfCorrect: true})
	if err != nil {
		t.Fatalf("NewSearchStep() error = %v", err)
	}
	return step
}

func newLexicalRetrieverFromPairFake(t *testing.T, lexical *pairLexicalFake) *Retriever {
	t.Helper()
	retriever, err := NewRetriever(nil, nil, lexical, RetrieverConfig{Mode: domain.ModeLexical})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	return retriever
}

func newTestContext(t *testing.T, question string) domain.PipelineContext {
	t.Helper()
	pc, err := domain.NewPipelineContext(question, domain.PipelineConfig{})
	if err != nil {
		t.Fatalf("NewPipelineContext() error = %v", err)
	}
	return pc
}

func TestSearchStepSingleQuestionSingleCollection(t *testing.T) {
	lexical := &pairLexicalFake{chunks: []domain.RetrievedChunk{{ID: "c1"}, {ID: "c2"}}}
	step := newTestSearchStep(t, lexical, &staticJudge{response: `{"sufficient": true}`}, nil)

	pc := newTestContext(t, "What is Elixir?")
	out := step.Run(context.Background(), pc)
	if out.Err != nil {
		t.Fatalf("Run() error = %v", out.Err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected exactly 1 bundle, got %d", len(out.Results))
	}
	bundle := out.Results[0]
	if bundle.Iterations != 1 {
		t.Fatalf("expected iterations=1, got %d", bundle.Iterations)
	}
	if bundle.Collection != domain.DefaultCollection {
		t.Fatalf("expected default collection, got %s", bundle.Collection)
	}
	if len(bundle.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(bundle.Chunks))
	}
}

func TestSearchStepHonorsContextMaxIterations(t *testing.T) {
	lexical := &pairLexicalFake{chunks: []domain.RetrievedChunk{{ID: "c"}}}
	// One verdict serves both prompts: never sufficient, always rewritable.
	step := newTestSearchStep(t, lexical, &staticJudge{response: `{"sufficient": false, "query": "rewritten form"}`}, nil)

	pc := newTestContext(t, "q")
	pc.MaxIterations = 1

	out := step.Run(context.Background(), pc)
	if out.Err != nil {
		t.Fatalf("Run() error = %v", out.Err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("expected 1 bundle, got %d", len(out.Results))
	}
	if out.Results[0].Iterations != 1 {
		t.Fatalf("expected the context bound of 1 iteration, got %d", out.Results[0].Iterations)
	}
	if len(lexical.calls) != 2 {
		t.Fatalf("expected 1+1 retrieval calls under the context bound, got %d", len(lexical.calls))
	}
}

func TestSearchStepPairCompletenessAndOrder(t *testing.T) {
	lexical := &pairLexicalFake{chunks: []domain.RetrievedChunk{{ID: "c"}}}
	step := newTestSearchStep(t, lexical, &staticJudge{response: `{"sufficient": true}`}, nil)

	pc := newTestContext(t, "root question")
	pc.SubQuestions = []string{"sq1", "sq2"}
	pc.Collections = []string{"alpha", "beta"}

	out := step.Run(context.Background(), pc)
	if out.Err != nil {
		t.Fatalf("Run() error = %v", out.Err)
	}
	if len(out.Results) != 4 {
		t.Fatalf("expected |sub_questions| x |collections| = 4 bundles, got %d", len(out.Results))
	}

	wantPairs := [][2]string{
		{"sq1", "alpha"}, {"sq1", "beta"},
		{"sq2", "alpha"}, {"sq2", "beta"},
	}
	for i, want := range wantPairs {
		if out.Results[i].Question != want[0] || out.Results[i].Collection != want[1] {
			t.Fatalf("bundle %d: expected (%s,%s), got (%s,%s)",
				i, want[0], want[1], out.Results[i].Question, out.Results[i].Collection)
		}
	}
}

func TestSearchStepPartialFailureIsBestEffort(t *testing.T) {
	lexical := &pairLexicalFake{
		chunks:  []domain.RetrievedChunk{{ID: "c"}},
		failing: map[string]bool{"broken": true},
	}
	step := newTestSearchStep(t, lexical, &staticJudge{response: `{"sufficient": true}`}, nil)

	pc := newTestContext(t, "q")
	pc.Collections = []string{"healthy", "broken"}

	out := step.Run(context.Background(), pc)
	if out.Err != nil {
		t.Fatalf("expected best-effort success, got error %v", out.Err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 bundles, got %d", len(out.Results))
	}
	if len(out.Results[0].Chunks) != 1 {
		t.Fatalf("expected healthy pair to carry chunks, got %d", len(out.Results[0].Chunks))
	}
	if len(out.Results[1].Chunks) != 0 {
		t.Fatalf("expected failed pair to surface empty chunks, got %d", len(out.Results[1].Chunks))
	}
}

func TestSearchStepAllPairsFailedSetsError(t *testing.T) {
	lexical := &pairLexicalFake{failing: map[string]bool{"broken": true}}
	step := newTestSearchStep(t, lexical, &staticJudge{response: `{"sufficient": true}`}, nil)

	pc := newTestContext(t, "q")
	pc.Collections = []string{"broken"}

	out := step.Run(context.Background(), pc)
	if !domain.IsKind(out.Err, domain.ErrRetrieval) {
		t.Fatalf("expected retrieval error when every pair fails, got %v", out.Err)
	}
	if len(out.Results) != 0 {
		t.Fatalf("expected no results on total failure, got %d", len(out.Results))
	}
}

func TestSearchStepPassesThroughErroredContext(t *testing.T) {
	lexical := &pairLexicalFake{chunks: []domain.RetrievedChunk{{ID: "c"}}}
	step := newTestSearchStep(t, lexical, &staticJudge{response: `{"sufficient": true}`}, nil)

	pc := newTestContext(t, "q")
	pc.Err = errors.New("upstream failure")

	out := step.Run(context.Background(), pc)
	if len(lexical.calls) != 0 {
		t.Fatalf("expected no capability calls on errored context, got %d", len(lexical.calls))
	}
	if len(out.Results) != 0 || out.Err == nil {
		t.Fatalf("expected context passed through unchanged")
	}
}

func TestAnswerStepDeduplicatesAndAnswers(t *testing.T) {
	generator := &generatorFake{}
	step, err := NewAnswerStep(generator, AnswerStepConfig{})
	if err != nil {
		t.Fatalf("NewAnswerStep() error = %v", err)
	}

	pc := newTestContext(t, "q")
	pc.Results = []domain.SearchResultBundle{
		{Chunks: []domain.RetrievedChunk{{ID: "a", Text: "first"}, {ID: "b", Text: "b"}}},
		{Chunks: []domain.RetrievedChunk{{ID: "a", Text: "dup"}, {ID: "c", Text: "c"}}},
	}

	out := step.Run(context.Background(), pc)
	if out.Err != nil {
		t.Fatalf("Run() error = %v", out.Err)
	}
	if out.Answer != "generated answer" {
		t.Fatalf("expected answer set, got %q", out.Answer)
	}
	if len(out.ContextUsed) != 3 {
		t.Fatalf("expected 3 deduplicated chunks, got %d", len(out.ContextUsed))
	}
	if out.ContextUsed[0].Text != "first" {
		t.Fatalf("expected first occurrence to win, got %q", out.ContextUsed[0].Text)
	}
}

func TestAnswerStepGeneratorFailure(t *testing.T) {
	generator := &generatorFake{err: errors.New("llm down")}
	step, _ := NewAnswerStep(generator, AnswerStepConfig{})

	pc := newTestContext(t, "q")
	out := step.Run(context.Background(), pc)
	if !domain.IsKind(out.Err, domain.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", out.Err)
	}
	if out.Answer != "" || out.ContextUsed != nil {
		t.Fatalf("expected answer and context unset on failure")
	}

	// A second call on the errored context is a no-op.
	callsBefore := generator.calls
	again := step.Run(context.Background(), out)
	if generator.calls != callsBefore {
		t.Fatalf("expected no generator call on errored context")
	}
	if again.Err == nil || again.Answer != "" {
		t.Fatalf("expected unchanged errored context")
	}
}

func TestAnswerStepGroundednessRegeneratesOnce(t *testing.T) {
	generator := &generatorFake{
		answers:     []string{"ungrounded answer", "grounded answer"},
		jsonReplies: []string{`{"grounded": false}`, `{"grounded": true}`},
	}
	step, _ := NewAnswerStep(generator, AnswerStepConfig{Correct: true, MaxCorrections: 2})

	pc := newTestContext(t, "q")
	out := step.Run(context.Background(), pc)
	if out.Err != nil {
		t.Fatalf("Run() error = %v", out.Err)
	}
	if out.Answer != "grounded answer" {
		t.Fatalf("expected regenerated answer, got %q", out.Answer)
	}
}

func TestAnswerStepGroundednessJudgeFailureKeepsAnswer(t *testing.T) {
	generator := &generatorFake{answers: []string{"initial answer"}}
	step, _ := NewAnswerStep(generator, AnswerStepConfig{Correct: true, MaxCorrections: 2})

	pc := newTestContext(t, "q")
	out := step.Run(context.Background(), pc)
	if out.Err != nil {
		t.Fatalf("Run() error = %v", out.Err)
	}
	if out.Answer != "initial answer" {
		t.Fatalf("expected fail-open to keep the answer, got %q", out.Answer)
	}
}

func TestDecomposeStepSetsSubQuestions(t *testing.T) {
	llm := &generatorFake{jsonReplies: []string{`{"sub_questions": ["part one", "part two"]}`}}
	step, err := NewDecomposeStep(llm, 3)
	if err != nil {
		t.Fatalf("NewDecomposeStep() error = %v", err)
	}

	pc := newTestContext(t, "compound question")
	out := step.Run(context.Background(), pc)
	if len(out.SubQuestions) != 2 {
		t.Fatalf("expected 2 sub-questions, got %d", len(out.SubQuestions))
	}
}

func TestDecomposeStepFailsOpen(t *testing.T) {
	llm := &generatorFake{}
	step, _ := NewDecomposeStep(llm, 3)

	pc := newTestContext(t, "q")
	out := step.Run(context.Background(), pc)
	if len(out.SubQuestions) != 0 {
		t.Fatalf("expected original question kept on decomposition failure")
	}
}

func TestPipelineShortCircuitsAfterError(t *testing.T) {
	lexical := &pairLexicalFake{failing: map[string]bool{domain.DefaultCollection: true}}
	searchStep := newTestSearchStep(t, lexical, &staticJudge{response: `{"sufficient": true}`}, nil)
	generator := &generatorFake{}
	answerStep, _ := NewAnswerStep(generator, AnswerStepConfig{})

	pipeline := NewPipeline(searchStep, answerStep)
	pc := newTestContext(t, "q")

	out := pipeline.Run(context.Background(), pc)
	if !domain.IsKind(out.Err, domain.ErrRetrieval) {
		t.Fatalf("expected retrieval error, got %v", out.Err)
	}
	if generator.calls != 0 {
		t.Fatalf("expected answer step skipped after search failure")
	}
	if out.Answer != "" {
		t.Fatalf("expected no answer on errored pipeline")
	}
}
