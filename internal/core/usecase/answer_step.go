package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
)

type AnswerStepConfig struct {
	// Correct enables the groundedness judge-and-regenerate loop on
	// the synthesized answer.
	Correct        bool
	MaxCorrections int
}

// AnswerStep deduplicates the retrieved chunks and synthesizes the
// final answer. A generator failure errors the context; re-running the
// step on an errored context is a no-op.
type AnswerStep struct {
	generator ports.LLM
	cfg       AnswerStepConfig
}

func NewAnswerStep(generator ports.LLM, cfg AnswerStepConfig) (*AnswerStep, error) {
	if generator == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new answer step", fmt.Errorf("generator is required"))
	}
	if cfg.Correct && cfg.MaxCorrections <= 0 {
		cfg.MaxCorrections = 1
	}
	return &AnswerStep{generator: generator, cfg: cfg}, nil
}

func (s *AnswerStep) Name() string { return "answer" }

func (s *AnswerStep) Run(ctx context.Context, pc domain.PipelineContext) domain.PipelineContext {
	if pc.Err != nil {
		return pc
	}

	chunks := dedupeChunks(pc.Results)

	answer, err := s.generator.GenerateFromPrompt(ctx, buildAnswerPrompt(pc.Question, chunks))
	if err != nil {
		pc.Err = domain.WrapError(domain.ErrGeneration, "answer step", err)
		return pc
	}

	if s.cfg.Correct {
		answer = s.refineAnswer(ctx, pc.Question, answer, chunks)
	}

	pc.Answer = answer
	pc.ContextUsed = chunks
	return pc
}

// refineAnswer runs the bounded groundedness loop. It mirrors the
// search-side self-correction: a judge failure accepts the current
// answer, a regeneration failure keeps the last one.
func (s *AnswerStep) refineAnswer(ctx context.Context, question, answer string, chunks []domain.RetrievedChunk) string {
	for attempt := 1; attempt <= s.cfg.MaxCorrections; attempt++ {
		raw, err := s.generator.GenerateJSONFromPrompt(ctx, buildGroundednessPrompt(question, answer, chunks))
		if err != nil {
			slog.Warn("groundedness_judge_failed", "attempt", attempt, "error", err)
			return answer
		}
		grounded, err := parseGroundedness(raw)
		if err != nil {
			slog.Warn("groundedness_judge_unparseable", "attempt", attempt, "error", err)
			return answer
		}
		if grounded {
			return answer
		}

		regenerated, err := s.generator.GenerateFromPrompt(ctx, buildRegeneratePrompt(question, answer, chunks))
		if err != nil {
			slog.Warn("answer_regeneration_failed", "attempt", attempt, "error", err)
			return answer
		}
		answer = regenerated
	}
	return answer
}
