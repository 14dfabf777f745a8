package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
)

// DecomposeStep asks the model to split the question into independent
// sub-questions for retrieval. Any failure keeps the original question,
// so the step never blocks the pipeline.
type DecomposeStep struct {
	llm             ports.LLM
	maxSubQuestions int
}

func NewDecomposeStep(llm ports.LLM, maxSubQuestions int) (*DecomposeStep, error) {
	if llm == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new decompose step", fmt.Errorf("llm is required"))
	}
	if maxSubQuestions <= 0 {
		maxSubQuestions = 3
	}
	return &DecomposeStep{llm: llm, maxSubQuestions: maxSubQuestions}, nil
}

func (s *DecomposeStep) Name() string { return "decompose" }

func (s *DecomposeStep) Run(ctx context.Context, pc domain.PipelineContext) domain.PipelineContext {
	if pc.Err != nil {
		return pc
	}
	if len(pc.SubQuestions) > 0 {
		return pc
	}

	raw, err := s.llm.GenerateJSONFromPrompt(ctx, buildDecomposePrompt(pc.Question, s.maxSubQuestions))
	if err != nil {
		slog.Warn("question_decomposition_failed", "question", pc.Question, "error", err)
		return pc
	}
	subQuestions, err := parseSubQuestions(raw)
	if err != nil {
		slog.Warn("question_decomposition_unparseable", "question", pc.Question, "error", err)
		return pc
	}
	if len(subQuestions) > s.maxSubQuestions {
		subQuestions = subQuestions[:s.maxSubQuestions]
	}
	// A single sub-question adds nothing over the original.
	if len(subQuestions) < 2 {
		return pc
	}

	pc.SubQuestions = subQuestions
	return pc
}
