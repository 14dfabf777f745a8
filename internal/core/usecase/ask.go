package usecase

import (
	"context"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// AskUseCase assembles the pipeline for one question and runs it to a
// terminal context.
type AskUseCase struct {
	pipeline *Pipeline
	defaults domain.PipelineConfig
}

func NewAskUseCase(pipeline *Pipeline, defaults domain.PipelineConfig) *AskUseCase {
	return &AskUseCase{pipeline: pipeline, defaults: defaults}
}

func (uc *AskUseCase) Ask(ctx context.Context, req domain.AskRequest) (domain.PipelineContext, error) {
	cfg := uc.defaults
	if req.Limit > 0 {
		cfg.Limit = req.Limit
	}
	if req.Threshold > 0 {
		cfg.Threshold = req.Threshold
	}

	pc, err := domain.NewPipelineContext(req.Question, cfg)
	if err != nil {
		return domain.PipelineContext{}, err
	}
	pc.Collections = req.Collections
	pc.SubQuestions = req.SubQuestions

	out := uc.pipeline.Run(ctx, pc)
	return out, out.Err
}
