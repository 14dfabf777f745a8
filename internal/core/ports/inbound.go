package ports

import (
	"context"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// QuestionService is the inbound contract for running the full pipeline.
// The returned context carries either a populated Answer or a non-nil Err.
type QuestionService interface {
	Ask(ctx context.Context, req domain.AskRequest) (domain.PipelineContext, error)
}

// QuestionSubmitter is the inbound contract for asynchronous question
// processing. Submit enqueues a job and returns its id.
type QuestionSubmitter interface {
	Submit(ctx context.Context, req domain.AskRequest) (string, error)
}
