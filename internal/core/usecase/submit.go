package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
)

// SubmitQuestionUseCase enqueues a question for asynchronous processing
// and returns the job id the caller can correlate results with.
type SubmitQuestionUseCase struct {
	queue ports.QuestionQueue
	now   func() time.Time
}

func NewSubmitQuestionUseCase(queue ports.QuestionQueue) (*SubmitQuestionUseCase, error) {
	if queue == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new submit use case", fmt.Errorf("question queue is required"))
	}
	return &SubmitQuestionUseCase{queue: queue, now: time.Now}, nil
}

func (uc *SubmitQuestionUseCase) Submit(ctx context.Context, request domain.AskRequest) (string, error) {
	if strings.TrimSpace(request.Question) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "submit question", fmt.Errorf("question is required"))
	}

	job := domain.QuestionJob{
		ID:          uuid.NewString(),
		Question:    request.Question,
		Collections: request.Collections,
		Limit:       request.Limit,
		SubmittedAt: uc.now().UTC(),
	}
	if err := uc.queue.PublishQuestion(ctx, job); err != nil {
		return "", domain.WrapError(domain.ErrTemporary, "publish question", err)
	}
	return job.ID, nil
}
