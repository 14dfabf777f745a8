package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// Step is one transformation over the pipeline context. Implementations
// must return the context unchanged when Err is already set, so steps
// compose safely in any subset or order.
type Step interface {
	Name() string
	Run(ctx context.Context, pc domain.PipelineContext) domain.PipelineContext
}

// Pipeline runs an ordered list of steps. Execution short-circuits as
// soon as a step sets Err.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

func (p *Pipeline) Run(ctx context.Context, pc domain.PipelineContext) domain.PipelineContext {
	for _, step := range p.steps {
		if pc.Err != nil {
			return pc
		}
		start := time.Now()
		pc = step.Run(ctx, pc)
		slog.Debug("pipeline_step",
			"step", step.Name(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"failed", pc.Err != nil,
		)
	}
	return pc
}
