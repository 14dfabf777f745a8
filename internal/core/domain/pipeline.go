package domain

import (
	"fmt"
	"strings"
)

const (
	DefaultCollection    = "default"
	DefaultLimit         = 5
	DefaultMaxIterations = 3
)

// PipelineConfig captures the per-question knobs frozen at context
// creation time.
type PipelineConfig struct {
	Limit         int
	Threshold     float64
	MaxIterations int
}

// PipelineContext is the record threaded through every pipeline step.
// A step that finds Err already set must return the context unchanged.
type PipelineContext struct {
	Question      string
	Limit         int
	Threshold     float64
	MaxIterations int

	SubQuestions []string
	Collections  []string

	Results     []SearchResultBundle
	Answer      string
	ContextUsed []RetrievedChunk

	Err error
}

func NewPipelineContext(question string, cfg PipelineConfig) (PipelineContext, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return PipelineContext{}, WrapError(ErrInvalidInput, "create pipeline context", fmt.Errorf("question is required"))
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return PipelineContext{
		Question:      question,
		Limit:         cfg.Limit,
		Threshold:     cfg.Threshold,
		MaxIterations: cfg.MaxIterations,
	}, nil
}

// EffectiveQuestions falls back to the original question when no
// decomposition has run.
func (pc PipelineContext) EffectiveQuestions() []string {
	if len(pc.SubQuestions) > 0 {
		return pc.SubQuestions
	}
	return []string{pc.Question}
}

func (pc PipelineContext) EffectiveCollections() []string {
	if len(pc.Collections) > 0 {
		return pc.Collections
	}
	return []string{DefaultCollection}
}
