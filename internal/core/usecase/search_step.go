package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

type SearchStepConfig struct {
	// SelfCorrect enables the iterate-judge-rewrite loop per pair.
	// When false, each pair is a single retrieval attempt.
	SelfCorrect bool
}

// SearchStep evaluates the Cartesian product of (sub-question,
// collection) pairs. Pairs run concurrently; results are written by
// pair index so Results keeps the deterministic enumeration order.
// One failing pair surfaces as an empty bundle; Err is set only when
// every pair fails.
type SearchStep struct {
	searcher *SelfCorrectingSearcher
	graph    *GraphSearcher
	cfg      SearchStepConfig
}

// NewSearchStep builds the search step. graph may be nil to disable
// graph-enhanced search.
func NewSearchStep(searcher *SelfCorrectingSearcher, graph *GraphSearcher, cfg SearchStepConfig) (*SearchStep, error) {
	if searcher == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new search step", fmt.Errorf("searcher is required"))
	}
	return &SearchStep{
		searcher: searcher,
		graph:    graph,
		cfg:      cfg,
	}, nil
}

func (s *SearchStep) Name() string { return "search" }

func (s *SearchStep) Run(ctx context.Context, pc domain.PipelineContext) domain.PipelineContext {
	if pc.Err != nil {
		return pc
	}

	type searchPair struct {
		question   string
		collection string
	}

	questions := pc.EffectiveQuestions()
	collections := pc.EffectiveCollections()
	pairs := make([]searchPair, 0, len(questions)*len(collections))
	for _, question := range questions {
		for _, collection := range collections {
			pairs = append(pairs, searchPair{question: question, collection: collection})
		}
	}

	bundles := make([]domain.SearchResultBundle, len(pairs))
	errs := make([]error, len(pairs))

	var wg sync.WaitGroup
	for i, pair := range pairs {
		wg.Add(1)
		go func(i int, pair searchPair) {
			defer wg.Done()
			bundles[i], errs[i] = s.searchPair(ctx, pair.question, pair.collection, pc)
		}(i, pair)
	}
	wg.Wait()

	failed := 0
	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = err
		}
		slog.Warn("search_pair_failed",
			"question", pairs[i].question,
			"collection", pairs[i].collection,
			"error", err,
		)
		if bundles[i].Question == "" {
			bundles[i] = domain.SearchResultBundle{
				Question:   pairs[i].question,
				Collection: pairs[i].collection,
				Chunks:     []domain.RetrievedChunk{},
				Iterations: 1,
			}
		}
	}

	// Best effort: partial failures still count as success; only a
	// total retrieval failure errors the context.
	if failed == len(pairs) {
		pc.Err = domain.WrapError(domain.ErrRetrieval, "search step", firstErr)
		return pc
	}

	pc.Results = append(pc.Results, bundles...)
	return pc
}

func (s *SearchStep) searchPair(ctx context.Context, question, collection string, pc domain.PipelineContext) (domain.SearchResultBundle, error) {
	var bundle domain.SearchResultBundle
	var err error

	if s.cfg.SelfCorrect {
		bundle, err = s.searcher.SearchWithMaxIterations(ctx, question, collection, pc.Limit, pc.Threshold, pc.MaxIterations)
	} else {
		var chunks []domain.RetrievedChunk
		chunks, err = s.searcher.retriever.Search(ctx, question, collection, pc.Limit, pc.Threshold)
		bundle = domain.SearchResultBundle{
			Question:   question,
			Collection: collection,
			Chunks:     chunks,
			Iterations: 1,
		}
	}
	if err != nil {
		return bundle, err
	}

	if s.graph != nil {
		bundle.Chunks = s.graph.Enhance(ctx, question, bundle.Chunks, pc.Limit)
	}
	return bundle, nil
}
