package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
)

// SelfCorrectingSearcher wraps the retriever in a bounded
// search -> judge sufficiency -> rewrite query -> retry loop. Judge
// failures are recovered locally by fail-open defaults (assume
// sufficient, abandon rewrite), which guarantees termination and
// forward progress on a flaky judge.
type SelfCorrectingSearcher struct {
	retriever     *Retriever
	judge         ports.LLM
	maxIterations int
}

func NewSelfCorrectingSearcher(retriever *Retriever, judge ports.LLM, maxIterations int) (*SelfCorrectingSearcher, error) {
	if retriever == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new self-correcting searcher", fmt.Errorf("retriever is required"))
	}
	if judge == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new self-correcting searcher", fmt.Errorf("judge is required"))
	}
	if maxIterations <= 0 {
		maxIterations = domain.DefaultMaxIterations
	}
	return &SelfCorrectingSearcher{
		retriever:     retriever,
		judge:         judge,
		maxIterations: maxIterations,
	}, nil
}

// Search runs the loop for one (query, collection) pair with the
// construction-time iteration bound. At most maxIterations+1 retrieval
// calls are made: the final attempt skips the sufficiency judgment and
// returns best effort.
func (s *SelfCorrectingSearcher) Search(ctx context.Context, query, collection string, limit int, threshold float64) (domain.SearchResultBundle, error) {
	return s.search(ctx, query, collection, limit, threshold, s.maxIterations)
}

// SearchWithMaxIterations overrides the iteration bound for one call;
// values <= 0 fall back to the construction-time default.
func (s *SelfCorrectingSearcher) SearchWithMaxIterations(ctx context.Context, query, collection string, limit int, threshold float64, maxIterations int) (domain.SearchResultBundle, error) {
	if maxIterations <= 0 {
		maxIterations = s.maxIterations
	}
	return s.search(ctx, query, collection, limit, threshold, maxIterations)
}

func (s *SelfCorrectingSearcher) search(ctx context.Context, query, collection string, limit int, threshold float64, maxIterations int) (domain.SearchResultBundle, error) {
	current := query

	for iteration := 1; ; iteration++ {
		chunks, err := s.retriever.Search(ctx, current, collection, limit, threshold)
		if err != nil {
			return domain.SearchResultBundle{
				Question:   current,
				Collection: collection,
				Chunks:     []domain.RetrievedChunk{},
				Iterations: min(iteration, maxIterations),
			}, err
		}

		if iteration > maxIterations {
			return domain.SearchResultBundle{
				Question:   current,
				Collection: collection,
				Chunks:     chunks,
				Iterations: maxIterations,
			}, nil
		}

		if s.judgeSufficiency(ctx, current, chunks) {
			return domain.SearchResultBundle{
				Question:   current,
				Collection: collection,
				Chunks:     chunks,
				Iterations: iteration,
			}, nil
		}

		rewritten, ok := s.rewriteQuery(ctx, current, chunks)
		if !ok {
			return domain.SearchResultBundle{
				Question:   current,
				Collection: collection,
				Chunks:     chunks,
				Iterations: iteration,
			}, nil
		}

		slog.Debug("self_correction_rewrite",
			"collection", collection,
			"iteration", iteration,
			"query", current,
			"rewritten", rewritten,
		)
		current = rewritten
	}
}

// judgeSufficiency fails open: a judge error or an unparseable response
// counts as sufficient.
func (s *SelfCorrectingSearcher) judgeSufficiency(ctx context.Context, query string, chunks []domain.RetrievedChunk) bool {
	raw, err := s.judge.GenerateJSONFromPrompt(ctx, buildSufficiencyPrompt(query, chunks))
	if err != nil {
		slog.Warn("sufficiency_judge_failed", "query", query, "error", err)
		return true
	}
	sufficient, err := parseSufficiency(raw)
	if err != nil {
		slog.Warn("sufficiency_judge_unparseable", "query", query, "error", err)
		return true
	}
	return sufficient
}

// rewriteQuery fails closed on the loop side: a rewrite error stops the
// loop with the current chunks rather than retrying a failing rewrite.
func (s *SelfCorrectingSearcher) rewriteQuery(ctx context.Context, query string, chunks []domain.RetrievedChunk) (string, bool) {
	raw, err := s.judge.GenerateJSONFromPrompt(ctx, buildRewritePrompt(query, chunks))
	if err != nil {
		slog.Warn("query_rewrite_failed", "query", query, "error", err)
		return "", false
	}
	rewritten, err := parseRewrittenQuery(raw)
	if err != nil {
		slog.Warn("query_rewrite_unparseable", "query", query, "error", err)
		return "", false
	}
	return rewritten, true
}
