package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
)

type RetrieverConfig struct {
	Mode       domain.RetrievalMode
	RRFK       int
	RerankTopN int
}

// Retriever dispatches a query to the configured retrieval backends and
// normalizes the result. Hybrid mode runs lexical and semantic search
// independently at twice the requested limit and fuses with RRF.
type Retriever struct {
	embedder ports.Embedder
	vector   ports.VectorSearcher
	lexical  ports.LexicalSearcher

	mode       domain.RetrievalMode
	rrfK       int
	rerankTopN int
}

func NewRetriever(
	embedder ports.Embedder,
	vector ports.VectorSearcher,
	lexical ports.LexicalSearcher,
	cfg RetrieverConfig,
) (*Retriever, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = domain.ModeHybrid
	}
	switch mode {
	case domain.ModeLexical:
		if lexical == nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "new retriever", fmt.Errorf("lexical searcher is required for mode %q", mode))
		}
	case domain.ModeSemantic:
		if embedder == nil || vector == nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "new retriever", fmt.Errorf("embedder and vector searcher are required for mode %q", mode))
		}
	case domain.ModeHybrid:
		if embedder == nil || vector == nil || lexical == nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "new retriever", fmt.Errorf("embedder, vector and lexical searchers are required for mode %q", mode))
		}
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "new retriever", fmt.Errorf("unknown retrieval mode %q", mode))
	}

	return &Retriever{
		embedder:   embedder,
		vector:     vector,
		lexical:    lexical,
		mode:       mode,
		rrfK:       cfg.RRFK,
		rerankTopN: cfg.RerankTopN,
	}, nil
}

func (r *Retriever) Search(ctx context.Context, query, collection string, limit int, threshold float64) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		limit = domain.DefaultLimit
	}

	switch r.mode {
	case domain.ModeLexical:
		return r.searchLexical(ctx, query, collection, limit)
	case domain.ModeSemantic:
		return r.searchSemantic(ctx, query, collection, limit, threshold)
	default:
		return r.searchHybrid(ctx, query, collection, limit, threshold)
	}
}

func (r *Retriever) searchLexical(ctx context.Context, query, collection string, limit int) ([]domain.RetrievedChunk, error) {
	chunks, err := r.lexical.Search(ctx, collection, query, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "lexical search", err)
	}
	return chunks, nil
}

func (r *Retriever) searchSemantic(ctx context.Context, query, collection string, limit int, threshold float64) ([]domain.RetrievedChunk, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "embed query", err)
	}
	chunks, err := r.vector.Search(ctx, collection, queryVector, limit, threshold)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieval, "semantic search", err)
	}
	return chunks, nil
}

func (r *Retriever) searchHybrid(ctx context.Context, query, collection string, limit int, threshold float64) ([]domain.RetrievedChunk, error) {
	candidates := 2 * limit

	semantic, err := r.searchSemantic(ctx, query, collection, candidates, threshold)
	if err != nil {
		return nil, err
	}
	lexical, err := r.searchLexical(ctx, query, collection, candidates)
	if err != nil {
		return nil, err
	}

	fused := fuseRRF(r.rrfK, 0, semantic, lexical)
	if r.rerankTopN > 0 {
		fused = rerankFusedCandidates(query, fused, r.rerankTopN)
	}
	return trimCandidates(fused, limit), nil
}
