package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
	"github.com/kirillkom/rag-pipeline/internal/core/ports"
)

// GraphSearcher layers knowledge-graph retrieval over an existing
// result list: entities extracted from the query are matched in the
// graph, their neighborhood is traversed, and chunks mentioning any
// reached entity are fused with the base list via RRF. Every failure
// degrades to the base list, since the base result is already valid.
type GraphSearcher struct {
	extractor ports.EntityExtractor
	graph     ports.GraphStore
	resolver  ports.ChunkResolver
	depth     int
	rrfK      int
}

// NewGraphSearcher builds the graph layer. resolver may be nil when
// graph nodes carry full chunk payloads themselves.
func NewGraphSearcher(extractor ports.EntityExtractor, graph ports.GraphStore, resolver ports.ChunkResolver, depth, rrfK int) (*GraphSearcher, error) {
	if extractor == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new graph searcher", fmt.Errorf("entity extractor is required"))
	}
	if graph == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "new graph searcher", fmt.Errorf("graph store is required"))
	}
	if depth < 0 {
		depth = 0
	}
	return &GraphSearcher{
		extractor: extractor,
		graph:     graph,
		resolver:  resolver,
		depth:     depth,
		rrfK:      rrfK,
	}, nil
}

func (g *GraphSearcher) Enhance(ctx context.Context, query string, base []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	entities, err := g.extractor.Extract(ctx, query)
	if err != nil {
		slog.Warn("entity_extraction_failed", "query", query, "error", err)
		return base
	}
	if len(entities) == 0 {
		return base
	}

	names := make([]string, 0, len(entities))
	for _, entity := range entities {
		if entity.Name != "" {
			names = append(names, entity.Name)
		}
	}
	if len(names) == 0 {
		return base
	}

	ids, err := g.graph.FindEntities(ctx, names)
	if err != nil {
		slog.Warn("graph_entity_lookup_failed", "query", query, "error", err)
		return base
	}
	if len(ids) == 0 {
		return base
	}

	reached, err := g.graph.Traverse(ctx, ids, g.depth)
	if err != nil {
		slog.Warn("graph_traversal_failed", "query", query, "error", err)
		return base
	}

	graphChunks, err := g.graph.ChunksForEntities(ctx, reached)
	if err != nil {
		slog.Warn("graph_chunk_resolution_failed", "query", query, "error", err)
		return base
	}
	if len(graphChunks) == 0 {
		return base
	}
	graphChunks = g.hydrateChunks(ctx, graphChunks)

	slog.Debug("graph_enhanced_search",
		"query", query,
		"entities", len(names),
		"reached", len(reached),
		"graph_chunks", len(graphChunks),
	)
	return fuseRRF(g.rrfK, limit, base, graphChunks)
}

// hydrateChunks fills text-less graph chunks from the canonical chunk
// store. Resolution failure leaves the chunks as delivered by the
// graph, matching the degrade-to-base posture of the rest of the layer.
func (g *GraphSearcher) hydrateChunks(ctx context.Context, chunks []domain.RetrievedChunk) []domain.RetrievedChunk {
	if g.resolver == nil {
		return chunks
	}

	missing := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Text == "" && chunk.ID != "" {
			missing = append(missing, chunk.ID)
		}
	}
	if len(missing) == 0 {
		return chunks
	}

	resolved, err := g.resolver.ChunksByIDs(ctx, missing)
	if err != nil {
		slog.Warn("graph_chunk_hydration_failed", "ids", len(missing), "error", err)
		return chunks
	}

	byID := make(map[string]domain.RetrievedChunk, len(resolved))
	for _, chunk := range resolved {
		byID[chunk.ID] = chunk
	}
	for i := range chunks {
		stored, ok := byID[chunks[i].ID]
		if !ok || chunks[i].Text != "" {
			continue
		}
		chunks[i].Text = stored.Text
		chunks[i].DocumentID = stored.DocumentID
		chunks[i].ChunkIndex = stored.ChunkIndex
	}
	return chunks
}
