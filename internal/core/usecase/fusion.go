package usecase

import (
	"fmt"
	"sort"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// defaultRRFK dampens the influence of the very top ranks so that
// appearing in multiple lists matters more than a single extreme rank.
const defaultRRFK = 60

type rrfCandidate struct {
	chunk     domain.RetrievedChunk
	score     float64
	firstSeen int
}

// fuseRRF merges ranked lists with Reciprocal Rank Fusion: each list
// contributes 1/(k+rank) per item, absence contributes nothing. The
// first-encountered instance's payload is kept; ties keep the
// first-encountered relative order. Input lists are never mutated.
func fuseRRF(rrfK, limit int, lists ...[]domain.RetrievedChunk) []domain.RetrievedChunk {
	if rrfK <= 0 {
		rrfK = defaultRRFK
	}

	acc := make(map[string]*rrfCandidate)
	order := make([]string, 0)
	for _, list := range lists {
		for rank, chunk := range list {
			key := chunkKey(chunk)
			candidate, ok := acc[key]
			if !ok {
				candidate = &rrfCandidate{chunk: chunk, firstSeen: len(order)}
				acc[key] = candidate
				order = append(order, key)
			}
			candidate.score += 1.0 / float64(rrfK+rank+1)
		}
	}

	out := make([]domain.RetrievedChunk, 0, len(order))
	for _, key := range order {
		candidate := acc[key]
		chunk := candidate.chunk
		chunk.Score = candidate.score
		out = append(out, chunk)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return trimCandidates(out, limit)
}

func trimCandidates(chunks []domain.RetrievedChunk, limit int) []domain.RetrievedChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

func chunkKey(chunk domain.RetrievedChunk) string {
	if chunk.ID != "" {
		return chunk.ID
	}
	return fmt.Sprintf("%s:%d", chunk.DocumentID, chunk.ChunkIndex)
}

// dedupeChunks flattens bundles into one list unique by chunk identity.
// First occurrence wins and relative order is preserved, so the result
// is invariant to duplicate reordering and idempotent under re-dedup.
func dedupeChunks(bundles []domain.SearchResultBundle) []domain.RetrievedChunk {
	seen := make(map[string]struct{})
	out := make([]domain.RetrievedChunk, 0)
	for _, bundle := range bundles {
		for _, chunk := range bundle.Chunks {
			key := chunkKey(chunk)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, chunk)
		}
	}
	return out
}
