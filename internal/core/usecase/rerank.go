package usecase

import (
	"sort"
	"strings"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// rerankFusedCandidates re-scores the head of a fused candidate list by
// blending the normalized fusion score with lexical overlap against the
// query. Only the first topN entries move; the tail keeps its order.
func rerankFusedCandidates(query string, fused []domain.RetrievedChunk, topN int) []domain.RetrievedChunk {
	if len(fused) == 0 {
		return fused
	}
	if topN <= 0 || topN > len(fused) {
		topN = len(fused)
	}

	head := make([]domain.RetrievedChunk, topN)
	copy(head, fused[:topN])
	queryTokens := toTokenSet(query)

	maxScore := head[0].Score
	for _, chunk := range head[1:] {
		if chunk.Score > maxScore {
			maxScore = chunk.Score
		}
	}

	// Fusion scores within the head cluster tightly (reciprocal ranks
	// differ by hairline margins), so normalize against the maximum
	// instead of stretching the min-max range to [0,1]: a near-tie must
	// stay a near-tie or the overlap term can never reorder it.
	normalize := func(v float64) float64 {
		if maxScore <= 0 {
			return 0
		}
		return v / maxScore
	}

	for i := range head {
		normalizedFused := normalize(head[i].Score)
		overlap := tokenOverlap(queryTokens, toTokenSet(head[i].Text))
		head[i].Score = 0.70*normalizedFused + 0.30*overlap
	}

	sort.SliceStable(head, func(i, j int) bool {
		if head[i].Score != head[j].Score {
			return head[i].Score > head[j].Score
		}
		if head[i].DocumentID != head[j].DocumentID {
			return head[i].DocumentID < head[j].DocumentID
		}
		return head[i].ChunkIndex < head[j].ChunkIndex
	})

	if topN == len(fused) {
		return head
	}

	out := make([]domain.RetrievedChunk, 0, len(fused))
	out = append(out, head...)
	out = append(out, fused[topN:]...)
	return out
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
