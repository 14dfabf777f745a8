package usecase

import (
	"testing"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

func TestRerankFusedCandidatesPromotesLexicalOverlap(t *testing.T) {
	fused := []domain.RetrievedChunk{
		{ID: "a", Text: "unrelated content", Score: 0.034},
		{ID: "b", Text: "elixir runs on the beam virtual machine", Score: 0.033},
	}

	out := rerankFusedCandidates("elixir beam", fused, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	if out[0].ID != "b" {
		t.Fatalf("expected overlapping chunk promoted, got %s", out[0].ID)
	}
}

func TestRerankFusedCandidatesKeepsTailOrder(t *testing.T) {
	fused := []domain.RetrievedChunk{
		{ID: "a", Text: "alpha", Score: 0.05},
		{ID: "b", Text: "beta", Score: 0.04},
		{ID: "c", Text: "tail one", Score: 0.03},
		{ID: "d", Text: "tail two", Score: 0.02},
	}

	out := rerankFusedCandidates("query", fused, 2)
	if len(out) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(out))
	}
	if out[2].ID != "c" || out[3].ID != "d" {
		t.Fatalf("expected tail untouched, got [%s %s]", out[2].ID, out[3].ID)
	}
}

func TestRerankFusedCandidatesEmptyInput(t *testing.T) {
	if out := rerankFusedCandidates("q", nil, 5); len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}
