package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

func fusionChunk(id string) domain.RetrievedChunk {
	return domain.RetrievedChunk{ID: id, DocumentID: "doc-" + id, ChunkIndex: 0, Text: "text " + id}
}

func TestFuseRRFExactScores(t *testing.T) {
	first := []domain.RetrievedChunk{fusionChunk("A"), fusionChunk("B"), fusionChunk("C")}
	second := []domain.RetrievedChunk{fusionChunk("B"), fusionChunk("D")}

	fused := fuseRRF(60, 0, first, second)
	if len(fused) != 4 {
		t.Fatalf("expected 4 fused chunks, got %d", len(fused))
	}

	wantOrder := []string{"B", "A", "D", "C"}
	wantScores := []float64{1.0/62 + 1.0/61, 1.0 / 61, 1.0 / 62, 1.0 / 63}
	for i, want := range wantOrder {
		if fused[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, fused[i].ID)
		}
		if math.Abs(fused[i].Score-wantScores[i]) > 1e-12 {
			t.Fatalf("chunk %s: expected score %v, got %v", want, wantScores[i], fused[i].Score)
		}
	}
}

func TestFuseRRFSingleListWithItselfKeepsOrder(t *testing.T) {
	list := []domain.RetrievedChunk{fusionChunk("A"), fusionChunk("B"), fusionChunk("C")}

	fused := fuseRRF(60, 0, list, list)
	if len(fused) != len(list) {
		t.Fatalf("expected %d fused chunks, got %d", len(list), len(fused))
	}
	for i := range list {
		if fused[i].ID != list[i].ID {
			t.Fatalf("position %d: expected %s, got %s", i, list[i].ID, fused[i].ID)
		}
		want := 2.0 / float64(60+i+1)
		if math.Abs(fused[i].Score-want) > 1e-12 {
			t.Fatalf("chunk %s: expected score %v, got %v", list[i].ID, want, fused[i].Score)
		}
	}
}

func TestFuseRRFTieBreakKeepsFirstEncounterOrder(t *testing.T) {
	first := []domain.RetrievedChunk{fusionChunk("Z")}
	second := []domain.RetrievedChunk{fusionChunk("A")}

	fused := fuseRRF(1000, 0, first, second)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused chunks, got %d", len(fused))
	}
	if fused[0].ID != "Z" || fused[1].ID != "A" {
		t.Fatalf("expected first-encounter order [Z A], got [%s %s]", fused[0].ID, fused[1].ID)
	}
}

func TestFuseRRFDoesNotMutateInputs(t *testing.T) {
	first := []domain.RetrievedChunk{fusionChunk("A"), fusionChunk("B")}
	second := []domain.RetrievedChunk{fusionChunk("B"), fusionChunk("A")}

	fuseRRF(60, 0, first, second)
	if first[0].ID != "A" || first[0].Score != 0 {
		t.Fatalf("input list mutated: %+v", first[0])
	}
	if second[0].ID != "B" || second[0].Score != 0 {
		t.Fatalf("input list mutated: %+v", second[0])
	}
}

func TestFuseRRFKeepsFirstEncounteredPayload(t *testing.T) {
	rich := domain.RetrievedChunk{ID: "A", Text: "first payload"}
	other := domain.RetrievedChunk{ID: "A", Text: "second payload"}

	fused := fuseRRF(60, 0, []domain.RetrievedChunk{rich}, []domain.RetrievedChunk{other})
	if len(fused) != 1 {
		t.Fatalf("expected 1 fused chunk, got %d", len(fused))
	}
	if fused[0].Text != "first payload" {
		t.Fatalf("expected first-encountered payload, got %q", fused[0].Text)
	}
}

func TestFuseRRFTruncatesToLimit(t *testing.T) {
	list := []domain.RetrievedChunk{fusionChunk("A"), fusionChunk("B"), fusionChunk("C")}

	fused := fuseRRF(60, 2, list)
	if len(fused) != 2 {
		t.Fatalf("expected 2 fused chunks, got %d", len(fused))
	}
}

func TestDedupeChunksFirstOccurrenceWins(t *testing.T) {
	bundles := []domain.SearchResultBundle{
		{Chunks: []domain.RetrievedChunk{
			{ID: "a", Text: "kept"},
			{ID: "b", Text: "b"},
		}},
		{Chunks: []domain.RetrievedChunk{
			{ID: "a", Text: "dropped"},
			{ID: "c", Text: "c"},
		}},
	}

	deduped := dedupeChunks(bundles)
	if len(deduped) != 3 {
		t.Fatalf("expected 3 unique chunks, got %d", len(deduped))
	}
	if deduped[0].ID != "a" || deduped[0].Text != "kept" {
		t.Fatalf("expected first occurrence of chunk a to win, got %+v", deduped[0])
	}
	if deduped[1].ID != "b" || deduped[2].ID != "c" {
		t.Fatalf("expected order [a b c], got [%s %s %s]", deduped[0].ID, deduped[1].ID, deduped[2].ID)
	}
}

func TestDedupeChunksIdempotent(t *testing.T) {
	bundles := []domain.SearchResultBundle{
		{Chunks: []domain.RetrievedChunk{fusionChunk("A"), fusionChunk("B")}},
	}

	once := dedupeChunks(bundles)
	twice := dedupeChunks([]domain.SearchResultBundle{{Chunks: once}})
	if len(once) != len(twice) {
		t.Fatalf("dedup not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatalf("dedup not idempotent at %d: %s vs %s", i, once[i].ID, twice[i].ID)
		}
	}
}
