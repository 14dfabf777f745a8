package domain

type RetrievalMode string

const (
	ModeLexical  RetrievalMode = "lexical"
	ModeSemantic RetrievalMode = "semantic"
	ModeHybrid   RetrievalMode = "hybrid"
)

func ParseRetrievalMode(s string) (RetrievalMode, bool) {
	switch RetrievalMode(s) {
	case ModeLexical, ModeSemantic, ModeHybrid:
		return RetrievalMode(s), true
	case "":
		return ModeHybrid, true
	default:
		return "", false
	}
}

// RetrievedChunk is the normalized unit of retrieval across lexical,
// semantic and graph backends. ID is the stable identity used for
// deduplication and rank-fusion keying.
type RetrievedChunk struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// SearchResultBundle holds the outcome for one (sub-question, collection)
// pair. Iterations counts retrieval attempts made by the self-correction
// loop for that pair, minimum 1.
type SearchResultBundle struct {
	Question   string           `json:"question"`
	Collection string           `json:"collection"`
	Chunks     []RetrievedChunk `json:"chunks"`
	Iterations int              `json:"iterations"`
}

type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
