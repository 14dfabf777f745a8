package ports

import (
	"context"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// Embedder builds vectors for query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher performs semantic search in one collection.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, queryVector []float32, limit int, threshold float64) ([]domain.RetrievedChunk, error)
}

// LexicalSearcher performs full-text search in one collection.
type LexicalSearcher interface {
	Search(ctx context.Context, collection, query string, limit int) ([]domain.RetrievedChunk, error)
}

// LLM is the judge/generator capability. GenerateJSONFromPrompt asks the
// model for a structured JSON payload; callers parse and decide what to
// do when the shape does not match.
type LLM interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// EntityExtractor extracts named entities from free text.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]domain.Entity, error)
}

// GraphStore is the knowledge-graph capability used by graph-enhanced
// search. Traverse returns the matched ids plus everything reachable
// within depth hops; depth 0 returns the input ids.
type GraphStore interface {
	FindEntities(ctx context.Context, names []string) ([]string, error)
	Traverse(ctx context.Context, ids []string, depth int) ([]string, error)
	ChunksForEntities(ctx context.Context, ids []string) ([]domain.RetrievedChunk, error)
}

// ChunkResolver resolves chunk ids to their canonical stored payloads.
// Graph-enhanced search uses it to hydrate chunks whose graph nodes
// carry only a reference.
type ChunkResolver interface {
	ChunksByIDs(ctx context.Context, ids []string) ([]domain.RetrievedChunk, error)
}

// QuestionQueue publishes/consumes asynchronous question jobs.
type QuestionQueue interface {
	PublishQuestion(ctx context.Context, job domain.QuestionJob) error
	SubscribeQuestions(ctx context.Context, handler func(context.Context, domain.QuestionJob) error) error
	PublishResult(ctx context.Context, result domain.QuestionResult) error
}
