package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

// Store serves knowledge-graph lookups over Neo4j. The expected model:
// (:Entity {id, name, type})-[:RELATED_TO]-(:Entity) and
// (:Entity)-[:MENTIONED_IN]->(:Chunk {id, doc_id, chunk_index, text}).
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

func New(uri, username, password, database string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Store{driver: driver, database: database}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) FindEntities(ctx context.Context, names []string) ([]string, error) {
	lowered := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			lowered = append(lowered, strings.ToLower(trimmed))
		}
	}
	if len(lowered) == 0 {
		return nil, nil
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, `
MATCH (e:Entity)
WHERE toLower(e.name) IN $names
RETURN DISTINCT e.id AS id
`, map[string]any{"names": lowered},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}
	return collectIDs(result.Records)
}

func (s *Store) Traverse(ctx context.Context, ids []string, depth int) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if depth <= 0 {
		return ids, nil
	}

	// Cypher cannot parameterize variable-length bounds, so the depth is
	// formatted into the pattern. It is an int, never user text.
	query := fmt.Sprintf(`
MATCH (e:Entity)
WHERE e.id IN $ids
OPTIONAL MATCH (e)-[:RELATED_TO*1..%d]-(related:Entity)
WITH collect(DISTINCT e.id) + collect(DISTINCT related.id) AS all_ids
UNWIND all_ids AS id
WITH id WHERE id IS NOT NULL
RETURN DISTINCT id
`, depth)

	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"ids": ids},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("traverse entities: %w", err)
	}
	return collectIDs(result.Records)
}

func (s *Store) ChunksForEntities(ctx context.Context, ids []string) ([]domain.RetrievedChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, `
MATCH (e:Entity)-[:MENTIONED_IN]->(c:Chunk)
WHERE e.id IN $ids
RETURN DISTINCT c.id AS id, c.doc_id AS doc_id, c.chunk_index AS chunk_index, c.text AS text
`, map[string]any{"ids": ids},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("chunks for entities: %w", err)
	}

	out := make([]domain.RetrievedChunk, 0, len(result.Records))
	for _, record := range result.Records {
		chunk := domain.RetrievedChunk{
			ID:         stringValue(record, "id"),
			DocumentID: stringValue(record, "doc_id"),
			Text:       stringValue(record, "text"),
		}
		if idx, ok := intValue(record, "chunk_index"); ok {
			chunk.ChunkIndex = idx
		}
		if chunk.ID == "" {
			continue
		}
		out = append(out, chunk)
	}
	return out, nil
}

func collectIDs(records []*neo4j.Record) ([]string, error) {
	out := make([]string, 0, len(records))
	for _, record := range records {
		if id := stringValue(record, "id"); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func stringValue(record *neo4j.Record, key string) string {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return ""
	}
	if v, ok := raw.(string); ok {
		return v
	}
	return fmt.Sprint(raw)
}

func intValue(record *neo4j.Record, key string) (int, bool) {
	raw, ok := record.Get(key)
	if !ok || raw == nil {
		return 0, false
	}
	if v, ok := raw.(int64); ok {
		return int(v), true
	}
	return 0, false
}
