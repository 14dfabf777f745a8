package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/rag-pipeline/internal/core/domain"
)

func buildSufficiencyPrompt(query string, chunks []domain.RetrievedChunk) string {
	return fmt.Sprintf(`You judge retrieval quality.
Return strict JSON object with a single key:
sufficient (boolean) - whether the context below contains enough information to answer the question.
No markdown, no extra keys.

Question:
%s

Context:
%s`, query, formatChunkContext(chunks))
}

func buildRewritePrompt(query string, chunks []domain.RetrievedChunk) string {
	// Cap the shown chunks to bound prompt size.
	if len(chunks) > 3 {
		chunks = chunks[:3]
	}
	return fmt.Sprintf(`The search results below were judged insufficient to answer the question.
Rewrite the search query to retrieve better results.
Return strict JSON object with a single key:
query (string) - the rewritten search query.
No markdown, no extra keys.

Question:
%s

Insufficient results:
%s`, query, formatChunkContext(chunks))
}

func buildAnswerPrompt(question string, chunks []domain.RetrievedChunk) string {
	return fmt.Sprintf(`Answer the user question only from the context below.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s`, question, formatChunkContext(chunks))
}

func buildGroundednessPrompt(question, answer string, chunks []domain.RetrievedChunk) string {
	return fmt.Sprintf(`You judge answer groundedness.
Return strict JSON object with a single key:
grounded (boolean) - whether every claim in the answer is supported by the context below.
No markdown, no extra keys.

Question:
%s

Answer:
%s

Context:
%s`, question, answer, formatChunkContext(chunks))
}

func buildRegeneratePrompt(question, previousAnswer string, chunks []domain.RetrievedChunk) string {
	return fmt.Sprintf(`The previous answer contained claims not supported by the context.
Write a new answer using only the context below. Do not repeat unsupported claims.

Question:
%s

Previous answer:
%s

Context:
%s`, question, previousAnswer, formatChunkContext(chunks))
}

func buildDecomposePrompt(question string, maxSubQuestions int) string {
	return fmt.Sprintf(`Split the question into at most %d independent sub-questions for retrieval.
If the question is already atomic, return it as the only element.
Return strict JSON object with a single key:
sub_questions (array of strings).
No markdown, no extra keys.

Question:
%s`, maxSubQuestions, question)
}

func formatChunkContext(chunks []domain.RetrievedChunk) string {
	if len(chunks) == 0 {
		return "(no results)"
	}
	var b strings.Builder
	for idx, chunk := range chunks {
		fmt.Fprintf(&b, "[%d] doc=%s chunk=%d score=%.3f\n%s\n\n", idx+1, chunk.DocumentID, chunk.ChunkIndex, chunk.Score, chunk.Text)
	}
	return b.String()
}

func parseSufficiency(raw string) (bool, error) {
	var payload struct {
		Sufficient *bool `json:"sufficient"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return false, fmt.Errorf("parse sufficiency json: %w", err)
	}
	if payload.Sufficient == nil {
		return false, fmt.Errorf("sufficiency response missing 'sufficient' key")
	}
	return *payload.Sufficient, nil
}

func parseRewrittenQuery(raw string) (string, error) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return "", fmt.Errorf("parse rewrite json: %w", err)
	}
	query := strings.TrimSpace(payload.Query)
	if query == "" {
		return "", fmt.Errorf("rewrite response missing 'query' key")
	}
	return query, nil
}

func parseGroundedness(raw string) (bool, error) {
	var payload struct {
		Grounded *bool `json:"grounded"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return false, fmt.Errorf("parse groundedness json: %w", err)
	}
	if payload.Grounded == nil {
		return false, fmt.Errorf("groundedness response missing 'grounded' key")
	}
	return *payload.Grounded, nil
}

func parseSubQuestions(raw string) ([]string, error) {
	var payload struct {
		SubQuestions []string `json:"sub_questions"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return nil, fmt.Errorf("parse decomposition json: %w", err)
	}
	out := make([]string, 0, len(payload.SubQuestions))
	for _, q := range payload.SubQuestions {
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}
	return out, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
