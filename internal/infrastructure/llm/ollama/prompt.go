package ollama

import "unicode/utf8"

func buildEntityExtractionPrompt(text string) string {
	const maxSnippet = 4000
	snippet := text
	if len(snippet) > maxSnippet {
		cut := maxSnippet
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}

	return `You extract named entities for knowledge-graph lookup.
Return strict JSON object with a single key:
entities (array of objects with keys name and type).
Use types like person, organization, technology, concept, location.
Return an empty array when no named entities are present.
No markdown, no extra keys.

Text:
` + snippet
}
