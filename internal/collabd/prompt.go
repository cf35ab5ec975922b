package collabd

import (
	"fmt"

	"github.com/kalambet/keyweave/internal/engine"
)

const conceptSystemPrompt = `You are a creative writing assistant. The user is writing a short story and wants ideas for how a keyword could enter it. Your output must be ONLY a single valid JSON object that conforms to the provided schema. Do not include any other text, prose, or markdown.

Rules:
- concept_detail is two or three sentences describing a concrete scene, object or event built around the keyword.
- Stay consistent with the characters, setting and tone of the story.
- Do not rewrite the story itself.`

const mergeSystemPrompt = `You are a careful story editor. You receive a story, a keyword and a concept note. Weave the concept into the story so the keyword appears naturally. Your output must be ONLY a single valid JSON object that conforms to the provided schema.

Rules:
- Keep the original wording wherever the concept does not require a change.
- Keep roughly the original length; add at most a few sentences.
- merged_story contains the full revised story.`

const searchSystemPrompt = `You suggest keywords for a creative writing tool. Given a theme, list short keywords (one to three words each) a writer could weave into a story about it. Your output must be ONLY a single valid JSON object that conforms to the provided schema.

Rules:
- Return between 3 and 8 keywords.
- Prefer concrete nouns and vivid phrases over abstract ideas.
- Do not repeat the theme itself.`

// BuildConceptPrompt constructs the chat messages for a concept detail.
func BuildConceptPrompt(story, keyword string) []engine.Message {
	return engine.Conversation(conceptSystemPrompt, fmt.Sprintf("[Story]\n%s\n\n[Keyword]\n%s", story, keyword))
}

// BuildMergePrompt constructs the chat messages for a story merge.
func BuildMergePrompt(story, detail, keyword string) []engine.Message {
	return engine.Conversation(mergeSystemPrompt, fmt.Sprintf("[Story]\n%s\n\n[Keyword]\n%s\n\n[Concept]\n%s", story, keyword, detail))
}

// BuildSearchPrompt constructs the chat messages for a keyword search.
func BuildSearchPrompt(query string) []engine.Message {
	return engine.Conversation(searchSystemPrompt, query)
}

func conceptSchema() *engine.Schema {
	return engine.SingleField("concept_detail", engine.SchemaProperty{Type: "string", Description: "Two or three sentences elaborating the keyword"})
}

func mergeSchema() *engine.Schema {
	return engine.SingleField("merged_story", engine.SchemaProperty{Type: "string", Description: "The full revised story"})
}

func searchSchema() *engine.Schema {
	return engine.SingleField("keywords", engine.SchemaProperty{
		Type:        "array",
		Description: "Suggested keywords",
		Items:       &engine.SchemaProperty{Type: "string"},
	})
}
