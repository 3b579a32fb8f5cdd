// Package llm generates grounded answers through an OpenAI-compatible
// chat-completions endpoint.
package llm

import "fmt"

// UnknownAnswer is the fixed sentence returned when retrieval produced
// nothing usable. Callers short-circuit to it without a model call.
const UnknownAnswer = "I don't know based on the provided document(s)."

const systemPrompt = "You are a helpful assistant. Answer using ONLY the provided context. " +
	"If the context is insufficient, say you don't know."

const userPromptFormat = `CONTEXT:
%s

QUESTION:
%s

INSTRUCTIONS:
- Use the context only
- Be concise
- If not found in context, say: "I don't know based on the provided document(s)."
`

func buildUserPrompt(question, contextText string) string {
	return fmt.Sprintf(userPromptFormat, contextText, question)
}
