package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/membridge/ai"
)

const classificationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "core_concepts": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "concept": {
            "type": "string",
            "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"
          },
          "type": {
            "type": "string"
          },
          "importance": {
            "type": "integer",
            "minimum": 1,
            "maximum": 10
          }
        },
        "required": ["concept", "type", "importance"],
        "additionalProperties": false
      }
    }
  },
  "required": ["core_concepts"],
  "additionalProperties": false
}`

const classificationPromptTemplate = `You index documents for a knowledge base. Extract the most important concepts
from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Concept names must be lowercase, 1-3 words, singular form only.
- Type field must match exactly one of the listed values: %s.
- Importance is an integer from 1 (least relevant) to 10 (most central). Rate how essential the concept is for finding this text again.
- Named parties, documents and amounts usually matter more than generic nouns.
- Include only concepts that are explicitly mentioned or clearly implied by the text. Do not hallucinate.
- If no concepts can be identified, return "core_concepts": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Contract A: supply agreement between Acme Corp and Globex, renews every March"
Output:
{
  "core_concepts": [
    {"concept":"supply agreement","type":"agreement","importance":9},
    {"concept":"acme corp","type":"organization","importance":8},
    {"concept":"globex","type":"organization","importance":8},
    {"concept":"renewal","type":"event","importance":6}
  ]
}

Example (terse note):
Input: "invoice 4411 overdue 30 days"
Output:
{
  "core_concepts": [
    {"concept":"invoice","type":"document","importance":9},
    {"concept":"overdue payment","type":"obligation","importance":7},
    {"concept":"30 days","type":"time","importance":5}
  ]
}

Example (nothing to index):
Input: "ok thanks"
Output:
{
  "core_concepts": []
}`

func buildSystemPrompt() string {
	return fmt.Sprintf(classificationPromptTemplate,
		classificationResponseSchema,
		strings.Join(ai.ConceptTypes, ", "))
}
