package openai

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/poiesic/membridge/ai"
)

// cleanResponse strips whitespace and markdown code fences around a model reply.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairJSON restores the opening quote small models tend to drop before
// object keys, e.g. `{type":"x"}` becomes `{"type":"x"}`.
func repairJSON(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+16)

	for i := 0; i < len(in); {
		ch := in[i]
		out = append(out, ch)
		i++
		if ch != '{' && ch != ',' {
			continue
		}

		for i < len(in) && unicode.IsSpace(in[i]) {
			out = append(out, in[i])
			i++
		}
		if i >= len(in) || !isLetter(in[i]) {
			continue
		}

		start := i
		for i < len(in) && (isLetter(in[i]) || in[i] == '_') {
			i++
		}
		if i+1 < len(in) && in[i] == '"' && in[i+1] == ':' {
			out = append(out, '"')
		}
		out = append(out, in[start:i]...)
	}

	return string(out)
}

// scrubString removes punctuation and surrounding whitespace before text is
// sent to the classifier.
func scrubString(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(".,!?;:\"'()[]{}—–", r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// normalizeConcepts lowercases names, converts type spaces to underscores,
// clamps importance to 1-10, drops concepts under minImportance and merges
// duplicates of the same (type,name) tuple keeping the highest importance.
func normalizeConcepts(raw []concept, minImportance int) []ai.ExtractedConcept {
	byTuple := make(map[string]int, len(raw))
	extracted := make([]ai.ExtractedConcept, 0, len(raw))

	for _, c := range raw {
		name := strings.ToLower(strings.Join(strings.Fields(c.Concept), " "))
		typ := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c.Type)), " ", "_")
		if name == "" || typ == "" {
			continue
		}
		importance := min(max(c.Importance, 1), 10)
		if importance < minImportance {
			continue
		}

		ec := ai.ExtractedConcept{Name: name, Type: typ, Importance: importance}
		if idx, ok := byTuple[ec.Tuple()]; ok {
			extracted[idx].Importance = max(extracted[idx].Importance, importance)
			continue
		}
		byTuple[ec.Tuple()] = len(extracted)
		extracted = append(extracted, ec)
	}

	slices.SortStableFunc(extracted, func(a, b ai.ExtractedConcept) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	return extracted
}
