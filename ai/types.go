package ai

import "slices"

// ConceptTypes defines the valid categories for extracted concepts.
// Extractors are prompted with this list; types outside it are kept but
// reported through IsConceptType.
var ConceptTypes = []string{
	"abstract_concept",
	"activity",
	"agreement",
	"amount",
	"date",
	"document",
	"event",
	"location",
	"measurement",
	"obligation",
	"occupation",
	"organization",
	"person",
	"product",
	"project",
	"role",
	"software",
	"technology",
	"time",
	"tool",
}

// IsConceptType reports whether t is one of ConceptTypes.
func IsConceptType(t string) bool {
	return slices.Contains(ConceptTypes, t)
}
