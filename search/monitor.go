package search

import (
	"iter"
	"log/slog"

	"github.com/poiesic/membridge/core"
)

// SearchMonitor provides hooks to observe the search process.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(ids []core.ID)
	AfterQueryConceptExtraction(concepts []*core.Concept)
	FoundRelatedEntries(tuple string, entryIDs []core.ID)
	AfterConceptuallyRelatedSearch(ids iter.Seq[core.ID])
	AfterEntryRetrieval(entries []*core.Entry)
	SemanticAndConceptualHit(entry *core.Entry)
	SemanticHit(entry *core.Entry)
	ConceptualHit(entry *core.Entry)
	Finish(results []*core.SearchResult)
}

type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                     {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.ID)                    {}
func (n *noopMonitor) AfterQueryConceptExtraction(_ []*core.Concept)      {}
func (n *noopMonitor) FoundRelatedEntries(_ string, _ []core.ID)          {}
func (n *noopMonitor) AfterConceptuallyRelatedSearch(_ iter.Seq[core.ID]) {}
func (n *noopMonitor) AfterEntryRetrieval(_ []*core.Entry)                {}
func (n *noopMonitor) SemanticAndConceptualHit(_ *core.Entry)             {}
func (n *noopMonitor) SemanticHit(_ *core.Entry)                          {}
func (n *noopMonitor) ConceptualHit(_ *core.Entry)                        {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                      {}

// LogMonitor reports each search stage to a logger at debug level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ SearchMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a LogMonitor writing to logger.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "search-monitor")}
}

func (m *LogMonitor) Start(query string) {
	m.logger.Debug("search started", "query", query)
}

func (m *LogMonitor) AfterSemanticSearch(ids []core.ID) {
	m.logger.Debug("semantic hits", "count", len(ids))
}

func (m *LogMonitor) AfterQueryConceptExtraction(concepts []*core.Concept) {
	tuples := make([]string, len(concepts))
	for i, c := range concepts {
		tuples[i] = c.Tuple()
	}
	m.logger.Debug("query concepts", "concepts", tuples)
}

func (m *LogMonitor) FoundRelatedEntries(tuple string, entryIDs []core.ID) {
	m.logger.Debug("concept entries", "concept", tuple, "count", len(entryIDs))
}

func (m *LogMonitor) AfterConceptuallyRelatedSearch(ids iter.Seq[core.ID]) {
	count := 0
	for range ids {
		count++
	}
	m.logger.Debug("conceptual hits", "count", count)
}

func (m *LogMonitor) AfterEntryRetrieval(entries []*core.Entry) {
	m.logger.Debug("entries retrieved", "count", len(entries))
}

func (m *LogMonitor) SemanticAndConceptualHit(entry *core.Entry) {
	m.logger.Debug("hit", "entry", entry.Id, "kind", "semantic+conceptual")
}

func (m *LogMonitor) SemanticHit(entry *core.Entry) {
	m.logger.Debug("hit", "entry", entry.Id, "kind", "semantic")
}

func (m *LogMonitor) ConceptualHit(entry *core.Entry) {
	m.logger.Debug("hit", "entry", entry.Id, "kind", "conceptual")
}

func (m *LogMonitor) Finish(results []*core.SearchResult) {
	m.logger.Debug("search finished", "results", len(results))
}
