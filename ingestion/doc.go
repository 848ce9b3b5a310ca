// Package ingestion stores knowledge base entries and indexes them.
//
// Ingest validates data and commits it as pending entries. Reindex picks up
// every pending entry and, batch by batch on a worker pool:
//   - generates embeddings
//   - extracts concepts and links them to the entry
//   - marks the entry indexed
//
// Entries whose enrichment failed stay pending, so the next Reindex retries
// them. Each processor records its progress as a checkpoint.
package ingestion
