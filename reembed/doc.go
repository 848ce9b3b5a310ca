// Package reembed regenerates stored vectors with the current embedding model.
//
// Entries and concepts are walked in batches. Each batch is embedded with
// retries and exponential backoff, normalized to unit length for cosine
// similarity and written back. Progress is reported to an io.Writer.
//
// Reembedding keeps concept links and index state untouched; use a full
// reindex to re-extract concepts as well.
package reembed
