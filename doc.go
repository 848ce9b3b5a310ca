// Package membridge is a tag-scoped knowledge base for agent tools.
//
// Database stores entries in BadgerDB, indexes them with embeddings and an
// extracted concept graph, and answers hybrid searches. It satisfies the
// bridge.Engine interface, so it can sit behind bridge.Tools and the MCP
// server in mcpserver.
package membridge
