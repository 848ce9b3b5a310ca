// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcpserver

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/membridge/core"
)

type addInput struct {
	Data string `json:"data" jsonschema:"Text to remember"`
}

type searchInput struct {
	Query string `json:"query" jsonschema:"What to look for"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum results to return (default: 100)"`
}

type searchHit struct {
	ID      string   `json:"id" jsonschema:"Entry id"`
	Content string   `json:"content" jsonschema:"Stored text"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Session tags"`
	Score   float32  `json:"score" jsonschema:"Relevance score, higher is better"`
}

type searchOutput struct {
	Results []searchHit `json:"results" jsonschema:"Matching entries, best first"`
	Count   int         `json:"count" jsonschema:"Number of results"`
}

type listInput struct{}

type listedEntry struct {
	ID         string   `json:"id" jsonschema:"Entry id"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Session tags"`
	Preview    string   `json:"preview" jsonschema:"Start of the stored text"`
	Length     int      `json:"length" jsonschema:"Length of the stored text in bytes"`
	InsertedAt string   `json:"inserted_at" jsonschema:"When the entry was stored (RFC 3339)"`
	Indexed    bool     `json:"indexed" jsonschema:"Whether the entry is searchable yet"`
}

type listOutput struct {
	Entries []listedEntry `json:"entries" jsonschema:"Every stored entry, oldest first"`
	Count   int           `json:"count" jsonschema:"Number of entries"`
}

type deleteInput struct {
	EntryID string `json:"entry_id" jsonschema:"Id of the entry to delete, as returned by add or list_entries"`
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add",
		Description: "Add a piece of information to the knowledge base for this session.",
	}, s.handleAdd)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search this session's knowledge base. Waits for pending indexing so recent additions are included.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_entries",
		Description: "List every entry in the knowledge base with a short preview.",
	}, s.handleList)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete",
		Description: "Delete an entry from the knowledge base by id.",
	}, s.handleDelete)
}

func (s *Server) handleAdd(ctx context.Context, req *mcp.CallToolRequest, args addInput) (*mcp.CallToolResult, any, error) {
	msg, err := s.session.Add(ctx, args.Data)
	if err != nil {
		s.logger.Error("add failed", "err", err)
		return nil, nil, err
	}
	return textResult(msg + " in session " + s.session.ID()), nil, nil
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, args searchInput) (*mcp.CallToolResult, searchOutput, error) {
	results, err := s.session.Search(ctx, args.Query, args.Limit)
	if err != nil {
		s.logger.Error("search failed", "query", args.Query, "err", err)
		return nil, searchOutput{}, err
	}
	return nil, newSearchOutput(results), nil
}

func newSearchOutput(results []*core.SearchResult) searchOutput {
	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{
			ID:      r.Entry.Id.String(),
			Content: r.Entry.Contents,
			Tags:    r.Entry.Tags,
			Score:   r.Score,
		})
	}
	return searchOutput{Results: hits, Count: len(hits)}
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, args listInput) (*mcp.CallToolResult, listOutput, error) {
	entries, err := s.tools.ListEntries(ctx)
	if err != nil {
		s.logger.Error("list failed", "err", err)
		return nil, listOutput{}, err
	}
	listed := make([]listedEntry, 0, len(entries))
	for _, e := range entries {
		listed = append(listed, listedEntry{
			ID:         e.ID,
			Tags:       e.Tags,
			Preview:    e.Preview,
			Length:     e.Length,
			InsertedAt: e.InsertedAt.Format(time.RFC3339),
			Indexed:    e.Indexed,
		})
	}
	return nil, listOutput{Entries: listed, Count: len(listed)}, nil
}

func (s *Server) handleDelete(ctx context.Context, req *mcp.CallToolRequest, args deleteInput) (*mcp.CallToolResult, any, error) {
	msg, err := s.tools.Delete(ctx, args.EntryID)
	if err != nil {
		s.logger.Error("delete failed", "entry_id", args.EntryID, "err", err)
		return nil, nil, err
	}
	return textResult(msg), nil, nil
}
