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
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/poiesic/membridge/bridge"
)

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "membridge")
	Name string

	// Version is the server version (default: "0.1.0")
	Version string

	// SessionID scopes add and search. Empty generates a session-<uuid> id.
	SessionID string

	Logger *slog.Logger
}

// Server serves the knowledge base tools over MCP.
type Server struct {
	mcp     *mcp.Server
	tools   *bridge.Tools
	session *bridge.Session
	logger  *slog.Logger
}

// ErrToolsRequired is returned when New is given nil tools.
var ErrToolsRequired = errors.New("tools are required")

// New creates a server and registers its tools.
func New(tools *bridge.Tools, cfg Config) (*Server, error) {
	if tools == nil {
		return nil, ErrToolsRequired
	}
	if cfg.Name == "" {
		cfg.Name = "membridge"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	session, err := tools.Bind(cfg.SessionID)
	if err != nil {
		return nil, err
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		&mcp.ServerOptions{
			Instructions: instructions(session.ID()),
		},
	)

	s := &Server{
		mcp:     mcpServer,
		tools:   tools,
		session: session,
		logger:  cfg.Logger.With("component", "mcpserver", "session", session.ID()),
	}
	s.registerTools()
	return s, nil
}

func instructions(sessionID string) string {
	return fmt.Sprintf("Knowledge base tools for session %s. "+
		"Use add to remember information and search to recall it. "+
		"Added items become searchable once indexing completes; search waits for it.", sessionID)
}

// SessionID returns the id add and search are bound to.
func (s *Server) SessionID() string {
	return s.session.ID()
}

// Run serves on stdin/stdout until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Connect serves a single connection on transport.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, transport, nil)
}
