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

package bridge

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/membridge/core"
)

const sessionPrefix = "session-"

// NewSessionID returns a fresh id of the form session-<uuid>.
func NewSessionID() string {
	return sessionPrefix + uuid.NewString()
}

// Session is a view of Tools scoped to one session tag. Writes carry the
// tag and searches filter on it.
type Session struct {
	id    string
	tools *Tools
}

// Bind returns a session bound to sessionID. An empty id generates one.
func (t *Tools) Bind(sessionID string) (*Session, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	} else if strings.TrimSpace(sessionID) == "" || strings.ContainsRune(sessionID, 0) {
		return nil, &SessionBindingError{SessionID: sessionID}
	}
	t.logger.Debug("bound session", "session", sessionID)
	return &Session{id: sessionID, tools: t}, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Add stores data tagged with the session id.
func (s *Session) Add(ctx context.Context, data string) (string, error) {
	return s.tools.Add(ctx, data, s.id)
}

// Search finds entries written by this session.
func (s *Session) Search(ctx context.Context, query string, limit int) ([]*core.SearchResult, error) {
	return s.tools.Search(ctx, query, []string{s.id}, limit)
}
