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
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout matches every *TimeoutError.
	ErrTimeout = errors.New("operation timed out")

	// ErrClosed is returned once the executor or tools have been closed.
	ErrClosed = errors.New("bridge closed")

	// ErrInvalidSession matches every *SessionBindingError.
	ErrInvalidSession = errors.New("invalid session id")

	// ErrEngineRequired is returned when NewTools is given a nil engine.
	ErrEngineRequired = errors.New("engine is required")
)

// EngineError wraps a failure reported by the engine.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the caller stopped waiting. The operation may
// still succeed or fail in the background.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not complete within %s, outcome unknown", e.Op, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ReindexError reports a failed background reindex pass. Attempt counts
// consecutive failures, starting at 1.
type ReindexError struct {
	Attempt int
	Err     error
}

func (e *ReindexError) Error() string {
	return fmt.Sprintf("reindex attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *ReindexError) Unwrap() error {
	return e.Err
}

// SessionBindingError reports a session id that cannot be used as a tag.
type SessionBindingError struct {
	SessionID string
}

func (e *SessionBindingError) Error() string {
	return fmt.Sprintf("invalid session id %q", e.SessionID)
}

func (e *SessionBindingError) Is(target error) bool {
	return target == ErrInvalidSession
}
