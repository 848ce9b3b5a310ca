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

// Package bridge lets synchronous tool calls drive a knowledge engine.
//
// Every engine call runs on a single Executor worker in arrival order.
// Writes signal a Coalescer, whose one supervising goroutine schedules
// reindex passes onto that worker, so bursts of writes share a pass and no
// engine call ever overlaps another. Search drains the Coalescer first, so a session sees its own
// writes. Sessions scope writes and reads with a tag.
//
// A timed out call returns a *TimeoutError. The underlying operation is not
// cancelled and its outcome is unknown.
package bridge
