// Copyright 2025 TimeWtr
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lifecycle

import "sync"

// ActionKind distinguishes a deferred load request from a deferred unload
// request.
type ActionKind uint8

const (
	ActionLoad ActionKind = iota
	ActionUnload
)

// Action is a load/unload request issued by a plugin callback. Requests
// issued from inside a callback cannot run immediately — the plugin table,
// bus, and timer wheel are all being walked or fanned-out over at that
// moment — so they are queued here and drained at the top of the next
// driver tick instead.
type Action struct {
	Kind ActionKind
	Name string
}

// pendingQueue is a mutex-guarded FIFO of deferred actions. Grounded on
// the shape of the teacher's dead-letter queue (Push/drain-all), simplified
// down from a persistence-capable DLQ to a same-process buffer: these
// actions never need to survive a restart.
type pendingQueue struct {
	mu      sync.Mutex
	actions []Action
}

func (q *pendingQueue) push(a Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append(q.actions, a)
}

// drain removes and returns every queued action, in the order they were
// pushed.
func (q *pendingQueue) drain() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.actions
	q.actions = nil
	return out
}
