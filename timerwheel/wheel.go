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

// Package timerwheel schedules one-shot and repeating callbacks driven by
// the main loop's tick. There is no dedicated timer goroutine; Tick is
// expected to be called once per driver iteration with the current
// monotonic instant.
package timerwheel

import (
	"sync"

	"github.com/TimeWtr/pluginhost/abi"
	"github.com/TimeWtr/pluginhost/utils/atomicx"
)

// entry is one scheduled timer. next_fire is tracked in milliseconds
// against the same monotonic clock the caller passes to Tick. ownerID is
// the subscriber identity the callback was registered under, used only to
// scrub a plugin's timers on unload — it plays no part in firing.
type entry struct {
	id       uint64
	ownerID  abi.CallbackID
	periodMs uint32
	callback abi.EventCallback
	repeat   bool
	nextFire int64
	active   bool
}

// Wheel holds the live timer set. New returns an empty Wheel; the zero
// value is equally ready to use.
type Wheel struct {
	mu      sync.Mutex
	entries []entry
	nextID  atomicx.Uint64
}

func New() *Wheel {
	w := &Wheel{}
	return w
}

// SetTimer schedules callback to fire period_ms from now (caller-supplied
// "now", in milliseconds against a monotonic clock), once if repeat is
// false, else every period_ms thereafter. Returned ids are strictly
// increasing from 1 and never reused.
func (w *Wheel) SetTimer(nowMs int64, periodMs uint32, repeat bool, ownerID abi.CallbackID, callback abi.EventCallback) uint64 {
	id := w.nextID.Add(1)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry{
		id:       id,
		ownerID:  ownerID,
		periodMs: periodMs,
		callback: callback,
		repeat:   repeat,
		nextFire: nowMs + int64(periodMs),
		active:   true,
	})
	return id
}

// CancelTimer marks id inactive, reporting whether a matching active timer
// existed. Taking effect is immediate: an already-in-flight firing from the
// current Tick cannot be aborted, but no future tick will fire it.
func (w *Wheel) CancelTimer(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.entries {
		if w.entries[i].id == id && w.entries[i].active {
			w.entries[i].active = false
			return true
		}
	}
	return false
}

// CancelOwnedBy deactivates and drops every timer registered under an
// owner id for which owns reports true — used by the lifecycle manager to
// scrub a plugin's timers before its library handle is released.
func (w *Wheel) CancelOwnedBy(owns func(abi.CallbackID) bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.entries[:0:0]
	for _, e := range w.entries {
		if owns(e.ownerID) {
			continue
		}
		kept = append(kept, e)
	}
	w.entries = kept
}

// Tick fires every active timer whose next_fire is due at or before
// nowMs, in the order they were inserted. Repeating timers are
// rescheduled against nowMs; one-shot timers are marked inactive. The
// table is compacted (inactive entries dropped) after the pass.
func (w *Wheel) Tick(nowMs int64) {
	w.mu.Lock()
	due := make([]entry, 0, len(w.entries))
	for i := range w.entries {
		e := &w.entries[i]
		if !e.active || e.nextFire > nowMs {
			continue
		}
		due = append(due, *e)
		if e.repeat {
			e.nextFire = nowMs + int64(e.periodMs)
		} else {
			e.active = false
		}
	}
	kept := w.entries[:0:0]
	for _, e := range w.entries {
		if e.active {
			kept = append(kept, e)
		}
	}
	w.entries = kept
	w.mu.Unlock()

	for _, e := range due {
		e.callback("timer", "")
	}
}

// Len reports the number of currently active timers. Diagnostics/tests
// only, not part of the ABI surface.
func (w *Wheel) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, e := range w.entries {
		if e.active {
			n++
		}
	}
	return n
}
