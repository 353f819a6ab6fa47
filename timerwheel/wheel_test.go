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

package timerwheel

import (
	"testing"

	"github.com/TimeWtr/pluginhost/abi"
	"github.com/stretchr/testify/assert"
)

func TestOneShotFiresOnceThenCompacts(t *testing.T) {
	w := New()
	fires := 0
	id := w.SetTimer(0, 10, false, 1, func(string, string) { fires++ })
	assert.Equal(t, uint64(1), id)

	w.Tick(5)
	assert.Equal(t, 0, fires)

	w.Tick(10)
	assert.Equal(t, 1, fires)
	assert.Equal(t, 0, w.Len())

	w.Tick(20)
	assert.Equal(t, 1, fires, "one-shot must not fire twice")
}

func TestRepeatingTimerReschedules(t *testing.T) {
	w := New()
	fires := 0
	w.SetTimer(0, 10, true, 1, func(string, string) { fires++ })

	w.Tick(10)
	assert.Equal(t, 1, fires)
	assert.Equal(t, 1, w.Len())

	w.Tick(20)
	assert.Equal(t, 2, fires)

	w.Tick(15) // not due yet relative to the last reschedule
	assert.Equal(t, 2, fires)
}

func TestIDsAreStrictlyIncreasingAndNeverReused(t *testing.T) {
	w := New()
	id1 := w.SetTimer(0, 5, false, 1, func(string, string) {})
	id2 := w.SetTimer(0, 5, false, 1, func(string, string) {})
	assert.Equal(t, uint64(1), id1)
	assert.Equal(t, uint64(2), id2)

	w.Tick(5) // id1 and id2 fire and are compacted away

	id3 := w.SetTimer(0, 5, false, 1, func(string, string) {})
	assert.Equal(t, uint64(3), id3, "ids must not be reused even after compaction")
}

func TestCancelTimerReportsWhetherItExisted(t *testing.T) {
	w := New()
	id := w.SetTimer(0, 100, false, 1, func(string, string) {})

	assert.True(t, w.CancelTimer(id))
	assert.False(t, w.CancelTimer(id), "cancelling twice must report false")
	assert.False(t, w.CancelTimer(999))
}

func TestCancelTakesEffectBeforeNextTick(t *testing.T) {
	w := New()
	fires := 0
	id := w.SetTimer(0, 10, false, 1, func(string, string) { fires++ })

	w.CancelTimer(id)
	w.Tick(10)

	assert.Equal(t, 0, fires)
}

func TestRaceFiresInInsertionOrder(t *testing.T) {
	w := New()
	var order []int
	w.SetTimer(0, 10, false, 1, func(string, string) { order = append(order, 1) })
	w.SetTimer(0, 10, false, 1, func(string, string) { order = append(order, 2) })
	w.SetTimer(0, 10, false, 1, func(string, string) { order = append(order, 3) })

	w.Tick(10)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestCancelOwnedByScrubsMatchingOwner(t *testing.T) {
	w := New()
	fires := 0
	w.SetTimer(0, 10, false, 1, func(string, string) { fires++ })
	w.SetTimer(0, 10, false, 2, func(string, string) { fires++ })

	w.CancelOwnedBy(func(id abi.CallbackID) bool { return id == 1 })

	w.Tick(10)
	assert.Equal(t, 1, fires)
}
