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

package eventbus

import (
	"testing"

	"github.com/TimeWtr/pluginhost/abi"
	"github.com/TimeWtr/pluginhost/utils/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus() *Bus {
	return New(log.NewZapAdapter(zap.NewNop()))
}

func TestPublish_RegistrationOrder(t *testing.T) {
	bus := newTestBus()

	var order []int
	bus.Subscribe("t", 1, func(string, string) { order = append(order, 1) })
	bus.Subscribe("t", 2, func(string, string) { order = append(order, 2) })
	bus.Subscribe("t", 3, func(string, string) { order = append(order, 3) })

	bus.Publish("t", "")

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPublish_EmptyPayloadIsNeverNil(t *testing.T) {
	bus := newTestBus()

	var got *string
	bus.Subscribe("t", 1, func(_ string, payload string) {
		got = &payload
	})
	bus.Publish("t", "")

	require.NotNil(t, got)
	assert.Equal(t, "", *got)
}

func TestUnsubscribe_RemovesAllOccurrencesAcrossTopics(t *testing.T) {
	bus := newTestBus()

	calls := 0
	cb := func(string, string) { calls++ }
	bus.Subscribe("a", 7, cb)
	bus.Subscribe("b", 7, cb)
	bus.Subscribe("a", 7, cb) // multi-subscribe, same id, same topic

	bus.Unsubscribe(7)

	bus.Publish("a", "")
	bus.Publish("b", "")

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, bus.SubscriberCount("a"))
	assert.Equal(t, 0, bus.SubscriberCount("b"))
}

// TestSnapshotSemantics is scenario S6: A unsubscribes B during A's
// callback. With snapshot semantics B still runs this publish; on the
// next publish B does not run.
func TestSnapshotSemantics(t *testing.T) {
	bus := newTestBus()

	var bRuns int
	const bID abi.CallbackID = 2

	bus.Subscribe("t", 1, func(string, string) {
		bus.Unsubscribe(bID)
	})
	bus.Subscribe("t", bID, func(string, string) {
		bRuns++
	})

	bus.Publish("t", "")
	assert.Equal(t, 1, bRuns, "B must still run on the publish during which it was unsubscribed")

	bus.Publish("t", "")
	assert.Equal(t, 1, bRuns, "B must not run on the next publish")
}

// TestReentrantSubscribeDuringPublish covers a callback subscribing a new
// listener mid-fanout: the new listener must not be invoked until the
// next publish.
func TestReentrantSubscribeDuringPublish(t *testing.T) {
	bus := newTestBus()

	var lateRuns int
	bus.Subscribe("t", 1, func(string, string) {
		bus.Subscribe("t", 2, func(string, string) { lateRuns++ })
	})

	bus.Publish("t", "")
	assert.Equal(t, 0, lateRuns)

	bus.Publish("t", "")
	assert.Equal(t, 1, lateRuns)
}

func TestMultiSubscribeSamePointerIsNotDeduplicated(t *testing.T) {
	bus := newTestBus()

	calls := 0
	cb := func(string, string) { calls++ }
	bus.Subscribe("t", 9, cb)
	bus.Subscribe("t", 9, cb)

	bus.Publish("t", "")

	assert.Equal(t, 2, calls)
}

func TestPublish_NoSubscribersIsNoop(t *testing.T) {
	bus := newTestBus()
	assert.NotPanics(t, func() {
		bus.Publish("nothing-here", "payload")
	})
}
