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

// Package eventbus implements the host's named-topic publish/subscribe
// mechanism. Fan-out is synchronous and snapshot-based: a publish takes a
// point-in-time copy of a topic's subscriber list, so a callback that
// subscribes, unsubscribes, or publishes re-entrantly only ever affects
// subsequent publishes, never the one in flight.
package eventbus

import (
	"sync"

	"github.com/TimeWtr/pluginhost/abi"
	"github.com/TimeWtr/pluginhost/utils/log"
)

// Subscription pairs a topic with the subscriber's callback identity.
type Subscription struct {
	topic string
	id    abi.CallbackID
	fn    abi.EventCallback
}

// Bus is the concrete event bus. The zero value is not usable; construct
// with New.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Subscription
	l         log.Logger
}

func New(l log.Logger) *Bus {
	return &Bus{
		listeners: make(map[string][]Subscription),
		l:         l,
	}
}

// Subscribe appends a callback to topic's subscriber list. Multi-subscribe
// of the same id against the same topic is legal and not deduplicated.
func (b *Bus) Subscribe(topic string, id abi.CallbackID, fn abi.EventCallback) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[topic] = append(b.listeners[topic], Subscription{topic: topic, id: id, fn: fn})
}

// Unsubscribe removes every subscription carrying id, across every topic.
func (b *Bus) Unsubscribe(id abi.CallbackID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.listeners {
		kept := subs[:0:0]
		for _, s := range subs {
			if s.id != id {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(b.listeners, topic)
			continue
		}
		b.listeners[topic] = kept
	}
}

// Publish fans payload out to every subscriber of topic, in registration
// order, using the snapshot taken at the start of this call. A callback
// that panics is not recovered here, and there is no retry path; the
// panic propagates to whoever called Publish.
func (b *Bus) Publish(topic, payload string) {
	b.mu.RLock()
	snapshot := append([]Subscription(nil), b.listeners[topic]...)
	b.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(topic, payload)
	}
}

// SubscriberCount reports how many subscriptions currently sit on topic.
// Exposed for tests that assert S6-style unsubscribe-during-publish
// behavior without reaching into the bus's internals.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[topic])
}
