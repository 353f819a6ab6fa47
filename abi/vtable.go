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

package abi

// CallbackID is the cross-boundary identity of a plugin-owned callback.
// On the wire this is the address purego resolves for the plugin's
// exported C function; two callbacks are the same subscriber iff their
// CallbackID is equal, mirroring the original "compare by pointer value"
// semantics without exposing unsafe.Pointer outside this package.
type CallbackID uintptr

// EventCallback is invoked by the bus and the timer wheel. topic is always
// non-empty; payload is NUL-terminated at the C boundary but arrives here
// already decoded, with the empty string meaning "no payload".
type EventCallback func(topic string, payload string)

// HostVTable is the twelve-slot struct handed to plugin_init. Slot order is
// part of the ABI and must never change within V1 — it mirrors
// original_source/api_supports/api.h's `struct PluginHost` field for field.
type HostVTable struct {
	SendEvent       func(topic, payload string)
	RegisterEvent   func(topic string, cb CallbackID)
	UnregisterEvent func(cb CallbackID)
	LoadPlugin      func(name string) bool
	UnloadPlugin    func(name string) bool
	Log             func(level, message string)
	SetData         func(key, value string) bool
	GetData         func(key string) (string, bool)
	HasData         func(key string) bool
	DeleteData      func(key string) bool
	SetTimer        func(periodMS uint32, cb CallbackID, repeat bool) uint64
	CancelTimer     func(id uint64) bool
}
