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

// Package lifecycle owns the plugin table: manifest-driven ordered
// startup, the dependency walk, and a deferred queue for load/unload
// requests a plugin issues from inside its own callback. It is the one
// place in the host that knows which plugin "owns" a given subscription
// or timer, which it tracks by watching which plugin is on the call stack
// at the moment register_event/set_timer is invoked — valid because the
// kernel is single-threaded cooperative (spec's concurrency model): there
// is never more than one plugin's code running at a time.
package lifecycle

import (
	"fmt"
	"path/filepath"

	"github.com/TimeWtr/pluginhost/abi"
	"github.com/TimeWtr/pluginhost/eventbus"
	"github.com/TimeWtr/pluginhost/loader"
	"github.com/TimeWtr/pluginhost/timerwheel"
	"github.com/TimeWtr/pluginhost/utils/log"
)

type pluginEntry struct {
	rec      *loader.Record
	ownedIDs map[abi.CallbackID]struct{}
}

// Manager is the plugin table plus the host-vtable slots that mutate it:
// register/unregister, set/cancel timer, load/unload. The zero value is
// not usable; construct with NewManager.
type Manager struct {
	ld        *loader.Loader
	bus       *eventbus.Bus
	wheel     *timerwheel.Wheel
	nowMs     func() int64
	pluginDir string
	l         log.Logger

	order   []string
	plugins map[string]*pluginEntry
	active  string

	pending pendingQueue
}

func NewManager(ld *loader.Loader, bus *eventbus.Bus, wheel *timerwheel.Wheel, nowMs func() int64, pluginDir string, l log.Logger) *Manager {
	return &Manager{
		ld:        ld,
		bus:       bus,
		wheel:     wheel,
		nowMs:     nowMs,
		pluginDir: pluginDir,
		l:         l,
		plugins:   map[string]*pluginEntry{},
	}
}

// Startup loads each manifest entry in order. A failed load is logged and
// skipped — it does not abort the runtime (spec.md §4.7 startup
// sequence).
func (m *Manager) Startup(names []string, host abi.HostVTable) {
	for _, name := range names {
		if _, ok := m.plugins[name]; ok {
			continue
		}
		if err := m.loadOne(name, host); err != nil {
			m.l.Error("failed to load plugin", log.StringField("plugin", name), log.ErrorField(err))
		}
	}
}

// loadOne resolves path, recursively satisfies dependencies, and calls
// plugin_init, attributing every registration made during init to name.
func (m *Manager) loadOne(name string, host abi.HostVTable) error {
	path := filepath.Join(m.pluginDir, name)
	rec, err := m.ld.Load(path)
	if err != nil {
		return err
	}

	for _, dep := range rec.Info.Dependencies {
		if _, already := m.plugins[dep.Name]; already {
			continue
		}
		if err := m.loadOne(dep.Name, host); err != nil {
			if dep.Kind == abi.DependencyRequired {
				_ = m.ld.Unload(rec)
				return fmt.Errorf("lifecycle: required dependency %q for %q: %w: %w", dep.Name, name, abi.ErrDependencyUnavailable, err)
			}
			m.l.Warn("optional dependency failed to load",
				log.StringField("plugin", name), log.StringField("dependency", dep.Name), log.ErrorField(err))
		}
	}

	m.plugins[name] = &pluginEntry{rec: rec, ownedIDs: map[abi.CallbackID]struct{}{}}

	prev := m.active
	m.active = name
	accepted := m.ld.Init(rec, host)
	m.active = prev

	if !accepted {
		delete(m.plugins, name)
		_ = m.ld.Unload(rec)
		return fmt.Errorf("%w: %s", abi.ErrInitRejected, name)
	}

	m.order = append(m.order, name)
	return nil
}

// unloadOne runs the destruction sequence of spec.md §4.7: shutdown, scrub
// subscriptions and timers, release the library handle last, then remove
// from the table.
func (m *Manager) unloadOne(name string) error {
	entry, ok := m.plugins[name]
	if !ok {
		return fmt.Errorf("%w: %s", abi.ErrUnknownPlugin, name)
	}

	m.ld.Shutdown(entry.rec)

	for id := range entry.ownedIDs {
		m.bus.Unsubscribe(id)
	}
	m.wheel.CancelOwnedBy(func(id abi.CallbackID) bool {
		_, owned := entry.ownedIDs[id]
		return owned
	})

	if err := m.ld.Unload(entry.rec); err != nil {
		return err
	}

	delete(m.plugins, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// ShutdownAll unloads every plugin in reverse load order, per spec.md
// §4.8's shutdown sequence. Errors are logged, not returned, since a
// runtime shutdown must proceed regardless of individual unload failures.
func (m *Manager) ShutdownAll() {
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if err := m.unloadOne(name); err != nil {
			m.l.Error("failed to unload plugin during shutdown", log.StringField("plugin", name), log.ErrorField(err))
		}
	}
}

// DrainPending runs every load/unload request queued since the last call,
// in submission order. Called by the driver at the top of each tick,
// before timers and console input are serviced.
func (m *Manager) DrainPending(host abi.HostVTable) {
	for _, a := range m.pending.drain() {
		switch a.Kind {
		case ActionLoad:
			if err := m.loadOne(a.Name, host); err != nil {
				m.l.Error("deferred plugin load failed", log.StringField("plugin", a.Name), log.ErrorField(err))
			}
		case ActionUnload:
			if err := m.unloadOne(a.Name); err != nil {
				m.l.Error("deferred plugin unload failed", log.StringField("plugin", a.Name), log.ErrorField(err))
			}
		}
	}
}

// RequestLoad implements the host vtable's load_plugin slot: it never
// loads synchronously. Reentering the plugin table and dependency walk
// from inside a callback is unsafe (spec.md §9's re-entrant-unload note
// applies equally to load), so the request is queued and the return value
// only reports that it was accepted, not that the load succeeded.
func (m *Manager) RequestLoad(name string) bool {
	m.pending.push(Action{Kind: ActionLoad, Name: name})
	return true
}

// RequestUnload implements the host vtable's unload_plugin slot, deferred
// for the same reason as RequestLoad.
func (m *Manager) RequestUnload(name string) bool {
	m.pending.push(Action{Kind: ActionUnload, Name: name})
	return true
}

// RegisterEvent implements the host vtable's register_event slot. id is
// resolved into a real callback and subscribed on the bus; the
// currently-active plugin (set around Init and around every callback
// invocation registered through this same path) is recorded as its owner.
func (m *Manager) RegisterEvent(topic string, id abi.CallbackID) {
	owner := m.active
	entry := m.plugins[owner]

	wrapped := m.attributedCallback(owner, abi.BindCallback(id))
	m.bus.Subscribe(topic, id, wrapped)

	if entry != nil {
		entry.ownedIDs[id] = struct{}{}
	}
}

// UnregisterEvent implements unregister_event: removes id from every
// topic it was subscribed to.
func (m *Manager) UnregisterEvent(id abi.CallbackID) {
	m.bus.Unsubscribe(id)
}

// SetTimer implements set_timer, with the same ownership attribution as
// RegisterEvent.
func (m *Manager) SetTimer(periodMS uint32, id abi.CallbackID, repeat bool) uint64 {
	owner := m.active
	entry := m.plugins[owner]

	wrapped := m.attributedCallback(owner, abi.BindCallback(id))
	timerID := m.wheel.SetTimer(m.nowMs(), periodMS, repeat, id, wrapped)

	if entry != nil {
		entry.ownedIDs[id] = struct{}{}
	}
	return timerID
}

// CancelTimer implements cancel_timer.
func (m *Manager) CancelTimer(id uint64) bool {
	return m.wheel.CancelTimer(id)
}

// Log implements the host vtable's log slot.
func (m *Manager) Log(level, message string) {
	switch level {
	case "debug":
		m.l.Debug(message)
	case "warn":
		m.l.Warn(message)
	case "error":
		m.l.Error(message)
	default:
		m.l.Info(message)
	}
}

// attributedCallback wraps fn so that, for the duration of its execution,
// m.active reports owner — meaning any host call fn itself makes
// (publishing an event, arming another timer) is attributed to the
// correct plugin even though it happens nested, deep inside the driver's
// dispatch loop rather than inside loadOne.
func (m *Manager) attributedCallback(owner string, fn abi.EventCallback) abi.EventCallback {
	return func(topic, payload string) {
		prev := m.active
		m.active = owner
		defer func() { m.active = prev }()
		fn(topic, payload)
	}
}

// LoadOrder returns the plugin names currently loaded, in load order.
// Diagnostics and tests only.
func (m *Manager) LoadOrder() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
