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

// Package kernel assembles the event bus, key/value store, timer wheel,
// loader, and lifecycle manager into a single Runtime, and is the one
// place that builds the host vtable handed to every plugin's
// plugin_init. There is exactly one HostVTable value for the whole
// process; which plugin a given host call is attributed to is decided by
// lifecycle.Manager.active, not by handing out distinct vtable instances.
package kernel

import (
	"time"

	"github.com/TimeWtr/pluginhost/abi"
	"github.com/TimeWtr/pluginhost/eventbus"
	"github.com/TimeWtr/pluginhost/kvstore"
	"github.com/TimeWtr/pluginhost/lifecycle"
	"github.com/TimeWtr/pluginhost/loader"
	"github.com/TimeWtr/pluginhost/platform"
	"github.com/TimeWtr/pluginhost/timerwheel"
	"github.com/TimeWtr/pluginhost/utils/log"
)

// Runtime owns every shared service a plugin's host vtable can reach, and
// the dynamic loader that resolves plugin images against the underlying
// platform.DynLib.
type Runtime struct {
	Bus   *eventbus.Bus
	Store *kvstore.Store
	Wheel *timerwheel.Wheel
	Mgr   *lifecycle.Manager

	start time.Time
	l     log.Logger
}

// New builds a Runtime wired against dyn (platform.NewPosixDynLib in
// production, an in-process fake in tests). pluginDir is resolved against
// manifest entries by the lifecycle manager.
func New(dyn platform.DynLib, pluginDir string, l log.Logger) *Runtime {
	bus := eventbus.New(l)
	store := kvstore.New()
	wheel := timerwheel.New()
	ld := loader.New(dyn)

	r := &Runtime{
		Bus:   bus,
		Store: store,
		Wheel: wheel,
		start: time.Now(),
		l:     l,
	}
	r.Mgr = lifecycle.NewManager(ld, bus, wheel, r.NowMs, pluginDir, l)
	return r
}

// NowMs reports milliseconds elapsed since the Runtime was constructed.
// Both the lifecycle manager's SetTimer calls and the driver's own Tick
// calls read time through this single function, so every timer shares
// one reference frame regardless of which plugin armed it.
func (r *Runtime) NowMs() int64 {
	return time.Since(r.start).Milliseconds()
}

// HostVTable builds the single host services vtable handed to every
// plugin_init call. SendEvent routes straight to the shared bus;
// RegisterEvent/UnregisterEvent, SetTimer/CancelTimer and Log go through
// the lifecycle manager, which records the owning plugin before reaching
// the bus and wheel; LoadPlugin/UnloadPlugin route to the lifecycle
// manager's deferred queue; the key/value slots close directly over Store.
func (r *Runtime) HostVTable() abi.HostVTable {
	return abi.HostVTable{
		SendEvent:       r.Bus.Publish,
		RegisterEvent:   r.Mgr.RegisterEvent,
		UnregisterEvent: r.Mgr.UnregisterEvent,
		LoadPlugin:      r.Mgr.RequestLoad,
		UnloadPlugin:    r.Mgr.RequestUnload,
		Log:             r.Mgr.Log,
		SetData: func(key, value string) bool {
			r.Store.Set(key, value)
			return true
		},
		GetData:     r.Store.Get,
		HasData:     r.Store.Has,
		DeleteData:  r.Store.Delete,
		SetTimer:    r.Mgr.SetTimer,
		CancelTimer: r.Mgr.CancelTimer,
	}
}
