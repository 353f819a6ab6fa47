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

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// cDependency mirrors original_source/api_supports/api.h's
// `struct Dependency { const char* name; uint8_t type; }`.
type cDependency struct {
	namePtr uintptr
	kind    uint8
	_       [7]byte
}

// cPluginInfo mirrors `struct PluginInfo`. Field order and padding are
// part of the ABI a plugin's toolchain must agree with; this layout
// assumes the common x86-64/ARM64 System V alignment rules also assumed
// by original_source.
type cPluginInfo struct {
	namePtr    uintptr
	versionPtr uintptr
	abiVersion uint32
	priority   int8
	_          [3]byte
	deps       [MaxDependencies]cDependency
}

func readCString(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	var buf []byte
	for i := uintptr(0); ; i++ {
		b := *(*byte)(unsafe.Pointer(addr + i))
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	return string(buf)
}

// DecodeInfo interprets ptr as a *cPluginInfo and copies it into an Info
// value. Dependencies are read up to the first entry with an empty name;
// an optional entry does not end the list. A null ptr is reported as an
// error rather than a zero Info.
func DecodeInfo(ptr uintptr) (Info, error) {
	if ptr == 0 {
		return Info{}, fmt.Errorf("abi: plugin_get_info returned a null pointer")
	}

	c := (*cPluginInfo)(unsafe.Pointer(ptr))
	info := Info{
		Name:       readCString(c.namePtr),
		Version:    readCString(c.versionPtr),
		AbiVersion: Version(c.abiVersion),
		Priority:   Priority(c.priority),
	}

	for _, d := range c.deps {
		name := readCString(d.namePtr)
		if name == "" {
			break
		}
		info.Dependencies = append(info.Dependencies, Dependency{Name: name, Kind: DependencyKind(d.kind)})
	}

	return info, nil
}

// BindCallback turns a raw CallbackID — the address a plugin passed into
// register_event or set_timer — into a Go-callable EventCallback by
// registering it with purego as a function matching the C callback
// signature. This is the other half of BindHostVTable: that function
// turns Go closures into addresses a plugin can call; this one turns an
// address a plugin gave the host back into something the host can call.
func BindCallback(id CallbackID) EventCallback {
	var fn func(topic, payload string)
	purego.RegisterFunc(&fn, uintptr(id))
	return EventCallback(fn)
}

// EncodeInfo lays info out as a cPluginInfo and returns its address. This
// is what a real plugin's toolchain does at compile time for its static
// PluginInfo; Go test doubles use it to build a fake plugin image that
// DecodeInfo can read back without a real cross-language boundary. The
// struct and the strings backing namePtr/versionPtr/dependency names are
// kept alive in the package's pinned list, not by the caller.
func EncodeInfo(info Info) uintptr {
	c := &cPluginInfo{
		namePtr:    cStringPtr(info.Name),
		versionPtr: cStringPtr(info.Version),
		abiVersion: uint32(info.AbiVersion),
		priority:   int8(info.Priority),
	}
	for i, d := range info.Dependencies {
		if i >= MaxDependencies {
			break
		}
		c.deps[i] = cDependency{namePtr: cStringPtr(d.Name), kind: uint8(d.Kind)}
	}
	pinnedMu.Lock()
	pinned = append(pinned, c)
	pinnedMu.Unlock()
	return uintptr(unsafe.Pointer(c))
}

// pinned keeps fixture memory handed out as raw addresses reachable for
// the process lifetime.
var (
	pinnedMu sync.Mutex
	pinned   []any
)

// cStringPtr returns the address of s's first byte as a NUL-terminated
// buffer. The returned pointer is pinned for the process lifetime, which
// is acceptable here: it is only used to build small, long-lived fixtures
// (a plugin's static info, or a test double standing in for one).
func cStringPtr(s string) uintptr {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	pinnedMu.Lock()
	pinned = append(pinned, buf)
	pinnedMu.Unlock()
	return uintptr(unsafe.Pointer(&buf[0]))
}

// cHostVTable is the twelve-uintptr-wide memory layout actually handed to
// plugin_init: each slot is the address of a purego-generated C function
// pointer, in the exact order of HostVTable.
type cHostVTable struct {
	sendEvent       uintptr
	registerEvent   uintptr
	unregisterEvent uintptr
	loadPlugin      uintptr
	unloadPlugin    uintptr
	log             uintptr
	setData         uintptr
	getData         uintptr
	hasData         uintptr
	deleteData      uintptr
	setTimer        uintptr
	cancelTimer     uintptr
}

// BoundVTable is a HostVTable that has been turned into real C-callable
// function pointers and pinned in a fixed memory layout. Release must be
// called once the owning plugin has been shut down and will never call
// back into the host again.
type BoundVTable struct {
	Ptr     uintptr
	Release func()
}

// BindHostVTable converts v into the C-ABI vtable of §4.6: every Go method
// is wrapped with purego.NewCallback to produce a real function pointer a
// plugin built by any toolchain can invoke, then laid out into a
// cHostVTable whose address is returned. get_data's (string, bool) Go
// signature collapses to the C convention of "empty string means absent"
// since a single C function pointer cannot carry two return values.
func BindHostVTable(v HostVTable) BoundVTable {
	sendEvent := func(topic, payload string) { v.SendEvent(topic, payload) }
	registerEvent := func(topic string, cb uintptr) { v.RegisterEvent(topic, CallbackID(cb)) }
	unregisterEvent := func(cb uintptr) { v.UnregisterEvent(CallbackID(cb)) }
	loadPlugin := func(name string) bool { return v.LoadPlugin(name) }
	unloadPlugin := func(name string) bool { return v.UnloadPlugin(name) }
	logFn := func(level, message string) { v.Log(level, message) }
	setData := func(key, value string) bool { return v.SetData(key, value) }
	getData := func(key string) string {
		val, ok := v.GetData(key)
		if !ok {
			return ""
		}
		return val
	}
	hasData := func(key string) bool { return v.HasData(key) }
	deleteData := func(key string) bool { return v.DeleteData(key) }
	setTimer := func(periodMS uint32, cb uintptr, repeat bool) uint64 {
		return v.SetTimer(periodMS, CallbackID(cb), repeat)
	}
	cancelTimer := func(id uint64) bool { return v.CancelTimer(id) }

	table := &cHostVTable{
		sendEvent:       purego.NewCallback(sendEvent),
		registerEvent:   purego.NewCallback(registerEvent),
		unregisterEvent: purego.NewCallback(unregisterEvent),
		loadPlugin:      purego.NewCallback(loadPlugin),
		unloadPlugin:    purego.NewCallback(unloadPlugin),
		log:             purego.NewCallback(logFn),
		setData:         purego.NewCallback(setData),
		getData:         purego.NewCallback(getData),
		hasData:         purego.NewCallback(hasData),
		deleteData:      purego.NewCallback(deleteData),
		setTimer:        purego.NewCallback(setTimer),
		cancelTimer:     purego.NewCallback(cancelTimer),
	}

	return BoundVTable{
		Ptr:     uintptr(unsafe.Pointer(table)),
		Release: func() { runtime.KeepAlive(table) },
	}
}

// DecodeHostVTable is the inverse of BindHostVTable: given the pointer a
// plugin receives in plugin_init, it resolves each of the twelve C
// function pointers back into a Go-callable HostVTable. A Go-native
// plugin (or a test standing in for a compiled one) uses this instead of
// hand-marshaling the vtable itself.
func DecodeHostVTable(ptr uintptr) HostVTable {
	c := (*cHostVTable)(unsafe.Pointer(ptr))

	var sendEvent func(string, string)
	purego.RegisterFunc(&sendEvent, c.sendEvent)
	var registerEvent func(string, uintptr)
	purego.RegisterFunc(&registerEvent, c.registerEvent)
	var unregisterEvent func(uintptr)
	purego.RegisterFunc(&unregisterEvent, c.unregisterEvent)
	var loadPlugin func(string) bool
	purego.RegisterFunc(&loadPlugin, c.loadPlugin)
	var unloadPlugin func(string) bool
	purego.RegisterFunc(&unloadPlugin, c.unloadPlugin)
	var logFn func(string, string)
	purego.RegisterFunc(&logFn, c.log)
	var setData func(string, string) bool
	purego.RegisterFunc(&setData, c.setData)
	var getData func(string) string
	purego.RegisterFunc(&getData, c.getData)
	var hasData func(string) bool
	purego.RegisterFunc(&hasData, c.hasData)
	var deleteData func(string) bool
	purego.RegisterFunc(&deleteData, c.deleteData)
	var setTimer func(uint32, uintptr, bool) uint64
	purego.RegisterFunc(&setTimer, c.setTimer)
	var cancelTimer func(uint64) bool
	purego.RegisterFunc(&cancelTimer, c.cancelTimer)

	return HostVTable{
		SendEvent:       sendEvent,
		RegisterEvent:   func(topic string, cb CallbackID) { registerEvent(topic, uintptr(cb)) },
		UnregisterEvent: func(cb CallbackID) { unregisterEvent(uintptr(cb)) },
		LoadPlugin:      loadPlugin,
		UnloadPlugin:    unloadPlugin,
		Log:             logFn,
		SetData:         setData,
		GetData: func(key string) (string, bool) {
			v := getData(key)
			return v, v != ""
		},
		HasData:    hasData,
		DeleteData: deleteData,
		SetTimer: func(periodMS uint32, cb CallbackID, repeat bool) uint64 {
			return setTimer(periodMS, uintptr(cb), repeat)
		},
		CancelTimer: cancelTimer,
	}
}
