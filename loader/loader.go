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

package loader

import (
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/TimeWtr/pluginhost/abi"
	"github.com/TimeWtr/pluginhost/platform"
)

// Loader resolves plugin images against a platform.DynLib. Built against
// the interface rather than platform.PosixDynLib directly so tests can
// substitute an in-process fake exposing Go closures at synthetic handles.
type Loader struct {
	dyn platform.DynLib
}

func New(dyn platform.DynLib) *Loader {
	return &Loader{dyn: dyn}
}

// Load opens path, resolves the three mandatory exports, calls
// plugin_get_info, and validates the ABI version. It does not call
// plugin_init — the caller decides dependency ordering first.
func (l *Loader) Load(path string) (*Record, error) {
	handle, err := l.dyn.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w: %w", path, abi.ErrLibraryLoadFailure, err)
	}

	getInfoAddr, err := l.dyn.Lookup(handle, abi.SymGetInfo)
	if err != nil {
		_ = l.dyn.Close(handle)
		return nil, fmt.Errorf("loader: %s missing %s: %w: %w", path, abi.SymGetInfo, abi.ErrMissingSymbol, err)
	}
	initAddr, err := l.dyn.Lookup(handle, abi.SymInit)
	if err != nil {
		_ = l.dyn.Close(handle)
		return nil, fmt.Errorf("loader: %s missing %s: %w: %w", path, abi.SymInit, abi.ErrMissingSymbol, err)
	}
	shutdownAddr, err := l.dyn.Lookup(handle, abi.SymShutdown)
	if err != nil {
		_ = l.dyn.Close(handle)
		return nil, fmt.Errorf("loader: %s missing %s: %w: %w", path, abi.SymShutdown, abi.ErrMissingSymbol, err)
	}

	var getInfo func() uintptr
	purego.RegisterFunc(&getInfo, getInfoAddr)
	info, err := abi.DecodeInfo(getInfo())
	if err != nil {
		_ = l.dyn.Close(handle)
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}

	if err := info.Validate(); err != nil {
		_ = l.dyn.Close(handle)
		return nil, fmt.Errorf("loader: %s: %w", path, err)
	}

	return &Record{
		RequestedName: path,
		Handle:        handle,
		Info:          info,
		getInfoAddr:   getInfoAddr,
		initAddr:      initAddr,
		shutdownAddr:  shutdownAddr,
	}, nil
}

// Init calls rec's plugin_init with host bound as the C-ABI vtable,
// reporting the plugin's accept/reject decision. The bound vtable is kept
// alive until Unload releases it — a plugin may call back into the host
// through it for as long as it stays loaded, not only during init.
func (l *Loader) Init(rec *Record, host abi.HostVTable) bool {
	bound := abi.BindHostVTable(host)
	rec.releaseHost = bound.Release

	var initFn func(uintptr) bool
	purego.RegisterFunc(&initFn, rec.initAddr)
	return initFn(bound.Ptr)
}

// Shutdown calls rec's plugin_shutdown. It does not release the library
// handle — call Unload afterward to do that.
func (l *Loader) Shutdown(rec *Record) {
	var shutdownFn func()
	purego.RegisterFunc(&shutdownFn, rec.shutdownAddr)
	shutdownFn()
}

// Unload releases the bound host vtable (if plugin_init was ever called)
// and rec's library handle. Must be called only after every callback
// pointer derived from it has been scrubbed from the bus and timer wheel,
// and, for a plugin whose plugin_init succeeded, after Shutdown. A plugin
// whose init was rejected or never ran is unloaded without Shutdown.
func (l *Loader) Unload(rec *Record) error {
	if rec.releaseHost != nil {
		rec.releaseHost()
		rec.releaseHost = nil
	}
	if err := l.dyn.Close(rec.Handle); err != nil {
		return fmt.Errorf("loader: unload %s: %w", rec.RequestedName, err)
	}
	return nil
}
