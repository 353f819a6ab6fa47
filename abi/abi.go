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

// Package abi defines the stable C-level contract between the host runtime
// and a loaded plugin: the entry-point symbol names, PluginInfo/Dependency
// layout, and the host services vtable. Exactly one version is honored —
// V1 — and the struct shapes below never change within it.
package abi

import "fmt"

// Version is the ABI version a plugin must report from plugin_get_info for
// the host to accept it.
type Version uint32

// V1 is the only ABI version this host honors. A plugin reporting any
// other value is refused with ErrAbiMismatch.
const V1 Version = 1

// Symbol names every plugin must export with C linkage.
const (
	SymGetInfo  = "plugin_get_info"
	SymInit     = "plugin_init"
	SymShutdown = "plugin_shutdown"
)

// Priority is advisory ordering hint a plugin reports in its PluginInfo.
// The host records it but does not use it: startup follows manifest order
// and shutdown follows reverse load order regardless of priority.
type Priority int8

const (
	PriorityFirst   Priority = 0
	PriorityDefault Priority = 1
	PriorityLater   Priority = 2
)

// DependencyKind classifies a declared dependency as mandatory for the
// owning plugin to load, or as a best-effort extra.
type DependencyKind uint8

const (
	DependencyRequired DependencyKind = 0
	DependencyOptional DependencyKind = 1
)

// MaxDependencies bounds the dependency sequence, mirroring the fixed-size
// Dependency[128] array of the original C struct.
const MaxDependencies = 128

// Dependency names another plugin this plugin relies on.
type Dependency struct {
	Name string
	Kind DependencyKind
}

// Info is the static descriptor a plugin image owns and returns a pointer
// to from plugin_get_info. The pointer must stay valid for the library's
// lifetime.
type Info struct {
	Name         string
	Version      string
	AbiVersion   Version
	Priority     Priority
	Dependencies []Dependency
}

// Validate reports whether the descriptor can be accepted by this host.
func (i Info) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("abi: plugin info missing name")
	}
	if i.AbiVersion != V1 {
		return fmt.Errorf("%w: plugin %q reports abi version %d, host requires %d",
			ErrAbiMismatch, i.Name, i.AbiVersion, V1)
	}
	if len(i.Dependencies) > MaxDependencies {
		return fmt.Errorf("abi: plugin %q declares %d dependencies, exceeds bound %d",
			i.Name, len(i.Dependencies), MaxDependencies)
	}
	return nil
}
