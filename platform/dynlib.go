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

// Package platform wraps the OS-level primitives the rest of the host
// needs: dynamic library loading, raw-mode console input, and sleep. The
// dynamic loading surface is a narrow interface (DynLib) rather than a
// concrete purego binding so loader can be exercised in tests without a
// real compiled shared object.
package platform

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// DynLib is the seam between loader and the actual OS dynamic-loading
// facility. The real implementation (PosixDynLib) wraps purego's
// Dlopen/Dlsym/Dlclose; tests substitute an in-process fake exposing Go
// closures at synthetic handles instead of real shared objects.
type DynLib interface {
	// Open loads the shared object at path and returns an opaque handle.
	Open(path string) (uintptr, error)
	// Lookup resolves name against handle, returning its address. A
	// missing symbol is reported as an error, never a zero value, so
	// callers can distinguish "not found" from "found, nil function".
	Lookup(handle uintptr, name string) (uintptr, error)
	// Close releases handle. Must be the last operation performed
	// against a handle; any address resolved from it is invalid after.
	Close(handle uintptr) error
}

// PosixDynLib is the production DynLib, backed by purego's dlopen/dlsym/
// dlclose bindings. It requires no cgo toolchain.
type PosixDynLib struct{}

func NewPosixDynLib() *PosixDynLib {
	return &PosixDynLib{}
}

func (PosixDynLib) Open(path string) (uintptr, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, fmt.Errorf("platform: load library %q: %w", path, err)
	}
	return handle, nil
}

func (PosixDynLib) Lookup(handle uintptr, name string) (uintptr, error) {
	addr, err := purego.Dlsym(handle, name)
	if err != nil {
		return 0, fmt.Errorf("platform: resolve symbol %q: %w", name, err)
	}
	return addr, nil
}

func (PosixDynLib) Close(handle uintptr) error {
	if err := purego.Dlclose(handle); err != nil {
		return fmt.Errorf("platform: unload library: %w", err)
	}
	return nil
}
