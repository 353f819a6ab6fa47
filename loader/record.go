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

// Package loader resolves a single plugin image: opening its shared
// object, checking its three mandatory exports and ABI version, and
// driving its init/shutdown calls. It knows nothing about manifests,
// ordering, or dependency graphs — that is lifecycle's job.
package loader

import "github.com/TimeWtr/pluginhost/abi"

// Record is the host's view of one loaded plugin image. It stays valid
// from a successful Load until Unload releases the library handle.
type Record struct {
	RequestedName string
	Handle        uintptr
	Info          abi.Info

	getInfoAddr  uintptr
	initAddr     uintptr
	shutdownAddr uintptr
	releaseHost  func()
}
