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

import "errors"

// Error kinds surfaced at the plugin-load boundary. They are reported and
// swallowed by the lifecycle manager — never propagated into the
// event-dispatch hot path.
var (
	ErrLibraryLoadFailure    = errors.New("abi: library load failure")
	ErrMissingSymbol         = errors.New("abi: missing required symbol")
	ErrAbiMismatch           = errors.New("abi: abi version mismatch")
	ErrInitRejected          = errors.New("abi: plugin_init rejected")
	ErrDependencyUnavailable = errors.New("abi: required dependency unavailable")
	ErrUnknownPlugin         = errors.New("abi: unknown plugin")
)
