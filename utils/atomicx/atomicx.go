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

// Package atomicx wraps sync/atomic in small typed handles so call sites
// read as values instead of raw pointer arithmetic.
package atomicx

import "sync/atomic"

type Int32 struct {
	value int32
}

func NewInt32(initial int32) *Int32 {
	return &Int32{value: initial}
}

func (i *Int32) Load() int32 {
	return atomic.LoadInt32(&i.value)
}

func (i *Int32) Store(v int32) {
	atomic.StoreInt32(&i.value, v)
}

func (i *Int32) Add(delta int32) int32 {
	return atomic.AddInt32(&i.value, delta)
}

func (i *Int32) CompareAndSwap(old, newV int32) bool {
	return atomic.CompareAndSwapInt32(&i.value, old, newV)
}

type Uint64 struct {
	value uint64
}

func NewUint64(initial uint64) *Uint64 {
	return &Uint64{value: initial}
}

func (u *Uint64) Load() uint64 {
	return atomic.LoadUint64(&u.value)
}

func (u *Uint64) Add(delta uint64) uint64 {
	return atomic.AddUint64(&u.value, delta)
}

// Bool is a tri-state-free boolean stored as an int32 under the hood.
type Bool struct {
	value int32
}

func NewBool() *Bool {
	return &Bool{}
}

func (b *Bool) Load() bool {
	return atomic.LoadInt32(&b.value) != 0
}

func (b *Bool) Store(v bool) {
	if v {
		atomic.StoreInt32(&b.value, 1)
		return
	}
	atomic.StoreInt32(&b.value, 0)
}

func (b *Bool) SetFalse() {
	atomic.StoreInt32(&b.value, 0)
}

func (b *Bool) CompareAndSwap(old, newV bool) bool {
	var o, n int32
	if old {
		o = 1
	}
	if newV {
		n = 1
	}
	return atomic.CompareAndSwapInt32(&b.value, o, n)
}
