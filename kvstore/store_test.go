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

package kvstore

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSetRoundTrip(t *testing.T) {
	s := New()

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("k", "v1")
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	s.Set("k", "v2")
	v, ok = s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestHas(t *testing.T) {
	s := New()
	assert.False(t, s.Has("k"))
	s.Set("k", "v")
	assert.True(t, s.Has("k"))
}

func TestDeleteReportsWhetherRemovalOccurred(t *testing.T) {
	s := New()
	assert.False(t, s.Delete("k"))

	s.Set("k", "v")
	assert.True(t, s.Delete("k"))
	assert.False(t, s.Delete("k"))
	assert.False(t, s.Has("k"))
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := strconv.Itoa(i % 10)
			s.Set(key, key)
			s.Get(key)
			s.Has(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 10)
}
