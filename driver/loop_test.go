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

package driver

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TimeWtr/pluginhost/kernel"
	"github.com/TimeWtr/pluginhost/platform"
	"github.com/TimeWtr/pluginhost/utils/log"
)

// feedConsole replays a fixed byte sequence as if typed at the prompt,
// one byte becoming available per KBHit call, then reports no more input.
type feedConsole struct {
	bytes []byte
	pos   int
}

func (f *feedConsole) KBHit() (bool, error) {
	return f.pos < len(f.bytes), nil
}

func (f *feedConsole) GetCh() (byte, error) {
	b := f.bytes[f.pos]
	f.pos++
	return b, nil
}

func newLoop(t *testing.T, feed []byte) (*Loop, *bytes.Buffer) {
	t.Helper()
	l := log.NewZapAdapter(zap.NewNop())
	rt := kernel.New(fakeDynLibForDriver(), "plugins", l)

	f := &feedConsole{bytes: feed}
	out := &bytes.Buffer{}

	loop := &Loop{
		Runtime: rt,
		Console: Console{KBHit: f.KBHit, GetCh: f.GetCh, Out: out},
		Sleep:   func(uint32) {},
	}
	return loop, out
}

// fakeDynLibForDriver satisfies platform.DynLib without ever being asked
// to open anything in these tests, which never load a plugin.
func fakeDynLibForDriver() platform.DynLib {
	return noopDynLib{}
}

type noopDynLib struct{}

func (noopDynLib) Open(string) (uintptr, error)            { return 0, assertNever("Open") }
func (noopDynLib) Lookup(uintptr, string) (uintptr, error) { return 0, assertNever("Lookup") }
func (noopDynLib) Close(uintptr) error                     { return nil }

func assertNever(op string) error {
	panic("driver test: unexpected DynLib." + op + " call")
}

func TestRun_ESCStopsTheLoop(t *testing.T) {
	loop, out := newLoop(t, []byte{charESC})
	stop := make(chan struct{})

	done := make(chan struct{})
	go func() {
		loop.Run(stop)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ESC byte did not stop the loop")
	}
	assert.Contains(t, out.String(), "> ")
}

func TestDrainConsole_PublishesBufferedLineOnEnter(t *testing.T) {
	loop, out := newLoop(t, []byte{'h', 'i', charCR})

	var got string
	loop.Runtime.Bus.Subscribe("consoleInput", 1, func(topic, payload string) {
		got = payload
	})

	loop.drainConsole("> ")

	assert.Equal(t, "hi", got)
	assert.Contains(t, out.String(), "hi")
	assert.Empty(t, loop.buf)
}

func TestDrainConsole_BackspaceRemovesLastChar(t *testing.T) {
	loop, out := newLoop(t, []byte{'a', 'b', charBackspace})

	loop.drainConsole("> ")

	assert.Equal(t, []byte("a"), loop.buf)
	assert.Contains(t, out.String(), "\b \b")
}

func TestDrainConsole_ESCStopsRunning(t *testing.T) {
	loop, _ := newLoop(t, []byte{'x', charESC, 'y'})
	loop.running = true

	loop.drainConsole("> ")

	assert.False(t, loop.running)
	assert.Equal(t, []byte("x"), loop.buf)
}

func TestRun_UnloadsOnStopChannel(t *testing.T) {
	loop, _ := newLoop(t, nil)
	stop := make(chan struct{})
	close(stop)

	require.NotPanics(t, func() { loop.Run(stop) })
}
