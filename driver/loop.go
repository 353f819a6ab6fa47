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

// Package driver implements the host's main loop: each iteration drains
// deferred plugin load/unload requests, advances the timer wheel,
// publishes a tick, and services raw-mode console input, confirmed
// line-for-line against original_source/runtime.cc's main().
package driver

import (
	"fmt"
	"io"

	"github.com/TimeWtr/pluginhost/kernel"
	"github.com/TimeWtr/pluginhost/utils/atomicx"
)

const (
	charESC       = 0x1B
	charCR        = '\r'
	charLF        = '\n'
	charBackspace = 0x08
	charDEL       = 0x7F
)

// Console is the seam between the loop and raw-mode stdin: KBHit/GetCh
// drive input, Out is where the prompt and local echo are written. The
// production binary supplies platform.KBHit/platform.GetCh and os.Stdout;
// tests supply a canned byte feed and a buffer.
type Console struct {
	KBHit func() (bool, error)
	GetCh func() (byte, error)
	Out   io.Writer
}

// Sleeper is the loop's one suspension point per spec.md §5.
type Sleeper func(ms uint32)

// Loop owns the main iteration. TickIntervalMS and Prompt come from the
// host's config file (manifest.HostConfig); zero values fall back to the
// spec's defaults of 16ms and "> ". TickIntervalMS can be changed while
// Run is active via SetTickIntervalMS — a config hot-reload touches the
// tick interval and log level of an already-running host, never plugin
// topology.
type Loop struct {
	Runtime *kernel.Runtime
	Console Console
	Sleep   Sleeper
	Prompt  string

	tickMS  atomicx.Int32
	buf     []byte
	running bool
}

// SetTickIntervalMS updates the sleep duration used by subsequent
// iterations of Run. Safe to call concurrently with Run.
func (l *Loop) SetTickIntervalMS(ms uint32) {
	l.tickMS.Store(int32(ms))
}

// Run drives iterations until ESC is read from the console or stop is
// closed, then unloads every plugin in reverse load order.
func (l *Loop) Run(stop <-chan struct{}) {
	if l.tickMS.Load() == 0 {
		l.tickMS.Store(16)
	}
	prompt := l.Prompt
	if prompt == "" {
		prompt = "> "
	}

	fmt.Fprint(l.Console.Out, prompt)

	l.running = true
	for l.running {
		select {
		case <-stop:
			l.running = false
		default:
		}
		if !l.running {
			break
		}

		interval := uint32(l.tickMS.Load())
		if interval == 0 {
			interval = 16
		}

		l.Runtime.Mgr.DrainPending(l.Runtime.HostVTable())
		l.Runtime.Wheel.Tick(l.Runtime.NowMs())
		l.Runtime.Bus.Publish("tick", fmt.Sprintf("%dms", interval))

		l.drainConsole(prompt)

		l.Sleep(interval)
	}

	l.Runtime.Mgr.ShutdownAll()
}

// drainConsole services every byte currently buffered on stdin, per
// spec.md §4.8's ESC/CR/backspace/printable handling.
func (l *Loop) drainConsole(prompt string) {
	for {
		hit, err := l.Console.KBHit()
		if err != nil || !hit {
			return
		}
		ch, err := l.Console.GetCh()
		if err != nil {
			return
		}

		switch {
		case ch == charESC:
			l.running = false
			return
		case ch == charCR || ch == charLF:
			if len(l.buf) > 0 {
				l.Runtime.Bus.Publish("consoleInput", string(l.buf))
				l.buf = l.buf[:0]
			}
			fmt.Fprint(l.Console.Out, "\n"+prompt)
		case ch == charBackspace || ch == charDEL:
			if len(l.buf) > 0 {
				l.buf = l.buf[:len(l.buf)-1]
				fmt.Fprint(l.Console.Out, "\b \b")
			}
		case ch >= 0x20 && ch <= 0x7E:
			l.buf = append(l.buf, ch)
			fmt.Fprint(l.Console.Out, string(ch))
		}
	}
}
