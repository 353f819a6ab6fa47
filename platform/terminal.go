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

package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Terminal holds the stdin termios state captured before switching into
// raw mode, so it can be restored exactly once. The zero value is not
// usable; obtain one from EnterRawMode.
type Terminal struct {
	fd     int
	saved  unix.Termios
	closed bool
}

// EnterRawMode snapshots stdin's current termios settings and switches it
// to non-canonical, no-echo mode: input is delivered byte-by-byte instead
// of line-buffered, and the driver is responsible for its own echo. Mirrors
// the lifetime of the original's TermSetup RAII guard as an explicit value
// with a Restore method instead of a destructor.
func EnterRawMode() (*Terminal, error) {
	fd := int(os.Stdin.Fd())

	saved, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("platform: get termios: %w", err)
	}

	raw := *saved
	raw.Lflag &^= unix.ICANON | unix.ECHO
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, fmt.Errorf("platform: set termios: %w", err)
	}

	return &Terminal{fd: fd, saved: *saved}, nil
}

// Restore puts stdin back into the mode it was in before EnterRawMode.
// Safe to call more than once; only the first call has effect.
func (t *Terminal) Restore() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if err := unix.IoctlSetTermios(t.fd, unix.TCSETS, &t.saved); err != nil {
		return fmt.Errorf("platform: restore termios: %w", err)
	}
	return nil
}

// KBHit reports whether a byte is currently available on stdin without
// blocking, via a zero-timeout select on fd 0.
func KBHit() (bool, error) {
	fds := &unix.FdSet{}
	fds.Set(int(os.Stdin.Fd()))
	tv := unix.Timeval{Sec: 0, Usec: 0}

	n, err := unix.Select(int(os.Stdin.Fd())+1, fds, nil, nil, &tv)
	if err != nil {
		return false, fmt.Errorf("platform: select on stdin: %w", err)
	}
	return n > 0, nil
}

// GetCh reads exactly one byte from stdin. Call only after KBHit reports
// true, to avoid blocking the driver loop.
func GetCh() (byte, error) {
	var buf [1]byte
	n, err := os.Stdin.Read(buf[:])
	if err != nil {
		return 0, fmt.Errorf("platform: read stdin: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("platform: read stdin: zero bytes")
	}
	return buf[0], nil
}
