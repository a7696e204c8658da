// SPDX-License-Identifier: MIT
/*
Package fpmode scopes the floating point denormal mode to one unit of work.

Subnormal intermediates make the spectral math several times slower on x86
without changing the output in any visible way, so frame processing runs
with flush-to-zero (and denormals-are-zero where the CPU has it) enabled.
The control register is per OS thread, so Enter pins the calling goroutine
to its thread until Restore:

	defer fpmode.Enter().Restore()

On architectures without a supported control word both calls only pin and
unpin the thread.
*/
package fpmode

import "runtime"

// Scope is the saved floating point state of one Enter call.
type Scope struct {
	saved  uint32
	active bool
}

// Supported reports whether this build can change the denormal mode.
func Supported() bool {
	return supported
}

// Enter locks the goroutine to its OS thread, saves the current control
// word and switches subnormal handling off.
func Enter() *Scope {
	runtime.LockOSThread()
	if !supported {
		return &Scope{active: true}
	}
	saved := getControlWord()
	setControlWord(saved | flushBits())
	return &Scope{saved: saved, active: true}
}

// Restore puts back the control word saved by Enter and unpins the thread.
// Calling Restore on a zero Scope, or twice, does nothing.
func (s *Scope) Restore() {
	if !s.active {
		return
	}
	s.active = false
	if supported {
		setControlWord(s.saved)
	}
	runtime.UnlockOSThread()
}

// Current returns the thread's control word, or 0 when unsupported.
// The caller should hold a Scope so the value refers to a stable thread.
func Current() uint32 {
	if !supported {
		return 0
	}
	return getControlWord()
}
