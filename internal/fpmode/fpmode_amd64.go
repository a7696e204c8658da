// SPDX-License-Identifier: MIT
package fpmode

import "golang.org/x/sys/cpu"

const (
	mxcsrDAZ = 1 << 6  // denormals are zero
	mxcsrFTZ = 1 << 15 // flush to zero
)

const supported = true

// hasDAZ uses SSE3 as the proxy for DAZ support; early SSE2 parts lacked it
// and raise #GP when the bit is written.
var hasDAZ = cpu.X86.HasSSE3

func flushBits() uint32 {
	if hasDAZ {
		return mxcsrFTZ | mxcsrDAZ
	}
	return mxcsrFTZ
}

func getControlWord() uint32 {
	return getMXCSR()
}

func setControlWord(v uint32) {
	setMXCSR(v)
}

func getMXCSR() uint32

func setMXCSR(csr uint32)
