// SPDX-License-Identifier: MIT

//go:build !amd64

package fpmode

const supported = false

func flushBits() uint32 { return 0 }

func getControlWord() uint32 { return 0 }

func setControlWord(uint32) {}
