// File: core/protocol/constants.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire protocol constants

package protocol

const (
	// MaxPacketSize is the default upper bound for a single packet payload.
	MaxPacketSize = 1 << 20 // 1 MiB

	// LengthHeaderLen is the size of the length-prefixed header.
	LengthHeaderLen = 4

	// WebSocket-style frame opcodes
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2

	// Frame limit settings
	MaxFrameHeaderLen = 14 // for extended payloads with masking

	// Bit masks
	FinBit  = 0x80
	MaskBit = 0x80
)
