// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "errors"

var (
	// ErrUnknownPacketType reports a PACK/SIAN frame whose inner type
	// tag has no registered factory. The frame is still fully
	// consumed; only the packet is dropped.
	ErrUnknownPacketType = errors.New("wire: unknown packet type")

	// ErrInvalidFrame reports that a buffer handed to Decode is
	// malformed (its length does not fit the format), or that decoding
	// otherwise failed (e.g. a packet's ReadFrom returned an error).
	ErrInvalidFrame = errors.New("wire: invalid frame")

	// ErrInvalidArgument reports that Encode was given a value it
	// cannot represent (e.g. a packet with no registered id).
	ErrInvalidArgument = errors.New("wire: invalid argument")
)
