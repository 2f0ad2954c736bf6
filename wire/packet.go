// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import "code.hybscloud.com/netcore/byteio"

// Packet is a user-defined application message carried inside a PACK
// or SIAN frame.
type Packet interface {
	// Size reports the packet's serialized byte size in advance.
	// A value >= 0 means fixed (the encoder pre-grows a buffer of
	// exactly that size); a negative value means unknown, and the
	// encoder falls back to a growable buffer.
	Size() int
	WriteTo(w *byteio.Writer) error
	ReadFrom(r *byteio.Reader) error
}

// Factory constructs a new, zero-valued Packet instance ready to have
// ReadFrom called on it.
type Factory func() Packet
