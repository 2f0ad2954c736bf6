// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"

	"code.hybscloud.com/netcore/byteio"
)

// emptyFormat implements the empty-payload shape shared by HELO, BYEX,
// SIRQ, and CACC: the frame is complete the instant its tag is read.
type emptyFormat struct {
	tag  Tag
	name string
}

// NewEmptyFormat returns a Format for a signal-only frame.
func NewEmptyFormat(tag Tag, name string) Format { return emptyFormat{tag: tag, name: name} }

func (f emptyFormat) Tag() Tag    { return f.tag }
func (f emptyFormat) Name() string { return f.name }

func (f emptyFormat) ReceiveMore(_ []byte, accumulated int) int32 { return int32(-accumulated) }

func (f emptyFormat) Decode(complete []byte) (any, error) {
	if len(complete) != 0 {
		return nil, ErrInvalidFrame
	}
	return Empty{}, nil
}

func (f emptyFormat) Encode(_ any, _ int) ([]byte, error) { return []byte{}, nil }

func (f emptyFormat) SupportsCompression() bool { return false }

// fixedIntFormat implements the fixed 4-byte payload shape shared by
// CHCK and CHRP: a single little-endian correlation id, no compression.
type fixedIntFormat struct {
	tag  Tag
	name string
}

// NewFixedIntFormat returns a Format for a 4-byte correlation-id frame.
func NewFixedIntFormat(tag Tag, name string) Format { return fixedIntFormat{tag: tag, name: name} }

func (f fixedIntFormat) Tag() Tag     { return f.tag }
func (f fixedIntFormat) Name() string { return f.name }

func (f fixedIntFormat) ReceiveMore(_ []byte, accumulated int) int32 { return int32(4 - accumulated) }

func (f fixedIntFormat) Decode(complete []byte) (any, error) {
	if len(complete) != 4 {
		return nil, ErrInvalidFrame
	}
	return CheckPayload{CorrelationID: binary.LittleEndian.Uint32(complete)}, nil
}

func (f fixedIntFormat) Encode(data any, _ int) ([]byte, error) {
	cp, ok := data.(CheckPayload)
	if !ok {
		return nil, ErrInvalidArgument
	}
	w := byteio.NewFixedWriter(4)
	if err := w.WriteInt(int32(cp.CorrelationID)); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (f fixedIntFormat) SupportsCompression() bool { return false }
