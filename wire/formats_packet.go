// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"

	"code.hybscloud.com/netcore/byteio"
)

// packetFormat implements the length-prefixed packet payload shape
// shared by PACK and SIAN: a 4-byte packet type tag, a 4-byte payload
// length, and the packet body.
//
// Decode/Encode always operate on the canonical, uncompressed layout
// (innerTag + length + body). Compression (when enabled) is applied
// as an outer wrapping step by the encode pipeline (package codec) on
// encode, and unwrapped by the byte accumulator (package
// internal/accum) on decode, using the same fixed-offset contract this
// format documents.
type packetFormat struct {
	tag  Tag
	name string
	reg  *Registry
}

// NewPacketFormat returns a Format for a length-prefixed packet frame
// (PACK or SIAN), resolving type tags through reg.
func NewPacketFormat(tag Tag, name string, reg *Registry) Format {
	return packetFormat{tag: tag, name: name, reg: reg}
}

func (f packetFormat) Tag() Tag     { return f.tag }
func (f packetFormat) Name() string { return f.name }

func (f packetFormat) ReceiveMore(partial []byte, accumulated int) int32 {
	if accumulated < 8 {
		return int32(8 - accumulated)
	}
	payloadLen := binary.LittleEndian.Uint32(partial[4:8])
	return int32(8+int64(payloadLen)) - int32(accumulated)
}

func (f packetFormat) Decode(complete []byte) (any, error) {
	if len(complete) < 8 {
		return nil, ErrInvalidFrame
	}
	typeID := binary.LittleEndian.Uint32(complete[0:4])
	n := binary.LittleEndian.Uint32(complete[4:8])
	body := complete[8:]
	if uint32(len(body)) != n {
		return nil, ErrInvalidFrame
	}

	p, ok := f.reg.New(typeID)
	if !ok {
		return nil, ErrUnknownPacketType
	}
	r := byteio.NewReader(body)
	if err := p.ReadFrom(r); err != nil {
		return nil, ErrInvalidFrame
	}
	return PacketPayload{TypeID: typeID, Packet: p}, nil
}

func (f packetFormat) Encode(data any, suggestedSize int) ([]byte, error) {
	pp, ok := data.(PacketPayload)
	if !ok {
		return nil, ErrInvalidArgument
	}
	if _, registered := f.reg.IDOf(pp.Packet); !registered {
		return nil, ErrInvalidArgument
	}

	size := pp.Packet.Size()
	var w *byteio.Writer
	if size >= 0 {
		w = byteio.NewFixedWriter(size)
	} else {
		if suggestedSize <= 0 {
			suggestedSize = 64
		}
		w = byteio.NewWriter(suggestedSize)
	}
	if err := pp.Packet.WriteTo(w); err != nil {
		return nil, err
	}
	body := w.Bytes()

	out := byteio.NewFixedWriter(8 + len(body))
	if err := out.WriteInt(int32(pp.TypeID)); err != nil {
		return nil, err
	}
	if err := out.WriteInt(int32(len(body))); err != nil {
		return nil, err
	}
	if err := out.WriteBytes(body); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (f packetFormat) SupportsCompression() bool { return true }
