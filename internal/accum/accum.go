// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package accum implements the stateful per-peer byte accumulator (C4):
// it ingests arbitrary-size byte runs, resolves the current wire format
// by its 4-byte tag, asks the format how many more bytes it needs, and
// hands complete frames to an Adapter. It never loses bytes across
// incomplete ingests and resyncs byte-by-byte on an unrecognized tag.
package accum

import (
	"encoding/binary"

	"go.uber.org/zap"

	"code.hybscloud.com/netcore/wire"
)

// Adapter is invoked by the Accumulator once a frame is complete, one
// method per wire format. Decode failures (unknown packet type, invalid
// frame) never reach the adapter; they are logged and the frame is
// dropped.
type Adapter interface {
	ReceivePacket(typeID uint32, packet wire.Packet)
	ReceiveCheck(correlationID uint32)
	ReceiveCheckReply(correlationID uint32)
	ReceiveUDPLogin()
	ReceiveUDPLogout()
	ReceiveServerInfoRequest()
	ReceiveServerInfoAnswer(typeID uint32, packet wire.Packet)
	ReceiveConnectionAccepted()
}

// Stats holds the cumulative counters a decoder exposes for ambient
// observability (see SPEC_FULL.md §7); reading them does not reset them.
type Stats struct {
	Resyncs        uint64
	UnknownPackets uint64
	InvalidFrames  uint64
}

// Decompressor inflates the compressed body of a compression-eligible
// frame. Package codec's Decompressor satisfies this by construction.
// The uncompressed-length-marker wire contract this mirrors is the one
// codec.Pipeline.Encode writes: a leading 4-byte marker of 0 means "raw bytes follow", any
// other value is the exact inflated length of the deflate bytes that
// follow it.
type Decompressor interface {
	Inflate(compressed []byte, uncompressedLen int) ([]byte, error)
}

// Accumulator is the per-peer decoder state described in the data
// model: a growable buffer, a "bytes still needed" counter, and the
// currently selected format (nil when none). Not safe for concurrent
// use; callers serialize access (the decoder pool does this via its
// refcount discipline).
type Accumulator struct {
	catalogue *wire.Catalogue
	log       *zap.Logger

	buf           []byte
	requiredBytes int
	format        wire.Format

	initialSize  int
	decompressor Decompressor

	stats Stats
}

// New returns an Accumulator at its initial state (required_bytes=4, no
// format selected), ready to resolve frames through cat. initialSize
// seeds the buffer's starting capacity. A nil logger is treated as
// zap.NewNop(). decompressor may be nil, meaning compression is
// disabled for frames this accumulator decodes (compression_size==-1).
func New(cat *wire.Catalogue, initialSize int, log *zap.Logger, decompressor Decompressor) *Accumulator {
	if log == nil {
		log = zap.NewNop()
	}
	if initialSize <= 0 {
		initialSize = 256
	}
	return &Accumulator{
		catalogue:     cat,
		log:           log,
		buf:           make([]byte, 0, initialSize),
		requiredBytes: 4,
		initialSize:   initialSize,
		decompressor:  decompressor,
	}
}

// IsDone reports whether the accumulator is at its initial,
// no-frame-in-progress state — the condition the decoder pool (C5)
// checks before returning an entry to its free list.
func (a *Accumulator) IsDone() bool {
	return a.format == nil && a.requiredBytes == 4 && len(a.buf) == 0
}

// Reset forces the accumulator back to its initial state, discarding
// any in-progress frame. The accumulator calls it itself after each
// complete or invalid frame.
func (a *Accumulator) Reset() {
	a.format = nil
	a.buf = a.buf[:0]
	a.requiredBytes = 4
}

// Stats returns a snapshot of the accumulator's error/resync counters.
func (a *Accumulator) Stats() Stats { return a.stats }

// Ingest feeds data into the accumulator, consuming exactly as many
// bytes as each decision point calls for so that no format ever sees
// more than the bytes it asked for — the accumulator itself buffers any
// surplus and replays it on the next decision. Ingest calls Adapter
// methods synchronously, once per fully decoded frame, in arrival
// order.
func (a *Accumulator) Ingest(data []byte, adapter Adapter) {
	for len(data) > 0 {
		take := a.requiredBytes
		if take > len(data) {
			take = len(data)
		}
		a.buf = append(a.buf, data[:take]...)
		data = data[take:]
		a.requiredBytes -= take
		if a.requiredBytes > 0 {
			continue
		}

		if a.format == nil {
			a.resolveFormat(adapter)
			continue
		}
		a.advanceFormat(adapter)
	}
}

// resolveFormat runs when required_bytes has just reached zero with no
// format selected: the buffer holds exactly 4 bytes, the candidate tag.
func (a *Accumulator) resolveFormat(adapter Adapter) {
	var tag wire.Tag
	copy(tag[:], a.buf)
	f, ok := a.catalogue.Lookup(tag)
	if !ok {
		a.stats.Resyncs++
		a.log.Debug("accum: unrecognized frame tag, resyncing", zap.String("tag", tag.String()))
		a.buf = append(a.buf[:0], a.buf[1:]...)
		a.requiredBytes = 1
		return
	}
	a.format = f
	a.buf = a.buf[:0]
	a.applyReceiveMore(a.format.ReceiveMore(a.buf, 0), adapter)
}

// advanceFormat runs when required_bytes has just reached zero with a
// format already selected: the buffer holds exactly as many bytes as
// the format's previous ReceiveMore call asked for.
func (a *Accumulator) advanceFormat(adapter Adapter) {
	n := a.format.ReceiveMore(a.buf, len(a.buf))
	a.applyReceiveMore(n, adapter)
}

func (a *Accumulator) applyReceiveMore(n int32, adapter Adapter) {
	switch {
	case n < 0:
		a.stats.InvalidFrames++
		a.log.Debug("accum: format reported invalid frame, dropping", zap.String("format", a.format.Name()))
		a.Reset()
	case n == 0:
		a.decodeAndDispatch(adapter)
		a.Reset()
	default:
		a.requiredBytes = int(n)
	}
}

func (a *Accumulator) decodeAndDispatch(adapter Adapter) {
	f := a.format
	buf := a.buf
	if f.SupportsCompression() && a.decompressor != nil {
		unwrapped, err := a.unwrapCompression(buf)
		if err != nil {
			a.stats.InvalidFrames++
			a.log.Debug("accum: compression unwrap failed, dropping frame", zap.String("format", f.Name()), zap.Error(err))
			return
		}
		buf = unwrapped
	}
	payload, err := f.Decode(buf)
	if err != nil {
		if err == wire.ErrUnknownPacketType {
			a.stats.UnknownPackets++
			a.log.Error("accum: unknown packet type, dropping frame", zap.String("format", f.Name()))
		} else {
			a.stats.InvalidFrames++
			a.log.Debug("accum: decode failed, dropping frame", zap.String("format", f.Name()), zap.Error(err))
		}
		return
	}
	dispatch(f.Tag(), payload, adapter)
}

func dispatch(tag wire.Tag, payload any, adapter Adapter) {
	switch tag {
	case wire.TagPack:
		pp := payload.(wire.PacketPayload)
		adapter.ReceivePacket(pp.TypeID, pp.Packet)
	case wire.TagSian:
		pp := payload.(wire.PacketPayload)
		adapter.ReceiveServerInfoAnswer(pp.TypeID, pp.Packet)
	case wire.TagChck:
		cp := payload.(wire.CheckPayload)
		adapter.ReceiveCheck(cp.CorrelationID)
	case wire.TagChrp:
		cp := payload.(wire.CheckPayload)
		adapter.ReceiveCheckReply(cp.CorrelationID)
	case wire.TagHelo:
		adapter.ReceiveUDPLogin()
	case wire.TagBYEX:
		adapter.ReceiveUDPLogout()
	case wire.TagSirq:
		adapter.ReceiveServerInfoRequest()
	case wire.TagCacc:
		adapter.ReceiveConnectionAccepted()
	}
}

// unwrapCompression rewrites a complete packet-bearing frame buffer
// (innerTag + wrappedLength + wrappedBody) into the canonical,
// compression-agnostic layout (innerTag + rawLength + rawBody) that
// wire.Format.Decode expects, per the uncompressed-length-marker
// contract package codec writes on encode. A marker of 0 means the
// body was below the compression threshold and follows raw; any other
// value is the exact length to inflate the trailing deflate bytes to.
func (a *Accumulator) unwrapCompression(complete []byte) ([]byte, error) {
	if len(complete) < 12 {
		return nil, wire.ErrInvalidFrame
	}
	typeID := complete[0:4]
	body := complete[8:]
	marker := binary.LittleEndian.Uint32(body[0:4])

	var raw []byte
	if marker == 0 {
		raw = body[4:]
	} else {
		inflated, err := a.decompressor.Inflate(body[4:], int(marker))
		if err != nil {
			return nil, err
		}
		raw = inflated
	}

	out := make([]byte, 8+len(raw))
	copy(out[0:4], typeID)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(raw)))
	copy(out[8:], raw)
	return out, nil
}
