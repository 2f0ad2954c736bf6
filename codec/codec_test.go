// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec_test

import (
	"bytes"
	"context"
	"testing"

	"code.hybscloud.com/netcore/byteio"
	"code.hybscloud.com/netcore/codec"
	"code.hybscloud.com/netcore/wire"
)

func TestCompressorRoundTrip(t *testing.T) {
	c := codec.NewCompressor()
	d := codec.NewDecompressor()
	for _, s := range []string{"", "a", "hello, world", string(bytes.Repeat([]byte("x"), 4096))} {
		b := []byte(s)
		compressed, err := c.Deflate(b)
		if err != nil {
			t.Fatal(err)
		}
		got, err := d.Inflate(compressed, len(b))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, b) {
			t.Fatalf("round trip mismatch for %q", s)
		}
	}
}

type fixedPacket struct{ body []byte }

func (p *fixedPacket) Size() int                     { return len(p.body) }
func (p *fixedPacket) WriteTo(w *byteio.Writer) error { return w.WriteBytes(p.body) }
func (p *fixedPacket) ReadFrom(r *byteio.Reader) error {
	b, err := r.ReadString(r.Remaining())
	if err != nil {
		return err
	}
	p.body = []byte(b)
	return nil
}

func TestEncodeWithoutCompressionMatchesLiteralLayout(t *testing.T) {
	reg := wire.NewRegistry()
	if err := reg.Register(7, func() wire.Packet { return &fixedPacket{} }); err != nil {
		t.Fatal(err)
	}
	f := wire.NewPacketFormat(wire.TagPack, "PACK", reg)
	p := codec.NewPipeline() // compression disabled by default

	pkt := &fixedPacket{body: []byte{0xde, 0xad, 0xbe}}
	frame, err := p.Encode(f, wire.PacketPayload{TypeID: 7, Packet: pkt}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{'P', 'A', 'C', 'K', 0x07, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0xde, 0xad, 0xbe}
	if !bytes.Equal(frame, want) {
		t.Fatalf("got % x want % x", frame, want)
	}
}

func TestEncodeBelowThresholdWrapsWithZeroMarker(t *testing.T) {
	reg := wire.NewRegistry()
	if err := reg.Register(7, func() wire.Packet { return &fixedPacket{} }); err != nil {
		t.Fatal(err)
	}
	f := wire.NewPacketFormat(wire.TagPack, "PACK", reg)
	p := codec.NewPipeline(codec.WithCompressionSize(1024))

	pkt := &fixedPacket{body: []byte{0xde, 0xad, 0xbe}}
	frame, err := p.Encode(f, wire.PacketPayload{TypeID: 7, Packet: pkt}, 0)
	if err != nil {
		t.Fatal(err)
	}
	// tag(4) + innerTag(4) + wrappedLen(4) + marker(4) + body(3)
	want := []byte{'P', 'A', 'C', 'K', 0x07, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xde, 0xad, 0xbe}
	if !bytes.Equal(frame, want) {
		t.Fatalf("got % x want % x", frame, want)
	}
}

func TestEncodeAsyncWithoutThreadPoolRunsSynchronously(t *testing.T) {
	reg := wire.NewRegistry()
	if err := reg.Register(7, func() wire.Packet { return &fixedPacket{} }); err != nil {
		t.Fatal(err)
	}
	f := wire.NewPacketFormat(wire.TagPack, "PACK", reg)
	p := codec.NewPipeline()
	pkt := &fixedPacket{body: []byte{0x01}}
	ch := p.EncodeAsync(context.Background(), f, wire.PacketPayload{TypeID: 7, Packet: pkt}, 0)
	res := <-ch
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if len(res.Frame) == 0 {
		t.Fatal("expected non-empty frame")
	}
}
