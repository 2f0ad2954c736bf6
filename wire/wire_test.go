// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wire_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/netcore/byteio"
	"code.hybscloud.com/netcore/wire"
)

type fixedPacket struct {
	body []byte
}

func (p *fixedPacket) Size() int { return len(p.body) }
func (p *fixedPacket) WriteTo(w *byteio.Writer) error { return w.WriteBytes(p.body) }
func (p *fixedPacket) ReadFrom(r *byteio.Reader) error {
	b, err := r.ReadString(r.Remaining())
	if err != nil {
		return err
	}
	p.body = []byte(b)
	return nil
}

func TestEmptyFrameEncodeIsExactlyTag(t *testing.T) {
	f := wire.NewEmptyFormat(wire.TagHelo, "HELO")
	buf, err := f.Encode(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(buf))
	}
	if f.ReceiveMore(nil, 0) != 0 {
		t.Fatal("expected frame complete immediately")
	}
	v, err := f.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(wire.Empty); !ok {
		t.Fatalf("expected Empty sentinel, got %T", v)
	}
}

func TestCheckFrameRoundTrip(t *testing.T) {
	f := wire.NewFixedIntFormat(wire.TagChck, "CHCK")
	buf, err := f.Encode(wire.CheckPayload{CorrelationID: 0x11223344}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x44, 0x33, 0x22, 0x11}
	if !bytes.Equal(buf, want) {
		t.Fatalf("got % x want % x", buf, want)
	}
	if n := f.ReceiveMore(buf[:2], 2); n != 2 {
		t.Fatalf("ReceiveMore(2 bytes) = %d, want 2", n)
	}
	if n := f.ReceiveMore(buf, 4); n != 0 {
		t.Fatalf("ReceiveMore(4 bytes) = %d, want 0", n)
	}
	v, err := f.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	cp := v.(wire.CheckPayload)
	if cp.CorrelationID != 0x11223344 {
		t.Fatalf("got %x", cp.CorrelationID)
	}
}

func TestPacketFrameLiteralLayout(t *testing.T) {
	reg := wire.NewRegistry()
	if err := reg.Register(7, func() wire.Packet { return &fixedPacket{} }); err != nil {
		t.Fatal(err)
	}
	f := wire.NewPacketFormat(wire.TagPack, "PACK", reg)

	pkt := &fixedPacket{body: []byte{0xde, 0xad, 0xbe}}
	buf, err := f.Encode(wire.PacketPayload{TypeID: 7, Packet: pkt}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x07, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00, 0xde, 0xad, 0xbe}
	if !bytes.Equal(buf, want) {
		t.Fatalf("got % x want % x", buf, want)
	}
	if len(buf) != 4+4+3 {
		t.Fatalf("frame payload should be 4+4+n=11 bytes, got %d", len(buf))
	}

	v, err := f.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	pp := v.(wire.PacketPayload)
	got := pp.Packet.(*fixedPacket)
	if !bytes.Equal(got.body, pkt.body) {
		t.Fatalf("got %v want %v", got.body, pkt.body)
	}
}

func TestPacketFrameUnknownTypeDropsSilently(t *testing.T) {
	reg := wire.NewRegistry()
	f := wire.NewPacketFormat(wire.TagPack, "PACK", reg)
	buf := []byte{0x09, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	_, err := f.Decode(buf)
	if err != wire.ErrUnknownPacketType {
		t.Fatalf("expected ErrUnknownPacketType, got %v", err)
	}
}

func TestReceiveMorePeeksDeclaredLength(t *testing.T) {
	reg := wire.NewRegistry()
	f := wire.NewPacketFormat(wire.TagPack, "PACK", reg)
	header := []byte{0x07, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00}
	if n := f.ReceiveMore(header[:4], 4); n != 4 {
		t.Fatalf("before length known: got %d want 4", n)
	}
	if n := f.ReceiveMore(header, 8); n != 3 {
		t.Fatalf("after length known: got %d want 3 (payload_len)", n)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := wire.NewRegistry()
	factory := func() wire.Packet { return &fixedPacket{} }
	if err := reg.Register(1, factory); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(1, factory); err != wire.ErrAlreadyRegistered {
		t.Fatalf("expected duplicate id rejection, got %v", err)
	}
	if err := reg.Register(2, factory); err != wire.ErrAlreadyRegistered {
		t.Fatalf("expected duplicate type rejection, got %v", err)
	}
}

func TestCatalogueLookup(t *testing.T) {
	reg := wire.NewRegistry()
	cat := wire.NewCatalogue(reg)
	for _, tag := range []wire.Tag{wire.TagPack, wire.TagChck, wire.TagChrp, wire.TagHelo, wire.TagBYEX, wire.TagSirq, wire.TagSian, wire.TagCacc} {
		if _, ok := cat.Lookup(tag); !ok {
			t.Fatalf("expected %s to be registered in catalogue", tag)
		}
	}
	if _, ok := cat.Lookup(wire.NewTag("NOPE")); ok {
		t.Fatal("expected unknown tag to miss")
	}
}
