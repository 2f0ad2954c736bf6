// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handler_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/netcore/byteio"
	"code.hybscloud.com/netcore/event"
	"code.hybscloud.com/netcore/handler"
	"code.hybscloud.com/netcore/wire"
)

type packetA struct{}

func (*packetA) Size() int                      { return 0 }
func (*packetA) WriteTo(*byteio.Writer) error    { return nil }
func (*packetA) ReadFrom(*byteio.Reader) error   { return nil }

type packetB struct{}

func (*packetB) Size() int                    { return 0 }
func (*packetB) WriteTo(*byteio.Writer) error { return nil }
func (*packetB) ReadFrom(*byteio.Reader) error { return nil }

func TestTypedHandlerDispatchesByConcreteType(t *testing.T) {
	th := handler.NewTypedHandler()
	var gotA, gotDefault bool
	if !th.Register((*packetA)(nil), handler.PacketHandlerFunc(func(wire.Packet, handler.Context) { gotA = true })) {
		t.Fatal("expected first registration to succeed")
	}
	th.Default = handler.PacketHandlerFunc(func(wire.Packet, handler.Context) { gotDefault = true })

	th.Dispatch(&packetA{}, handler.Context{})
	if !gotA {
		t.Fatal("expected packetA handler to run")
	}
	th.Dispatch(&packetB{}, handler.Context{})
	if !gotDefault {
		t.Fatal("expected default handler to run for unregistered type")
	}
}

func TestTypedHandlerRejectsRegistrationAfterLock(t *testing.T) {
	th := handler.NewTypedHandler()
	th.Dispatch(&packetA{}, handler.Context{}) // locks implicitly
	if th.Register((*packetB)(nil), handler.PacketHandlerFunc(func(wire.Packet, handler.Context) {})) {
		t.Fatal("expected registration after lock to fail")
	}
}

func TestTypedHandlerRejectsDuplicateRegistration(t *testing.T) {
	th := handler.NewTypedHandler()
	h := handler.PacketHandlerFunc(func(wire.Packet, handler.Context) {})
	if !th.Register((*packetA)(nil), h) {
		t.Fatal("expected first registration to succeed")
	}
	if th.Register((*packetA)(nil), h) {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestCombineMergesMultiHandlers(t *testing.T) {
	var calls []string
	h1 := handler.PacketHandlerFunc(func(wire.Packet, handler.Context) { calls = append(calls, "h1") })
	h2 := handler.PacketHandlerFunc(func(wire.Packet, handler.Context) { calls = append(calls, "h2") })
	h3 := handler.PacketHandlerFunc(func(wire.Packet, handler.Context) { calls = append(calls, "h3") })

	combined := handler.Combine(handler.Combine(h1, h2), h3)
	combined.HandlePacket(&packetA{}, handler.Context{})
	if len(calls) != 3 {
		t.Fatalf("got %v", calls)
	}
}

func TestCombineWithNilReturnsOther(t *testing.T) {
	h1 := handler.PacketHandlerFunc(func(wire.Packet, handler.Context) {})
	if handler.Combine(nil, h1) == nil {
		t.Fatal("expected non-nil result")
	}
	if handler.Combine(h1, nil) == nil {
		t.Fatal("expected non-nil result")
	}
}

func TestThreadPacketHandlerQueueOverflowRejectsThirdPacket(t *testing.T) {
	var mu sync.Mutex
	block := make(chan struct{})
	delegate := handler.PacketHandlerFunc(func(wire.Packet, handler.Context) {
		<-block // keep the worker busy so the queue actually fills
	})
	th := handler.NewThreadPacketHandler(2, delegate, nil)
	defer func() {
		close(block)
		th.Stop()
	}()

	var rejections int
	th.OnRejected(func(*event.Event) {
		mu.Lock()
		rejections++
		mu.Unlock()
	}, event.PriorityNormal, true)

	th.HandlePacket(&packetA{}, handler.Context{}) // dequeued by worker immediately, blocks on <-block
	time.Sleep(20 * time.Millisecond)               // let the worker pick it up
	th.HandlePacket(&packetA{}, handler.Context{}) // fills queue slot 1
	th.HandlePacket(&packetA{}, handler.Context{}) // fills queue slot 2
	th.HandlePacket(&packetA{}, handler.Context{}) // queue full, rejected

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if rejections != 1 {
		t.Fatalf("got %d rejections, want 1", rejections)
	}
}
