// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netmgr_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"code.hybscloud.com/netcore/byteio"
	"code.hybscloud.com/netcore/conn"
	"code.hybscloud.com/netcore/event"
	"code.hybscloud.com/netcore/handler"
	"code.hybscloud.com/netcore/netid"
	"code.hybscloud.com/netcore/netmgr"
	"code.hybscloud.com/netcore/wire"
)

type chatMessage struct{ text string }

func (p *chatMessage) Size() int { return -1 }
func (p *chatMessage) WriteTo(w *byteio.Writer) error {
	return w.WriteStringWithLength(p.text)
}
func (p *chatMessage) ReadFrom(r *byteio.Reader) error {
	s, err := r.ReadStringWithLength()
	if err != nil {
		return err
	}
	p.text = s
	return nil
}

func newManager(t *testing.T, opts ...netmgr.Option) *netmgr.Manager {
	t.Helper()
	m := netmgr.New(nil, opts...)
	if err := m.Registry().Register(1, func() wire.Packet { return &chatMessage{} }); err != nil {
		t.Fatalf("register: %v", err)
	}
	return m
}

func TestInternalTransportDeliversPacketToHandler(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()

	received := make(chan string, 1)
	m.Handlers().Register((*chatMessage)(nil), handler.PacketHandlerFunc(func(p wire.Packet, _ handler.Context) {
		received <- p.(*chatMessage).text
	}))

	a, b, err := m.DialInternal(netid.New(netid.FeatureInternal), netid.New(netid.FeatureInternal))
	if err != nil {
		t.Fatalf("DialInternal: %v", err)
	}
	if a.State() != conn.StateOpen || b.State() != conn.StateOpen {
		t.Fatalf("expected both peers OPEN, got %v / %v", a.State(), b.State())
	}

	if !a.Send(&chatMessage{text: "hello"}) {
		t.Fatal("expected send to be attempted")
	}

	select {
	case got := <-received:
		if got != "hello" {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery")
	}
}

func TestManagerSendToUnknownRemoteFails(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()
	if m.SendTo(netid.New(netid.FeatureInternal), &chatMessage{text: "x"}) {
		t.Fatal("expected SendTo to fail for untracked remote")
	}
}

func TestManagerCloseUntracksConnection(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()
	a, b, err := m.DialInternal(netid.New(netid.FeatureInternal), netid.New(netid.FeatureInternal))
	if err != nil {
		t.Fatalf("DialInternal: %v", err)
	}
	_ = b

	if !m.Close(a.Remote) {
		t.Fatal("expected Close to find tracked connection")
	}
	time.Sleep(10 * time.Millisecond)
	if _, ok := m.Connection(a.Remote); ok {
		t.Fatal("expected connection to be untracked after close")
	}
	if m.Metrics().ConnectionsClosed == 0 {
		t.Fatal("expected ConnectionsClosed metric to increment")
	}
}

func TestTCPTransportRoundTrip(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()

	received := make(chan string, 1)
	m.Handlers().Register((*chatMessage)(nil), handler.PacketHandlerFunc(func(p wire.Packet, _ handler.Context) {
		received <- p.(*chatMessage).text
	}))

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	local := netid.New(netid.FeatureNetwork | netid.FeatureBind)
	remote := netid.New(netid.FeatureNetwork)

	server, err := m.ServeTCP(serverConn, local, remote, conn.SideServer)
	if err != nil {
		t.Fatalf("ServeTCP server side: %v", err)
	}
	client, err := m.ServeTCP(clientConn, remote, local, conn.SideClient)
	if err != nil {
		t.Fatalf("ServeTCP client side: %v", err)
	}
	_ = server

	if !client.Send(&chatMessage{text: "over tcp"}) {
		t.Fatal("expected send to be attempted")
	}

	select {
	case got := <-received:
		if got != "over tcp" {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery")
	}
}

func TestEventBusDeliversConnectionClosed(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()

	closed := make(chan error, 1)
	m.Events().Register(event.HandlerFunc(func(e *event.Event) {
		pe, ok := e.Payload().(*event.Param1Event[netmgr.ClosedInfo])
		if !ok {
			return
		}
		closed <- pe.Arg.Cause
	}), event.PriorityNormal, true)

	a, _, err := m.DialInternal(netid.New(netid.FeatureInternal), netid.New(netid.FeatureInternal))
	if err != nil {
		t.Fatalf("DialInternal: %v", err)
	}
	a.Close(nil)

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("got %v, want nil cause", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for closed event")
	}
}

func TestDialInternalRejectsFeatureMismatch(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()

	_, _, err := m.DialInternal(netid.New(netid.FeatureNetwork), netid.New(netid.FeatureInternal))
	var precondErr *netid.PreconditionError
	if !errors.As(err, &precondErr) {
		t.Fatalf("expected *netid.PreconditionError, got %T (%v)", err, err)
	}
}

func TestServeTCPRejectsServerWithoutBindFeature(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	local := netid.New(netid.FeatureNetwork) // missing FeatureBind
	remote := netid.New(netid.FeatureNetwork)

	_, err := m.ServeTCP(serverConn, local, remote, conn.SideServer)
	if !errors.Is(err, netid.ErrPrecondition) {
		t.Fatalf("expected netid.ErrPrecondition, got %v", err)
	}
}

func TestNewUDPTransportRejectsMissingBindFeature(t *testing.T) {
	m := newManager(t)
	defer m.Shutdown()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	_, err = m.NewUDPTransport(pc, netid.New(netid.FeatureNetwork))
	if !errors.Is(err, netid.ErrFeatureMismatch) {
		t.Fatalf("expected netid.ErrFeatureMismatch, got %v", err)
	}
}
