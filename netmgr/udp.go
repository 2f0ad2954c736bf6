// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netmgr

import (
	"net"
	"sync"

	"go.uber.org/zap"

	"code.hybscloud.com/netcore/conn"
	"code.hybscloud.com/netcore/event"
	"code.hybscloud.com/netcore/netid"
	"code.hybscloud.com/netcore/wire"
)

// udpSender implements conn.Sender over a shared net.PacketConn,
// addressing every frame to one fixed remote.
type udpSender struct {
	pc   net.PacketConn
	addr net.Addr
}

func (s *udpSender) SendFrame(frame []byte) error {
	_, err := s.pc.WriteTo(frame, s.addr)
	return err
}

// UDPTransport multiplexes one net.PacketConn across many logical
// peers through the manager's address-keyed decoder pool, admitting a
// new Connection on a peer's first datagram, whatever its tag (a
// client's first datagram is normally HELO), and answering SIRQ
// inline from the same socket: server-info exchange reuses the
// datagram receive socket rather than opening a side channel.
type UDPTransport struct {
	m     *Manager
	pc    net.PacketConn
	local netid.NetworkID

	// InfoPacket, if set, supplies the packet a SIRQ is answered with.
	// A nil InfoPacket means SIRQ requests are silently ignored.
	InfoPacket func() wire.Packet

	mu     sync.Mutex
	byAddr map[string]netid.NetworkID
}

// NewUDPTransport wraps pc, ready to Serve inbound datagrams and Dial
// outbound peers. local must resolve as a blocking ServerUDP
// (FeatureNetwork|FeatureBind): every peer multiplexed through pc,
// whether it dialed in or was dialed out to, shares this one bound
// socket, and Serve only ever drives a cooperative-blocking read loop.
func (m *Manager) NewUDPTransport(pc net.PacketConn, local netid.NetworkID) (*UDPTransport, error) {
	if err := netid.ResolveServer(local, netid.ServerUDP, netid.ServerBlocking); err != nil {
		return nil, err
	}
	t := &UDPTransport{m: m, pc: pc, local: local, byAddr: make(map[string]netid.NetworkID)}
	m.Events().Register(event.HandlerFunc(t.answerServerInfoRequest), event.PriorityNormal, true)
	return t, nil
}

func (t *UDPTransport) answerServerInfoRequest(e *event.Event) {
	pe, ok := e.Payload().(*event.Param1Event[*conn.Connection])
	if !ok || t.InfoPacket == nil {
		return
	}
	pe.Arg.SendServerInfo(t.InfoPacket())
}

// Serve blocks reading datagrams from pc until it errors (including on
// Close), dispatching each to its connection.
func (t *UDPTransport) Serve() error {
	buf := make([]byte, t.m.opts.DatagramPacketSize)
	for {
		n, addr, err := t.pc.ReadFrom(buf)
		if err != nil {
			return err
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		t.handleDatagram(addr, data)
	}
}

func (t *UDPTransport) handleDatagram(addr net.Addr, data []byte) {
	key := addr.String()

	t.mu.Lock()
	remote, tracked := t.byAddr[key]
	t.mu.Unlock()

	var c *conn.Connection
	found := false
	if tracked {
		c, found = t.m.Connection(remote)
	}
	if !found {
		remote = netid.New(netid.FeatureNetwork)
		sender := &udpSender{pc: t.pc, addr: addr}
		var err error
		c, err = t.m.OpenConnection(t.local, remote, netid.ConnectionUDP, conn.SideServer, sender)
		if err != nil {
			t.m.log.Warn("netmgr: dropping datagram, connection resolution failed", zap.String("addr", key), zap.Error(err))
			return
		}
		c.ConfirmOpen()

		t.mu.Lock()
		t.byAddr[key] = remote
		t.mu.Unlock()

		t.sendCACC(sender)
	}
	t.m.pool.Decode(key, data, c)
}

func (t *UDPTransport) sendCACC(sender conn.Sender) {
	f, ok := t.m.cat.Lookup(wire.TagCacc)
	if !ok {
		return
	}
	frame, err := t.m.pipeline.Encode(f, wire.Empty{}, 0)
	if err != nil {
		return
	}
	_ = sender.SendFrame(frame)
}

// Dial admits this process as a UDP client of remoteAddr: it opens a
// Connection in OPENING and sends HELO to admit itself on the peer,
// which confirms to OPEN once the peer's CACC arrives.
func (t *UDPTransport) Dial(remoteAddr net.Addr) (*conn.Connection, error) {
	remote := netid.New(netid.FeatureNetwork)
	sender := &udpSender{pc: t.pc, addr: remoteAddr}
	c, err := t.m.OpenConnection(t.local, remote, netid.ConnectionUDP, conn.SideClient, sender)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.byAddr[remoteAddr.String()] = remote
	t.mu.Unlock()

	f, ok := t.m.cat.Lookup(wire.TagHelo)
	if ok {
		if frame, err := t.m.pipeline.Encode(f, wire.Empty{}, 0); err == nil {
			_ = sender.SendFrame(frame)
		}
	}
	return c, nil
}
