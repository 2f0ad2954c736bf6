// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netmgr

import (
	"net"

	"code.hybscloud.com/netcore/conn"
	"code.hybscloud.com/netcore/internal/netio"
	"code.hybscloud.com/netcore/netid"
)

// streamReadChunkSize bounds a single read in ServeTCP's read loop; the
// accumulator reassembles frames across however many chunks a message
// spans.
const streamReadChunkSize = 4096

// tcpSender implements conn.Sender by writing a complete frame to a
// connected TCP socket through netio.Retrier, retrying across
// ErrWouldBlock the same way ServeTCP's read loop does.
type tcpSender struct {
	rt *netio.Retrier
}

func (s *tcpSender) SendFrame(frame []byte) error {
	_, err := s.rt.WriteFull(frame)
	return err
}

// ServeTCP wraps an already-connected net.Conn (from Listener.Accept or
// net.Dial) as a Connection, confirms it open immediately (the TCP
// three-way handshake is the only negotiation this transport needs),
// and starts a dedicated read loop feeding a private accumulator. The
// read loop, and therefore its calls into c, run on the goroutine
// ServeTCP starts, not the caller's.
//
// When side is SideServer, local must additionally resolve as a
// blocking ServerTCP (FeatureNetwork|FeatureBind): this transport's
// read loop only drives a cooperative-blocking retry policy, never a
// non-blocking selector.
func (m *Manager) ServeTCP(nc net.Conn, local, remote netid.NetworkID, side conn.Side) (*conn.Connection, error) {
	if side == conn.SideServer {
		if err := netid.ResolveServer(local, netid.ServerTCP, netid.ServerBlocking); err != nil {
			return nil, err
		}
	}

	rt := netio.New(nc, nc, 0)
	c, err := m.OpenConnection(local, remote, netid.ConnectionTCP, side, &tcpSender{rt: rt})
	if err != nil {
		return nil, err
	}
	c.ConfirmOpen()

	acc := m.NewAccumulator()
	go func() {
		buf := make([]byte, streamReadChunkSize)
		for {
			n, err := rt.ReadOnce(buf)
			if n > 0 {
				acc.Ingest(buf[:n], c)
			}
			if err != nil {
				c.Close(err)
				return
			}
		}
	}()
	return c, nil
}
