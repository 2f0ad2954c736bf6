// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package netmgr

import (
	"sync"

	"code.hybscloud.com/netcore/conn"
	"code.hybscloud.com/netcore/internal/accum"
	"code.hybscloud.com/netcore/netid"
)

// internalSender feeds a frame straight into the peer's accumulator on
// the calling goroutine: the resource model's "in-process delivery
// occurs on the caller's thread" rule, without a real socket or
// goroutine hop.
type internalSender struct {
	mu      *sync.Mutex
	peerAcc *accum.Accumulator
	peer    *conn.Connection
}

func (s *internalSender) SendFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerAcc.Ingest(frame, s.peer)
	return nil
}

// DialInternal wires two in-process Connections to each other, each
// still going through the manager's ordinary C2/C3/C6/C7 path (the
// same Registry, Catalogue, and Pipeline encode/decode every other
// transport uses), confirming both open immediately since an in-memory
// pairing has no handshake latency. Both localA and localB must carry
// FeatureInternal.
func (m *Manager) DialInternal(localA, localB netid.NetworkID) (a, b *conn.Connection, err error) {
	accA := m.NewAccumulator()
	accB := m.NewAccumulator()

	var muAB, muBA sync.Mutex

	a, err = m.OpenConnection(localA, localB, netid.ConnectionInternal, conn.SideClient, nil)
	if err != nil {
		return nil, nil, err
	}
	b, err = m.OpenConnection(localB, localA, netid.ConnectionInternal, conn.SideServer, nil)
	if err != nil {
		return nil, nil, err
	}

	a.SetSender(&internalSender{mu: &muBA, peerAcc: accB, peer: b})
	b.SetSender(&internalSender{mu: &muAB, peerAcc: accA, peer: a})

	a.ConfirmOpen()
	b.ConfirmOpen()
	return a, b, nil
}
