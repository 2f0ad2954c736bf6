// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package netmgr implements the network manager (C10): it owns the
// packet registry, decoder pool, encode pipeline, event dispatcher,
// and handler chain, and presents the single API surface transport
// adapters (netmgr/tcp.go, netmgr/udp.go, netmgr/internal_transport.go)
// and application code drive connections through.
package netmgr

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"code.hybscloud.com/netcore/codec"
	"code.hybscloud.com/netcore/conn"
	"code.hybscloud.com/netcore/event"
	"code.hybscloud.com/netcore/handler"
	"code.hybscloud.com/netcore/internal/accum"
	"code.hybscloud.com/netcore/internal/pool"
	"code.hybscloud.com/netcore/netid"
	"code.hybscloud.com/netcore/wire"
)

// ClosedInfo is the payload of the event posted when a connection
// closes, carrying the connection and the cause (nil for a graceful,
// locally initiated close).
type ClosedInfo struct {
	Connection *conn.Connection
	Cause      error
}

// metrics is the manager's ambient observability surface: counts of
// resyncs, unknown-packet drops, and queue rejections, plus connection
// churn, grounded on an atomic-counter-plus-dump pattern.
type metrics struct {
	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64
	queueRejections   atomic.Uint64
}

// Metrics is a point-in-time snapshot of a Manager's counters.
type Metrics struct {
	ConnectionsOpened uint64
	ConnectionsClosed uint64
	QueueRejections   uint64
	Resyncs           uint64
	UnknownPackets    uint64
	InvalidFrames     uint64
}

// Manager wires C2 (registry), C5 (pool), C6 (encode pipeline), C8
// (event dispatcher), C9 (handler chain), and C7 (connections) behind
// one API: register events and packet types, open/close connections,
// send by remote id.
type Manager struct {
	opts Options
	log  *zap.Logger

	reg      *wire.Registry
	cat      *wire.Catalogue
	pipeline *codec.Pipeline
	pool     *pool.Pool

	events   *event.Accessor
	eventBus *event.Dispatcher

	handlers      *handler.TypedHandler
	threadHandler *handler.ThreadPacketHandler
	dispatch      handler.PacketHandler

	connMu sync.RWMutex
	conns  map[netid.NetworkID]*conn.Connection

	tickerStop chan struct{}
	tickerDone chan struct{}

	metrics metrics
}

// New builds a Manager from the supplied options, which are snapshotted
// once and never mutated afterward. A nil logger defaults to
// zap.NewNop().
func New(log *zap.Logger, opts ...Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	o := snapshot(opts)

	reg := wire.NewRegistry()
	cat := wire.NewCatalogue(reg)

	var codecOpts []codec.Option
	codecOpts = append(codecOpts, codec.WithCompressionSize(o.CompressionSize))
	if o.UseEncoderThreadPool {
		codecOpts = append(codecOpts, codec.WithEncoderThreadPool(o.EncoderThreadPoolSize))
	}
	pipeline := codec.NewPipeline(codecOpts...)

	events := event.NewAccessor()

	m := &Manager{
		opts:     o,
		log:      log,
		reg:      reg,
		cat:      cat,
		pipeline: pipeline,
		events:   events,
		handlers: handler.NewTypedHandler(),
		conns:    make(map[netid.NetworkID]*conn.Connection),
	}
	m.eventBus = event.NewDispatcher(events, m.describeSource, log)

	m.dispatch = handler.PacketHandlerFunc(m.handlers.Dispatch)
	if o.UseHandlerThread {
		m.threadHandler = handler.NewThreadPacketHandler(o.HandlerQueueSize, handler.PacketHandlerFunc(m.handlers.Dispatch), log)
		m.threadHandler.OnRejected(func(*event.Event) {
			m.metrics.queueRejections.Add(1)
		}, event.PriorityNormal, true)
		m.dispatch = m.threadHandler
	}

	m.pool = pool.New(func() *accum.Accumulator {
		return accum.New(cat, o.PacketBufferInitialSize, log, pipeline.Decompressor())
	})

	if o.GlobalConnectionCheck {
		m.startGlobalCheck(o.GlobalCheckInterval)
	}

	return m
}

func (m *Manager) describeSource() string { return "netmgr.Manager" }

// Registry exposes the packet registry for callers to register their
// own packet types against (wire.Registry is itself safe for
// concurrent registration).
func (m *Manager) Registry() *wire.Registry { return m.reg }

// Catalogue exposes the fixed wire-format catalogue.
func (m *Manager) Catalogue() *wire.Catalogue { return m.cat }

// Handlers exposes the typed packet-handler chain for registration.
// Register before the first inbound packet arrives: Dispatch locks
// the chain on first use.
func (m *Manager) Handlers() *handler.TypedHandler { return m.handlers }

// Events exposes the manager-level event dispatcher, used to register
// for connection-closed notifications and application-defined events.
func (m *Manager) Events() *event.Dispatcher { return m.eventBus }

// NewAccumulator returns a fresh byte accumulator configured exactly as
// the manager's internal pool configures its own, for transports (TCP,
// internal) that own one dedicated accumulator per connection rather
// than sharing the address-keyed pool.
func (m *Manager) NewAccumulator() *accum.Accumulator {
	return accum.New(m.cat, m.opts.PacketBufferInitialSize, m.log, m.pipeline.Decompressor())
}

// Pool exposes the address-keyed decoder pool UDP transports multiplex
// datagrams from many peers through.
func (m *Manager) Pool() *pool.Pool { return m.pool }

// Pipeline exposes the encode pipeline transports use to frame outbound
// data that isn't sent through a Connection (e.g. an unsolicited SIAN
// answer before a connection exists).
func (m *Manager) Pipeline() *codec.Pipeline { return m.pipeline }

// OpenConnection validates ct against both local's and remote's
// features, then registers a new Connection for (local, remote) bound
// to sender, transitions it to OPENING, and tracks it for SendTo/Close
// lookups. Transports confirm the transition to OPEN once their
// handshake completes (immediately for TCP/internal and for a UDP
// server admitting a peer, on CACC receipt for a UDP client).
func (m *Manager) OpenConnection(local, remote netid.NetworkID, ct netid.ConnectionType, side conn.Side, sender conn.Sender) (*conn.Connection, error) {
	if err := netid.ResolveConnection(local, ct); err != nil {
		return nil, err
	}
	if err := netid.ResolveConnection(remote, ct); err != nil {
		return nil, err
	}

	c := conn.New(local, remote, sender, m.reg, m.pipeline, m.cat, m.callbacksFor(remote), conn.Options{
		Side:         side,
		CheckTimeout: m.opts.ConnectionCheckTimeout,
		Log:          m.log,
	})
	m.connMu.Lock()
	m.conns[remote] = c
	m.connMu.Unlock()
	c.Open()
	m.metrics.connectionsOpened.Add(1)
	return c, nil
}

func (m *Manager) callbacksFor(remote netid.NetworkID) conn.Callbacks {
	return conn.Callbacks{
		OnPacket: func(c *conn.Connection, _ uint32, p wire.Packet) {
			ctx := handler.Context{Reply: c.Send}
			m.dispatch.HandlePacket(p, ctx)
		},
		OnServerInfoRequest: func(c *conn.Connection) {
			event.PostParam1(m.eventBus, true, c)
		},
		OnServerInfoAnswer: func(c *conn.Connection, typeID uint32, p wire.Packet) {
			event.PostParam2(m.eventBus, false, c, wire.PacketPayload{TypeID: typeID, Packet: p})
		},
		OnClosed: func(c *conn.Connection, cause error) {
			m.connMu.Lock()
			delete(m.conns, remote)
			m.connMu.Unlock()
			m.metrics.connectionsClosed.Add(1)
			event.PostParam1(m.eventBus, false, ClosedInfo{Connection: c, Cause: cause})
		},
	}
}

// Connection looks up a tracked connection by remote id.
func (m *Manager) Connection(remote netid.NetworkID) (*conn.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	c, ok := m.conns[remote]
	return c, ok
}

// SendTo attempts to send p on the connection tracked for remote. It
// returns false if no such connection is tracked, otherwise it returns
// whatever Connection.Send reports.
func (m *Manager) SendTo(remote netid.NetworkID, p wire.Packet) bool {
	c, ok := m.Connection(remote)
	if !ok {
		return false
	}
	return c.Send(p)
}

// Close closes the connection tracked for remote, returning false if
// none is tracked.
func (m *Manager) Close(remote netid.NetworkID) bool {
	c, ok := m.Connection(remote)
	if !ok {
		return false
	}
	c.Close(nil)
	return true
}

// Connections returns a snapshot slice of every currently tracked
// connection.
func (m *Manager) Connections() []*conn.Connection {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	out := make([]*conn.Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}

func (m *Manager) startGlobalCheck(interval time.Duration) {
	m.tickerStop = make(chan struct{})
	m.tickerDone = make(chan struct{})
	go func() {
		defer close(m.tickerDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				for _, c := range m.Connections() {
					c.Tick(now)
				}
			case <-m.tickerStop:
				return
			}
		}
	}()
}

// Metrics returns a point-in-time snapshot of the manager's counters,
// combining its own connection/rejection counts with the decoder
// pool's resync/unknown-packet/invalid-frame counts.
func (m *Manager) Metrics() Metrics {
	ps := m.pool.Stats()
	return Metrics{
		ConnectionsOpened: m.metrics.connectionsOpened.Load(),
		ConnectionsClosed: m.metrics.connectionsClosed.Load(),
		QueueRejections:   m.metrics.queueRejections.Load(),
		Resyncs:           ps.Resyncs,
		UnknownPackets:    ps.UnknownPackets,
		InvalidFrames:     ps.InvalidFrames,
	}
}

// Shutdown closes every tracked connection, stops the handler worker
// thread and the global check ticker (if running), and releases the
// encode pipeline's native compression resources.
func (m *Manager) Shutdown() {
	if m.tickerStop != nil {
		close(m.tickerStop)
		<-m.tickerDone
	}
	for _, c := range m.Connections() {
		c.Close(nil)
	}
	if m.threadHandler != nil {
		m.threadHandler.Stop()
	}
	if err := m.pipeline.Close(); err != nil {
		m.log.Debug("netmgr: error releasing compression resources", zap.Error(err))
	}
}
