// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conn implements the connection state machine (C7): lifecycle
// transitions, check/ping correlation and round-trip measurement, send
// gating by state, and peer-initiated closure handling. Sequenced by a
// private state machine close in shape to a connectionless listener's
// mutex-guarded lifecycle, generalized from that listener's
// bound/unbound pair to the six states the data model names.
package conn

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"code.hybscloud.com/netcore/codec"
	"code.hybscloud.com/netcore/netid"
	"code.hybscloud.com/netcore/wire"
)

// Side identifies which end of a connection this process represents.
type Side int

const (
	SideClient Side = iota
	SideServer
)

// State is one node of the connection lifecycle DAG:
// INITIALIZED -> OPENING -> OPEN <-> CHECKING -> CLOSING -> CLOSED.
type State int

const (
	StateInitialized State = iota
	StateOpening
	StateOpen
	StateChecking
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateChecking:
		return "CHECKING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// nextCorrelationID mints monotonically increasing, process-wide CHCK
// correlation ids per the concurrency model (§5).
var nextCorrelationID atomic.Uint32

// Sender pushes a complete, already-framed buffer to the transport.
type Sender interface {
	SendFrame(frame []byte) error
}

// Callbacks routes events a Connection cannot resolve by itself back
// to its owning network manager, avoiding a direct import cycle
// between conn and the manager that owns it (see DESIGN NOTES on
// cyclic references).
type Callbacks struct {
	OnPacket            func(c *Connection, typeID uint32, p wire.Packet)
	OnServerInfoAnswer  func(c *Connection, typeID uint32, p wire.Packet)
	OnServerInfoRequest func(c *Connection)
	OnClosed            func(c *Connection, cause error)
}

// Options configures a Connection at construction.
type Options struct {
	Side                   Side
	CheckTimeout           time.Duration // <0 disables
	AcceptSendWhileOpening bool
	UserData               any
	Log                    *zap.Logger
}

// Connection is the per-peer state machine. Its state is guarded by
// its own monitor, separate from the ping subfields, matching the
// resource model's contention-avoidance rule.
type Connection struct {
	Local  netid.NetworkID
	Remote netid.NetworkID
	side   Side

	stateMu sync.Mutex
	state   State

	pingMu               sync.Mutex
	pendingCorrelationID int64 // -1 == idle
	pendingStart         time.Time
	lastRoundTrip        time.Duration // -1 == none

	checkTimeout           time.Duration
	acceptSendWhileOpening bool

	pendingMu     sync.Mutex
	pendingFrames [][]byte

	sender    Sender
	reg       *wire.Registry
	pipeline  *codec.Pipeline
	catalogue *wire.Catalogue
	callbacks Callbacks

	userData   any
	closedOnce sync.Once
	log        *zap.Logger
}

// New returns a Connection at StateInitialized.
func New(local, remote netid.NetworkID, sender Sender, reg *wire.Registry, pipeline *codec.Pipeline, catalogue *wire.Catalogue, callbacks Callbacks, opts Options) *Connection {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Connection{
		Local:                  local,
		Remote:                 remote,
		side:                   opts.Side,
		state:                  StateInitialized,
		pendingCorrelationID:   -1,
		lastRoundTrip:          -1,
		checkTimeout:           opts.CheckTimeout,
		acceptSendWhileOpening: opts.AcceptSendWhileOpening,
		sender:                 sender,
		reg:                    reg,
		pipeline:               pipeline,
		catalogue:              catalogue,
		callbacks:              callbacks,
		userData:               opts.UserData,
		log:                    log,
	}
}

// SetSender (re)binds the transport sender, for callers that must
// construct two peered connections before either peer's sender is
// known (see netmgr's internal transport).
func (c *Connection) SetSender(sender Sender) { c.sender = sender }

// State returns the connection's current state.
func (c *Connection) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// UserData returns the opaque value supplied at construction.
func (c *Connection) UserData() any { return c.userData }

// Side reports whether this is the client or server side.
func (c *Connection) Side() Side { return c.side }

// LastRoundTrip returns the most recently measured round trip as a
// time.Duration, or -1 if none has completed yet.
func (c *Connection) LastRoundTrip() time.Duration {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	return c.lastRoundTrip
}

// Open transitions INITIALIZED -> OPENING. Only the first caller
// succeeds; concurrent callers on an already-opening or later-state
// connection get false.
func (c *Connection) Open() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != StateInitialized {
		return false
	}
	c.state = StateOpening
	return true
}

// ConfirmOpen transitions OPENING -> OPEN on transport confirmation
// (CACC received, TCP handshake complete, or internal twin
// registered), flushing any frames queued while opening.
func (c *Connection) ConfirmOpen() {
	c.stateMu.Lock()
	if c.state != StateOpening {
		c.stateMu.Unlock()
		return
	}
	c.state = StateOpen
	c.stateMu.Unlock()
	c.flushPending()
}

// FailOpen transitions OPENING -> CLOSING on a connection-establishment
// failure.
func (c *Connection) FailOpen(cause error) {
	c.stateMu.Lock()
	if c.state != StateOpening {
		c.stateMu.Unlock()
		return
	}
	c.state = StateClosing
	c.stateMu.Unlock()
	c.Close(cause)
}

func (c *Connection) flushPending() {
	c.pendingMu.Lock()
	frames := c.pendingFrames
	c.pendingFrames = nil
	c.pendingMu.Unlock()
	for _, f := range frames {
		c.writeFrame(f)
	}
}

// Check transitions OPEN -> CHECKING, assigning a fresh correlation id
// and sending a CHCK frame. If a check is already outstanding (the
// connection is CHECKING), the new id supersedes it (logged, not an
// error).
func (c *Connection) Check() bool {
	c.stateMu.Lock()
	if c.state != StateOpen && c.state != StateChecking {
		c.stateMu.Unlock()
		return false
	}
	c.state = StateChecking
	c.stateMu.Unlock()

	id := nextCorrelationID.Add(1)

	c.pingMu.Lock()
	if c.pendingCorrelationID != -1 {
		c.log.Debug("conn: new check supersedes outstanding one", zap.Int64("previous", c.pendingCorrelationID))
	}
	c.pendingCorrelationID = int64(id)
	c.pendingStart = time.Now()
	c.pingMu.Unlock()

	f, _ := c.catalogue.Lookup(wire.TagChck)
	frame, err := c.pipeline.Encode(f, wire.CheckPayload{CorrelationID: id}, 0)
	if err != nil {
		c.log.Error("conn: failed to encode CHCK frame", zap.Error(err))
		return true
	}
	c.writeFrame(frame)
	return true
}

// Tick is the periodic external-scheduler hook: in CHECKING, if the
// outstanding check has exceeded its timeout, it escalates to CLOSING.
func (c *Connection) Tick(now time.Time) {
	c.stateMu.Lock()
	checking := c.state == StateChecking
	c.stateMu.Unlock()
	if !checking || c.checkTimeout < 0 {
		return
	}

	c.pingMu.Lock()
	start := c.pendingStart
	c.pingMu.Unlock()
	if now.Sub(start) <= c.checkTimeout {
		return
	}

	c.stateMu.Lock()
	if c.state == StateChecking {
		c.state = StateClosing
	}
	c.stateMu.Unlock()
	c.Close(ErrCheckTimeout)
}

// ReceiveCheck implements the adapter's CHCK handling: it replies with
// a CHRP carrying the same correlation id, regardless of connection
// state, since liveness checks are a protocol-level courtesy.
func (c *Connection) ReceiveCheck(correlationID uint32) {
	f, _ := c.catalogue.Lookup(wire.TagChrp)
	frame, err := c.pipeline.Encode(f, wire.CheckPayload{CorrelationID: correlationID}, 0)
	if err != nil {
		c.log.Error("conn: failed to encode CHRP reply", zap.Error(err))
		return
	}
	c.writeFrame(frame)
}

// ReceiveCheckReply implements the adapter's CHRP handling: only a
// correlation id matching the most recent outstanding CHCK updates the
// round trip and returns CHECKING to OPEN; any other id is dropped.
func (c *Connection) ReceiveCheckReply(correlationID uint32) {
	c.pingMu.Lock()
	if c.pendingCorrelationID != int64(correlationID) {
		c.pingMu.Unlock()
		c.log.Debug("conn: CHRP id mismatch, dropping", zap.Uint32("got", correlationID))
		return
	}
	rt := time.Since(c.pendingStart)
	c.lastRoundTrip = rt
	c.pendingCorrelationID = -1
	c.pingMu.Unlock()

	c.stateMu.Lock()
	if c.state == StateChecking {
		c.state = StateOpen
	}
	c.stateMu.Unlock()
}

// ReceiveUDPLogin implements the adapter's HELO handling. Clients must
// never receive HELO; the server side tolerates a duplicate as a
// no-op, since admitting a brand-new peer is the network manager's
// responsibility, not this already-open connection's.
func (c *Connection) ReceiveUDPLogin() {
	if c.side == SideClient {
		c.log.Warn("conn: client received unexpected HELO, discarding")
	}
}

// ReceiveUDPLogout implements the adapter's BYEX handling: graceful
// peer-initiated closure.
func (c *Connection) ReceiveUDPLogout() {
	c.Close(nil)
}

// ReceiveServerInfoRequest implements the adapter's SIRQ handling,
// routed to the manager to answer from the shared datagram socket.
func (c *Connection) ReceiveServerInfoRequest() {
	if c.callbacks.OnServerInfoRequest != nil {
		c.callbacks.OnServerInfoRequest(c)
	}
}

// SendServerInfo writes p as a SIAN frame, bypassing ordinary send
// gating: a server-info answer is a control-plane courtesy that should
// reach a peer still in OPENING just as readily as one fully OPEN.
func (c *Connection) SendServerInfo(p wire.Packet) bool {
	typeID, ok := c.reg.IDOf(p)
	if !ok {
		return false
	}
	f, _ := c.catalogue.Lookup(wire.TagSian)
	frame, err := c.pipeline.Encode(f, wire.PacketPayload{TypeID: typeID, Packet: p}, 0)
	if err != nil {
		c.log.Error("conn: failed to encode SIAN reply", zap.Error(err))
		return true
	}
	c.writeFrame(frame)
	return true
}

// ReceiveServerInfoAnswer implements the adapter's SIAN handling.
func (c *Connection) ReceiveServerInfoAnswer(typeID uint32, p wire.Packet) {
	if c.callbacks.OnServerInfoAnswer != nil {
		c.callbacks.OnServerInfoAnswer(c, typeID, p)
	}
}

// ReceiveConnectionAccepted implements the adapter's CACC handling:
// the transport-confirmation trigger for OPENING -> OPEN.
func (c *Connection) ReceiveConnectionAccepted() {
	c.ConfirmOpen()
}

// ReceivePacket implements the adapter's PACK handling, forwarding to
// the manager's handler chain.
func (c *Connection) ReceivePacket(typeID uint32, p wire.Packet) {
	if c.callbacks.OnPacket != nil {
		c.callbacks.OnPacket(c, typeID, p)
	}
}

// Send gates and transmits p, looked up in the packet registry for its
// type tag. It returns whether sending was attempted, not whether it
// succeeded: only OPEN and CHECKING transmit immediately; OPENING
// queues internally when AcceptSendWhileOpening is set; any other
// state returns false without emitting a failure event.
func (c *Connection) Send(p wire.Packet) bool {
	typeID, ok := c.reg.IDOf(p)
	if !ok {
		return false
	}

	c.stateMu.Lock()
	state := c.state
	c.stateMu.Unlock()

	switch state {
	case StateOpen, StateChecking:
		f, _ := c.catalogue.Lookup(wire.TagPack)
		frame, err := c.pipeline.Encode(f, wire.PacketPayload{TypeID: typeID, Packet: p}, 0)
		if err != nil {
			c.log.Error("conn: failed to encode outbound packet", zap.Error(err))
			return true
		}
		c.writeFrame(frame)
		return true
	case StateOpening:
		if !c.acceptSendWhileOpening {
			return false
		}
		f, _ := c.catalogue.Lookup(wire.TagPack)
		frame, err := c.pipeline.Encode(f, wire.PacketPayload{TypeID: typeID, Packet: p}, 0)
		if err != nil {
			c.log.Error("conn: failed to encode outbound packet", zap.Error(err))
			return true
		}
		c.pendingMu.Lock()
		c.pendingFrames = append(c.pendingFrames, frame)
		c.pendingMu.Unlock()
		return true
	default:
		return false
	}
}

func (c *Connection) writeFrame(frame []byte) {
	if err := c.sender.SendFrame(frame); err != nil {
		c.log.Debug("conn: transport write failed", zap.Error(err))
		c.Close(err)
	}
}

// Close transitions to CLOSING then CLOSED and emits the closed
// callback exactly once, regardless of how many times or from how many
// goroutines Close is called.
func (c *Connection) Close(cause error) {
	c.stateMu.Lock()
	if c.state != StateClosed {
		c.state = StateClosing
	}
	c.stateMu.Unlock()

	c.closedOnce.Do(func() {
		c.stateMu.Lock()
		c.state = StateClosed
		c.stateMu.Unlock()
		if c.callbacks.OnClosed != nil {
			c.callbacks.OnClosed(c, cause)
		}
	})
}
