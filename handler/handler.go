// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package handler implements the packet dispatch layer (C9): a
// type-indexed handler with a mutable/locked lifecycle, a multi
// handler composing an ordered list, and a bounded single-thread
// serializer that isolates user handlers from I/O threads.
package handler

import (
	"reflect"
	"sync"

	"code.hybscloud.com/netcore/wire"
)

// Context is passed to a PacketHandler alongside the packet itself. It
// carries enough to let a handler reply on the same connection without
// the handler package depending on package conn.
type Context struct {
	Reply func(p wire.Packet) bool
}

// PacketHandler handles one decoded packet.
type PacketHandler interface {
	HandlePacket(p wire.Packet, ctx Context)
}

// PacketHandlerFunc adapts a plain function to PacketHandler.
type PacketHandlerFunc func(p wire.Packet, ctx Context)

func (f PacketHandlerFunc) HandlePacket(p wire.Packet, ctx Context) { f(p, ctx) }

// TypedHandler maintains a map from a packet's concrete type to its
// handler. It starts mutable (Register permitted); the first call to
// Dispatch implicitly locks it, matching the "receipt activates lock"
// rule — after that, Register always returns false.
type TypedHandler struct {
	mu      sync.RWMutex
	byType  map[reflect.Type]PacketHandler
	locked  bool
	Default PacketHandler // fallback for unregistered types; may be nil
}

// NewTypedHandler returns an empty, mutable TypedHandler.
func NewTypedHandler() *TypedHandler {
	return &TypedHandler{byType: make(map[reflect.Type]PacketHandler)}
}

// Register binds h to the concrete type of a zero-value example of the
// packet type (pass a pointer, e.g. (*MyPacket)(nil)). It returns false
// if that type is already registered or the handler is locked.
func (t *TypedHandler) Register(sample wire.Packet, h PacketHandler) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locked {
		return false
	}
	typ := reflect.TypeOf(sample)
	if _, exists := t.byType[typ]; exists {
		return false
	}
	t.byType[typ] = h
	return true
}

// Dispatch locks the handler (if not already locked) and routes p to
// its registered handler, or Default if none matches.
func (t *TypedHandler) Dispatch(p wire.Packet, ctx Context) {
	t.mu.Lock()
	t.locked = true
	h, ok := t.byType[reflect.TypeOf(p)]
	def := t.Default
	t.mu.Unlock()

	if ok {
		h.HandlePacket(p, ctx)
		return
	}
	if def != nil {
		def.HandlePacket(p, ctx)
	}
}

// Locked reports whether registration has closed.
func (t *TypedHandler) Locked() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locked
}

// MultiHandler holds an ordered list of handlers, all invoked on every
// dispatched packet.
type MultiHandler struct {
	handlers []PacketHandler
}

// NewMultiHandler returns a MultiHandler wrapping the given handlers in
// order.
func NewMultiHandler(handlers ...PacketHandler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) HandlePacket(p wire.Packet, ctx Context) {
	for _, h := range m.handlers {
		h.HandlePacket(p, ctx)
	}
}

// Combine merges a and b into a single handler: a nil operand is
// dropped, two MultiHandlers merge their lists, and otherwise the
// result nests both under a new MultiHandler.
func Combine(a, b PacketHandler) PacketHandler {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	am, aIsMulti := a.(*MultiHandler)
	bm, bIsMulti := b.(*MultiHandler)
	switch {
	case aIsMulti && bIsMulti:
		return NewMultiHandler(append(append([]PacketHandler{}, am.handlers...), bm.handlers...)...)
	case aIsMulti:
		return NewMultiHandler(append(append([]PacketHandler{}, am.handlers...), b)...)
	case bIsMulti:
		return NewMultiHandler(append([]PacketHandler{a}, bm.handlers...)...)
	default:
		return NewMultiHandler(a, b)
	}
}
